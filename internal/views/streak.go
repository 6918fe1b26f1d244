package views

import (
	"time"

	"habitsAPI/internal/types/habit"
	"habitsAPI/internal/types/streak"
	"habitsAPI/internal/types/week"
	"habitsAPI/utils"
)

// WeekLookup returns a week record and whether it has loaded.
type WeekLookup func(key string) (week.Record, bool)

// ComputeStreak counts consecutive qualifying weeks ending with the week of
// today. The current week counts once it qualifies and is skipped while it
// can still qualify. Counting stops pending at the first week not loaded.
func ComputeStreak(h habit.Habit, lookup WeekLookup, today time.Time) streak.HabitStreak {
	s, _ := computeStreak(h, lookup, today)
	return s
}

// computeStreak also returns the key of the week a pending streak stopped at.
func computeStreak(h habit.Habit, lookup WeekLookup, today time.Time) (streak.HabitStreak, string) {
	if h.WeeklyFrequency == nil {
		return streak.HabitStreak{}, ""
	}
	f := *h.WeeklyFrequency

	start := utils.WeekStart(today)
	startKey := start.Format(utils.DateLayout)
	cur, ok := lookup(startKey)
	if !ok {
		return streak.HabitStreak{IsPending: true}, startKey
	}

	count := 0
	row := cur.Row(h.ID)
	switch {
	case qualifies(row, f):
		count = 1
	case !achievable(row, f, utils.DayIndex(today)):
		return streak.HabitStreak{}, ""
	}

	for i := 1; i < streak.MaxLookbackWeeks; i++ {
		key := start.AddDate(0, 0, -7*i).Format(utils.DateLayout)
		rec, ok := lookup(key)
		if !ok {
			return streak.HabitStreak{Count: count, IsPending: true}, key
		}
		if !qualifies(rec.Row(h.ID), f) {
			return streak.HabitStreak{Count: count}, ""
		}
		count++
	}
	return streak.HabitStreak{Count: count}, ""
}

func qualifies(row week.Row, f int) bool {
	if f >= utils.DaysPerWeek {
		for _, s := range row {
			if s != week.Done && s != week.Skipped {
				return false
			}
		}
		return true
	}
	done := 0
	for _, s := range row {
		if s == week.Done {
			done++
		}
	}
	return done >= f
}

// achievable reports whether the current week can still qualify given that
// days before today are over.
func achievable(row week.Row, f, today int) bool {
	if f >= utils.DaysPerWeek {
		for i, s := range row {
			if s == week.Missed || (i < today && s == week.Unset) {
				return false
			}
		}
		return true
	}
	potential := 0
	for i, s := range row {
		if s == week.Done || (i >= today && s == week.Unset) {
			potential++
		}
	}
	return potential >= f
}
