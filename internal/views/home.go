package views

import (
	"time"

	"habitsAPI/internal/types/habit"
	"habitsAPI/internal/types/streak"
	"habitsAPI/internal/types/timer"
	"habitsAPI/internal/types/week"
	"habitsAPI/utils"
)

// Identity is the habit source for the user being viewed.
type Identity interface {
	Viewing() string
	Loading() bool
	// Habits returns the displayed habits, in order, tagged with their owner.
	Habits() []habit.Habit
	Weeks(owner string) WeekLookup
}

type HomeEntry struct {
	Owner        string             `json:"owner"`
	Habit        habit.Habit        `json:"habit"`
	Week         week.Row           `json:"week"`
	SecondsToday int                `json:"secondsToday"`
	Streak       streak.HabitStreak `json:"streak"`
}

type Home struct {
	Viewing  string       `json:"viewing"`
	Loading  bool         `json:"loading"`
	Today    string       `json:"today"`
	WeekKey  string       `json:"weekKey"`
	WeekIcon string       `json:"weekIcon"`
	Notes    []string     `json:"notes"`
	Timer    *timer.State `json:"timer,omitempty"`
	Entries  []HomeEntry  `json:"entries"`

	// Unloaded maps an owner to the oldest week a pending streak stopped at.
	Unloaded map[string]string `json:"-"`
}

// BuildHome projects the viewed identity's habits onto the week of today.
func BuildHome(id Identity, today time.Time, running *timer.State) Home {
	key := utils.WeekKey(today)
	day := utils.DayIndex(today)
	home := Home{
		Viewing: id.Viewing(),
		Loading: id.Loading(),
		Today:   today.Format(utils.DateLayout),
		WeekKey: key,
		Entries: []HomeEntry{},
	}

	self := id.Viewing()
	if rec, ok := id.Weeks(self)(key); ok {
		home.WeekIcon = rec.Icon
		home.Notes = rec.Notes
	}
	if running != nil && running.Running() {
		r := *running
		home.Timer = &r
	}
	if home.Loading {
		return home
	}

	for _, h := range id.Habits() {
		lookup := id.Weeks(h.Owner)
		s, missing := computeStreak(h, lookup, today)
		if missing != "" {
			if home.Unloaded == nil {
				home.Unloaded = map[string]string{}
			}
			if cur, ok := home.Unloaded[h.Owner]; !ok || missing < cur {
				home.Unloaded[h.Owner] = missing
			}
		}
		e := HomeEntry{Owner: h.Owner, Habit: h, Streak: s}
		if rec, ok := lookup(key); ok {
			e.Week = rec.Row(h.ID)
			e.SecondsToday = rec.Seconds(h.ID, day)
		}
		home.Entries = append(home.Entries, e)
	}
	return home
}
