// Package views derives display state from caches: ordered habit lists,
// streaks and the home view.
package views

import (
	"sort"

	"habitsAPI/internal/types/habit"
)

// Filter selects habits; zero fields match anything.
type Filter struct {
	Status     habit.Status
	Visibility habit.Visibility
	Owner      string
}

func (f Filter) match(h habit.Habit) bool {
	if f.Status != "" && h.Status != f.Status {
		return false
	}
	if f.Visibility != "" && h.Visibility != f.Visibility {
		return false
	}
	if f.Owner != "" && h.Owner != f.Owner {
		return false
	}
	return true
}

// FilterHabits lists habits in HabitOrder, skipping ids with no habit.
// Habits missing from order follow, sorted by name then id.
func FilterHabits(order []string, habits map[string]habit.Habit, filter Filter) []habit.Habit {
	out := make([]habit.Habit, 0, len(habits))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true
		h, ok := habits[id]
		if !ok || !filter.match(h) {
			continue
		}
		out = append(out, h)
	}

	var rest []habit.Habit
	for id, h := range habits {
		if seen[id] || !filter.match(h) {
			continue
		}
		rest = append(rest, h)
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Name != rest[j].Name {
			return rest[i].Name < rest[j].Name
		}
		return rest[i].ID < rest[j].ID
	})
	return append(out, rest...)
}
