package activity

import (
	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/habit"
)

// DecodeHabit sets the id and owner of a habit document.
func DecodeHabit(owner string, s *docstore.Snapshot) (habit.Habit, error) {
	var h habit.Habit
	if err := s.DataTo(&h); err != nil {
		return h, err
	}
	h.ID = s.ID
	h.Owner = owner
	return h, nil
}

func DecodeOrder(_ string, s *docstore.Snapshot) (habit.Order, error) {
	var o habit.Order
	return o, s.DataTo(&o)
}

func DecodeShared(_ string, s *docstore.Snapshot) (habit.Shared, error) {
	var sh habit.Shared
	return sh, s.DataTo(&sh)
}

// AllHabits queries every habit of owner.
func AllHabits(owner string) docstore.Query {
	return docstore.Collection(docstore.HabitsPath(owner))
}

// VisibleHabits queries the habits a friend may read.
func VisibleHabits(owner string) docstore.Query {
	return docstore.Collection(docstore.HabitsPath(owner)).
		Where("visibility", string(habit.VisibilityPublic)).
		Where("status", string(habit.StatusActive))
}
