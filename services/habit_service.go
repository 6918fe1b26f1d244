package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
	"habitsAPI/internal/types/habit"
	"habitsAPI/utils"
)

// HabitService edits the session user's habits. Every change is applied to
// the session caches first and written remotely afterwards.
type HabitService struct {
	store docstore.Store
}

func NewHabitService(store docstore.Store) *HabitService {
	return &HabitService{store: store}
}

func (s *HabitService) Create(ctx context.Context, sess *session.Session, req *habit.EditRequest) (*habit.Habit, error) {
	h := habit.Habit{
		ID:              utils.HabitID(),
		Owner:           sess.UID,
		Name:            strings.TrimSpace(req.Name),
		Icon:            req.Icon,
		Status:          req.Status,
		Visibility:      req.Visibility,
		WeeklyFrequency: req.WeeklyFrequency,
		Timeable:        req.Timeable,
		Palette:         req.Palette,
	}
	if h.Status == "" {
		h.Status = habit.StatusActive
	}
	if h.Visibility == "" {
		h.Visibility = habit.VisibilityPrivate
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	err := sess.Habits.Mutate(ctx, func(items map[string]habit.Habit) {
		items[h.ID] = h
	}, func(ctx context.Context) error {
		return s.store.Set(ctx, docstore.HabitPath(sess.UID, h.ID), h.Fields())
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Edit replaces the editable fields. Empty status or visibility keep the
// current value.
func (s *HabitService) Edit(ctx context.Context, sess *session.Session, id string, req *habit.EditRequest) (*habit.Habit, error) {
	apply := func(h *habit.Habit) {
		h.Name = strings.TrimSpace(req.Name)
		h.Icon = req.Icon
		h.WeeklyFrequency = req.WeeklyFrequency
		h.Timeable = req.Timeable
		h.Palette = req.Palette
		if req.Status != "" {
			h.Status = req.Status
		}
		if req.Visibility != "" {
			h.Visibility = req.Visibility
		}
	}
	candidate, ok := sess.Habits.Get(id)
	if !ok {
		return nil, ErrHabitNotFound
	}
	apply(&candidate)
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.update(ctx, sess, id, apply, func(ctx context.Context, h habit.Habit) error {
		return s.store.Set(ctx, docstore.HabitPath(sess.UID, id), h.Fields())
	})
}

// update edits the cached habit in place so a snapshot landing between the
// read and the write is not overwritten, then runs write with the result.
func (s *HabitService) update(ctx context.Context, sess *session.Session, id string, edit func(h *habit.Habit), write func(ctx context.Context, h habit.Habit) error) (*habit.Habit, error) {
	var h habit.Habit
	found := false
	err := sess.Habits.Mutate(ctx, func(items map[string]habit.Habit) {
		cur, ok := items[id]
		if !ok {
			return
		}
		edit(&cur)
		items[id] = cur
		h, found = cur, true
	}, func(ctx context.Context) error {
		if !found {
			return nil
		}
		return write(ctx, h)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrHabitNotFound
	}
	return &h, nil
}

// Delete removes the habit and its place in the display order. Week
// records and notes that mention it are left alone.
func (s *HabitService) Delete(ctx context.Context, sess *session.Session, id string) error {
	if _, ok := sess.Habits.Get(id); !ok {
		return ErrHabitNotFound
	}

	sess.Order.Mutate(ctx, func(o *habit.Order) {
		o.Order = without(o.Order, id)
	}, nil)
	return sess.Habits.Mutate(ctx, func(items map[string]habit.Habit) {
		delete(items, id)
	}, func(ctx context.Context) error {
		return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			var order habit.Order
			snap, err := tx.Get(docstore.HabitOrderPath(sess.UID))
			if err != nil && !errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("failed to read habit order: %w", err)
			}
			if err == nil {
				if err := snap.DataTo(&order); err != nil {
					return fmt.Errorf("failed to decode habit order: %w", err)
				}
			}
			if err := tx.Delete(docstore.HabitPath(sess.UID, id)); err != nil {
				return err
			}
			if !contains(order.Order, id) {
				return nil
			}
			return tx.Set(docstore.HabitOrderPath(sess.UID), habit.Order{Order: without(order.Order, id)}.Fields())
		})
	})
}

func (s *HabitService) SetStatus(ctx context.Context, sess *session.Session, id string, status habit.Status) (*habit.Habit, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	return s.patch(ctx, sess, id, func(h *habit.Habit) map[string]interface{} {
		h.Status = status
		return map[string]interface{}{"status": string(status)}
	})
}

func (s *HabitService) SetVisibility(ctx context.Context, sess *session.Session, id string, visibility habit.Visibility) (*habit.Habit, error) {
	if !visibility.Valid() {
		return nil, fmt.Errorf("%w: visibility %q", ErrInvalidInput, visibility)
	}
	return s.patch(ctx, sess, id, func(h *habit.Habit) map[string]interface{} {
		h.Visibility = visibility
		return map[string]interface{}{"visibility": string(visibility)}
	})
}

func (s *HabitService) patch(ctx context.Context, sess *session.Session, id string, edit func(h *habit.Habit) map[string]interface{}) (*habit.Habit, error) {
	var fields map[string]interface{}
	return s.update(ctx, sess, id, func(h *habit.Habit) {
		fields = edit(h)
	}, func(ctx context.Context, _ habit.Habit) error {
		return s.store.Merge(ctx, docstore.HabitPath(sess.UID, id), fields)
	})
}

// SaveOrder stores the display order after a batch of drag operations.
// Duplicate ids keep their first position.
func (s *HabitService) SaveOrder(ctx context.Context, sess *session.Session, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: empty habit id", ErrInvalidInput)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}

	err := sess.Order.Mutate(ctx, func(o *habit.Order) {
		o.Order = order
	}, func(ctx context.Context) error {
		return s.store.Set(ctx, docstore.HabitOrderPath(sess.UID), habit.Order{Order: order}.Fields())
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Share pins a friend's habit to the caller's home view.
func (s *HabitService) Share(ctx context.Context, sess *session.Session, ref habit.SharedRef) ([]habit.SharedRef, error) {
	if ref.Owner == "" || ref.HabitID == "" || ref.Owner == sess.UID {
		return nil, fmt.Errorf("%w: shared habit reference", ErrInvalidInput)
	}
	if list, _ := sess.Friends.Value(); !list.Has(ref.Owner) {
		return nil, session.ErrNotFriends
	}
	return s.editShared(ctx, sess, func(refs []habit.SharedRef) []habit.SharedRef {
		for _, r := range refs {
			if r == ref {
				return refs
			}
		}
		return append(refs, ref)
	})
}

func (s *HabitService) Unshare(ctx context.Context, sess *session.Session, ref habit.SharedRef) ([]habit.SharedRef, error) {
	return s.editShared(ctx, sess, func(refs []habit.SharedRef) []habit.SharedRef {
		kept := refs[:0]
		for _, r := range refs {
			if r != ref {
				kept = append(kept, r)
			}
		}
		return kept
	})
}

func (s *HabitService) editShared(ctx context.Context, sess *session.Session, edit func([]habit.SharedRef) []habit.SharedRef) ([]habit.SharedRef, error) {
	var next habit.Shared
	err := sess.Shared.Mutate(ctx, func(v *habit.Shared) {
		refs := append([]habit.SharedRef(nil), v.Refs...)
		v.Refs = edit(refs)
		next = habit.Shared{Refs: append([]habit.SharedRef(nil), v.Refs...)}
	}, func(ctx context.Context) error {
		return s.store.Set(ctx, docstore.SharedHabitsPath(sess.UID), next.Fields())
	})
	if err != nil {
		return nil, err
	}
	return next.Refs, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// without returns a copy of ids minus id.
func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
