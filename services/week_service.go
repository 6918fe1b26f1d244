package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
	"habitsAPI/internal/types/week"
	"habitsAPI/utils"
)

type WeekService struct {
	store docstore.Store
}

func NewWeekService(store docstore.Store) *WeekService {
	return &WeekService{store: store}
}

// SetTracker sets one habit's status for one day of weekKey.
func (s *WeekService) SetTracker(ctx context.Context, sess *session.Session, weekKey string, req *week.SetTrackerRequest) (*week.TrackerResponse, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: tracker status %q", ErrInvalidInput, req.Status)
	}
	return s.updateTracker(ctx, sess, weekKey, req.HabitID, req.Date, func(week.TrackerStatus) week.TrackerStatus {
		return req.Status
	})
}

// CycleTracker advances the status unset -> done -> skipped -> missed -> unset.
func (s *WeekService) CycleTracker(ctx context.Context, sess *session.Session, weekKey string, req *week.CycleRequest) (*week.TrackerResponse, error) {
	return s.updateTracker(ctx, sess, weekKey, req.HabitID, req.Date, week.TrackerStatus.Next)
}

func (s *WeekService) updateTracker(ctx context.Context, sess *session.Session, weekKey, habitID, date string, next func(week.TrackerStatus) week.TrackerStatus) (*week.TrackerResponse, error) {
	loc := sess.Clock.Location()
	if _, err := utils.ParseWeekKey(weekKey, loc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	day, err := utils.ParseDate(date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if utils.WeekKey(day) != weekKey {
		return nil, fmt.Errorf("%w: %s is not in week %s", ErrInvalidInput, date, weekKey)
	}
	if _, ok := sess.Habits.Get(habitID); !ok {
		return nil, ErrHabitNotFound
	}

	idx := utils.DayIndex(day)
	resp := &week.TrackerResponse{HabitID: habitID, Week: weekKey, Date: date}
	err = sess.Weeks.Mutate(ctx, weekKey, func(r *week.Record) {
		r.StartDate = weekKey
		r.SetDay(habitID, idx, next(r.Row(habitID)[idx]))
	}, func(ctx context.Context) error {
		// The cached row may not have loaded yet, so the stored row decides.
		return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			rec, err := readWeek(tx, sess.UID, weekKey)
			if err != nil {
				return err
			}
			resp.Status = next(rec.Row(habitID)[idx])
			rec.SetDay(habitID, idx, resp.Status)
			resp.Row = rec.Row(habitID)
			return tx.Merge(docstore.WeekPath(sess.UID, weekKey), map[string]interface{}{
				"startDate": weekKey,
				"trackers":  map[string]interface{}{habitID: week.RowField(resp.Row)},
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func readWeek(tx docstore.Tx, uid, key string) (week.Record, error) {
	rec := week.Record{StartDate: key}
	snap, err := tx.Get(docstore.WeekPath(uid, key))
	if errors.Is(err, docstore.ErrNotFound) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("failed to read week %s: %w", key, err)
	}
	if err := snap.DataTo(&rec); err != nil {
		return rec, fmt.Errorf("failed to decode week %s: %w", key, err)
	}
	rec.StartDate = key
	return rec, nil
}

// SetWeekIcon sets the emoji of a week. An empty icon clears it.
func (s *WeekService) SetWeekIcon(ctx context.Context, sess *session.Session, weekKey, icon string) error {
	if _, err := utils.ParseWeekKey(weekKey, sess.Clock.Location()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	icon = strings.TrimSpace(icon)
	return sess.Weeks.Mutate(ctx, weekKey, func(r *week.Record) {
		r.StartDate = weekKey
		r.Icon = icon
	}, func(ctx context.Context) error {
		return s.store.Merge(ctx, docstore.WeekPath(sess.UID, weekKey), map[string]interface{}{
			"startDate": weekKey,
			"icon":      icon,
		})
	})
}
