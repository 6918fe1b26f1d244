package services

import (
	"context"
	"time"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
	"habitsAPI/internal/types/timer"
	"habitsAPI/internal/types/week"
	"habitsAPI/utils"
)

// TimerService runs the focus timer. A user has at most one running timer
// and its time is credited to the day it was started.
type TimerService struct {
	store docstore.Store
}

func NewTimerService(store docstore.Store) *TimerService {
	return &TimerService{store: store}
}

func (s *TimerService) Start(ctx context.Context, sess *session.Session, habitID string) (*timer.StatusResponse, error) {
	h, ok := sess.Habits.Get(habitID)
	if !ok {
		return nil, ErrHabitNotFound
	}
	if !h.Timeable {
		return nil, ErrNotTimeable
	}
	if current, _ := sess.Timer.Value(); current.Running() {
		return nil, ErrTimerRunning
	}

	state := timer.State{HabitID: habitID, StartedAt: sess.Clock.Now()}
	err := sess.Timer.Mutate(ctx, func(v *timer.State) {
		*v = state
	}, func(ctx context.Context) error {
		return s.store.Set(ctx, docstore.TimerPath(sess.UID), state.Fields())
	})
	if err != nil {
		return nil, err
	}
	return &timer.StatusResponse{Running: true, HabitID: habitID, Since: state.StartedAt}, nil
}

func (s *TimerService) Status(sess *session.Session) *timer.StatusResponse {
	state, _ := sess.Timer.Value()
	if !state.Running() {
		return &timer.StatusResponse{}
	}
	return &timer.StatusResponse{
		Running: true,
		HabitID: state.HabitID,
		Since:   state.StartedAt,
		Elapsed: elapsedSeconds(state.StartedAt, sess.Clock.Now()),
	}
}

// Stop clears the timer and adds the elapsed seconds to the habit's slot
// for the start day, both in one transaction.
func (s *TimerService) Stop(ctx context.Context, sess *session.Session) (*timer.StopResponse, error) {
	state, _ := sess.Timer.Value()
	if !state.Running() {
		return nil, ErrTimerNotActive
	}

	started := state.StartedAt.In(sess.Clock.Location())
	key := utils.WeekKey(started)
	day := utils.DayIndex(started)
	resp := &timer.StopResponse{
		HabitID: state.HabitID,
		Date:    started.Format(utils.DateLayout),
		Seconds: elapsedSeconds(state.StartedAt, sess.Clock.Now()),
	}

	sess.Timer.Mutate(ctx, func(v *timer.State) {
		*v = timer.State{}
	}, nil)
	err := sess.Weeks.Mutate(ctx, key, func(r *week.Record) {
		r.StartDate = key
		r.AddSeconds(state.HabitID, day, resp.Seconds)
	}, func(ctx context.Context) error {
		return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			rec, err := readWeek(tx, sess.UID, key)
			if err != nil {
				return err
			}
			rec.AddSeconds(state.HabitID, day, resp.Seconds)
			resp.Total = rec.Seconds(state.HabitID, day)
			if err := tx.Merge(docstore.WeekPath(sess.UID, key), map[string]interface{}{
				"startDate": key,
				"timers":    map[string]interface{}{state.HabitID: week.TimerField(rec.TimerRow(state.HabitID))},
			}); err != nil {
				return err
			}
			return tx.Delete(docstore.TimerPath(sess.UID))
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func elapsedSeconds(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Second)
}
