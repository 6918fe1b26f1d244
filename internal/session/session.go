// Package session bundles the caches and views of one signed-in user.
// Nothing is global: a Session is created on sign-in and closed on sign-out.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"habitsAPI/internal/activity"
	"habitsAPI/internal/cache"
	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/friendship"
	"habitsAPI/internal/types/habit"
	"habitsAPI/internal/types/journal"
	"habitsAPI/internal/types/notification"
	"habitsAPI/internal/types/profile"
	"habitsAPI/internal/types/timer"
	"habitsAPI/internal/views"
)

var (
	ErrNotStarted = errors.New("session not started")
	ErrNotFriends = errors.New("user is not a friend")
)

type Options struct {
	Location   *time.Location
	Now        func() time.Time
	WeekWindow int
}

type Session struct {
	UID string

	Profile  *cache.Document[profile.Profile]
	Habits   *cache.Collection[habit.Habit]
	Order    *cache.Document[habit.Order]
	Shared   *cache.Document[habit.Shared]
	Weeks    *cache.Weeks
	Notes    *cache.Collection[journal.Note]
	Friends  *cache.Document[friendship.List]
	Requests *cache.Document[friendship.Requests]
	Timer    *cache.Document[timer.State]
	Devices  *cache.Document[notification.Devices]

	Clock    *views.Clock
	Activity *activity.Projection
	Home     *views.View[views.Home]

	store  docstore.Store
	window int

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func New(store docstore.Store, uid string, opts Options) *Session {
	if opts.WeekWindow < 1 {
		opts.WeekWindow = 12
	}
	clock := views.NewClock(opts.Location, opts.Now)
	s := &Session{
		UID:      uid,
		Profile:  cache.NewDocument("profile", store, docstore.UserPath, decodeProfile),
		Habits:   cache.NewCollection("habits", store, activity.AllHabits, activity.DecodeHabit),
		Order:    cache.NewDocument("habit_order", store, docstore.HabitOrderPath, activity.DecodeOrder),
		Shared:   cache.NewDocument("shared_habits", store, docstore.SharedHabitsPath, activity.DecodeShared),
		Weeks:    cache.NewWeeks("weeks", store, clock.Location()),
		Notes:    cache.NewCollection("notes", store, notesQuery, decodeNote),
		Friends:  cache.NewDocument("friends", store, docstore.FriendsPath, decodeFriends),
		Requests: cache.NewDocument("friend_requests", store, docstore.RequestsPath, decodeRequests),
		Timer:    cache.NewDocument("timer", store, docstore.TimerPath, decodeTimer),
		Devices:  cache.NewDocument("devices", store, docstore.DevicesPath, decodeDevices),
		Clock:    clock,
		store:    store,
		window:   opts.WeekWindow,
	}
	s.Activity = activity.New(store, uid, activity.Own{
		Habits: s.Habits,
		Order:  s.Order,
		Shared: s.Shared,
		Weeks:  s.Weeks,
	}, clock, opts.WeekWindow)
	s.Home = views.NewView(s.buildHome, s.Activity, s.Timer, clock)
	clock.OnRollover(func(now time.Time) {
		s.Weeks.Advance(now)
		s.Activity.Rollover(now)
	})
	s.Friends.Watch(s.leaveRemovedFriend)
	return s
}

// leaveRemovedFriend returns to the own view once the viewed friend is gone.
func (s *Session) leaveRemovedFriend() {
	viewing := s.Activity.Viewing()
	if viewing == s.UID || !s.Friends.Loaded() {
		return
	}
	if list, _ := s.Friends.Value(); !list.Has(viewing) {
		if err := s.ViewUser(s.UID); err != nil && !errors.Is(err, ErrNotStarted) {
			log.Printf("Session: failed to leave view of %s: %v", viewing, err)
		}
	}
}

// ViewUser switches the home view to uid. Only the user themself and their
// friends can be viewed.
func (s *Session) ViewUser(uid string) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return ErrNotStarted
	}
	if uid != "" && uid != s.UID {
		if list, _ := s.Friends.Value(); !list.Has(uid) {
			return ErrNotFriends
		}
	}
	s.Activity.ViewUser(ctx, uid)
	return nil
}

func (s *Session) buildHome() views.Home {
	var running *timer.State
	if t, ok := s.Timer.Value(); ok && t.Running() {
		running = &t
	}
	home := views.BuildHome(s.Activity, s.Clock.Now(), running)
	for owner, key := range home.Unloaded {
		s.Activity.ExtendWeeks(owner, key)
	}
	return home
}

// Start subscribes every cache. Calling it twice is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = ctx
	s.mu.Unlock()

	s.Activity.Start(ctx)
	s.Profile.Subscribe(ctx, s.UID)
	s.Habits.Subscribe(ctx, s.UID)
	s.Order.Subscribe(ctx, s.UID)
	s.Shared.Subscribe(ctx, s.UID)
	s.Weeks.Subscribe(ctx, s.UID, s.Clock.Now(), s.window)
	s.Notes.Subscribe(ctx, s.UID)
	s.Friends.Subscribe(ctx, s.UID)
	s.Requests.Subscribe(ctx, s.UID)
	s.Timer.Subscribe(ctx, s.UID)
	s.Devices.Subscribe(ctx, s.UID)
	s.Clock.Start(ctx)
	log.Printf("Session: started for %s", s.UID)
}

// Close unsubscribes and clears every cache.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	s.ctx = nil
	s.mu.Unlock()

	s.Home.Close()
	s.Activity.Close()
	s.Profile.Reset()
	s.Habits.Reset()
	s.Order.Reset()
	s.Shared.Reset()
	s.Weeks.Reset()
	s.Notes.Reset()
	s.Friends.Reset()
	s.Requests.Reset()
	s.Timer.Reset()
	s.Devices.Reset()
	cancel()
	log.Printf("Session: closed for %s", s.UID)
}

func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Ready reports whether the caches the write paths depend on have loaded.
func (s *Session) Ready() bool {
	return s.Profile.Loaded() && s.Habits.Loaded() && s.Order.Loaded() &&
		s.Friends.Loaded() && s.Requests.Loaded() && s.Timer.Loaded()
}

// WaitReady blocks until Ready or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	if s.Ready() {
		return nil
	}
	ready := make(chan struct{}, 1)
	signal := func() {
		if s.Ready() {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}
	var stops []func()
	for _, src := range []cache.Source{s.Profile, s.Habits, s.Order, s.Friends, s.Requests, s.Timer} {
		stops = append(stops, src.Watch(signal))
	}
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()
	if s.Ready() {
		return nil
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
