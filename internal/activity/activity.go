// Package activity projects the habits of whichever user is being viewed:
// the signed-in user (own habits plus pinned shared habits) or a friend
// (their public active habits).
package activity

import (
	"context"
	"log"
	"sync"
	"time"

	"habitsAPI/internal/cache"
	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/habit"
	"habitsAPI/internal/types/streak"
	"habitsAPI/internal/types/week"
	"habitsAPI/internal/views"
)

// Own holds the signed-in user's caches. The projection reads them but
// does not subscribe them.
type Own struct {
	Habits *cache.Collection[habit.Habit]
	Order  *cache.Document[habit.Order]
	Shared *cache.Document[habit.Shared]
	Weeks  *cache.Weeks
}

type ownerCaches struct {
	habits *cache.Collection[habit.Habit]
	weeks  *cache.Weeks
	stops  []func()
}

// Projection is a cache.Source whose version changes whenever the viewed
// identity or any of its inputs change.
type Projection struct {
	cache.Signal

	store  docstore.Store
	self   string
	own    Own
	clock  *views.Clock
	window int

	friendHabits *cache.Collection[habit.Habit]
	friendOrder  *cache.Document[habit.Order]
	friendWeeks  *cache.Weeks

	// switchMu serializes ViewUser so the friend caches always follow the
	// same identity.
	switchMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	viewing string
	shared  map[string]*ownerCaches
	stops   []func()
}

func New(store docstore.Store, self string, own Own, clock *views.Clock, window int) *Projection {
	p := &Projection{
		store:        store,
		self:         self,
		own:          own,
		clock:        clock,
		window:       window,
		viewing:      self,
		friendHabits: cache.NewCollection("friend_habits", store, VisibleHabits, DecodeHabit),
		friendOrder:  cache.NewDocument("friend_order", store, docstore.HabitOrderPath, DecodeOrder),
		friendWeeks:  cache.NewWeeks("friend_weeks", store, clock.Location()),
		shared:       map[string]*ownerCaches{},
	}
	for _, s := range []cache.Source{own.Habits, own.Order, own.Shared, own.Weeks, p.friendHabits, p.friendOrder, p.friendWeeks} {
		p.stops = append(p.stops, s.Watch(p.Bump))
	}
	p.stops = append(p.stops, own.Shared.Watch(p.syncShared))
	return p
}

// Start binds the projection to ctx and subscribes pinned shared habits.
func (p *Projection) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	p.syncShared()
}

// ViewUser switches the viewed identity. An empty uid or the caller's own
// uid views their own habits. Previous friend subscriptions are torn down
// before the new ones start.
func (p *Projection) ViewUser(ctx context.Context, uid string) {
	if uid == "" {
		uid = p.self
	}
	p.switchMu.Lock()
	defer p.switchMu.Unlock()

	p.mu.Lock()
	p.viewing = uid
	p.mu.Unlock()

	if uid == p.self {
		p.friendHabits.Reset()
		p.friendOrder.Reset()
		p.friendWeeks.Reset()
		p.Bump()
		return
	}
	p.friendHabits.Subscribe(ctx, uid)
	p.friendOrder.Subscribe(ctx, uid)
	p.friendWeeks.Subscribe(ctx, uid, p.clock.Now(), p.window)
	p.Bump()
}

func (p *Projection) Viewing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewing
}

// Loading is true until both the habit and order snapshots of the viewed
// identity have arrived.
func (p *Projection) Loading() bool {
	viewing := p.Viewing()
	if viewing == p.self {
		return !(p.own.Habits.Loaded() && p.own.Order.Loaded())
	}
	if p.friendHabits.Owner() != viewing || p.friendOrder.Owner() != viewing {
		return true
	}
	return !(p.friendHabits.Loaded() && p.friendOrder.Loaded())
}

// Habits lists the viewed identity's habits in display order.
func (p *Projection) Habits() []habit.Habit {
	viewing := p.Viewing()
	if viewing != p.self {
		if p.friendHabits.Owner() != viewing {
			return nil
		}
		order, _ := p.friendOrder.Value()
		return views.FilterHabits(order.Order, p.friendHabits.Items(), views.Filter{
			Status:     habit.StatusActive,
			Visibility: habit.VisibilityPublic,
			Owner:      viewing,
		})
	}

	order, _ := p.own.Order.Value()
	out := views.FilterHabits(order.Order, p.own.Habits.Items(), views.Filter{Status: habit.StatusActive})

	shared, _ := p.own.Shared.Value()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ref := range shared.Refs {
		oc, ok := p.shared[ref.Owner]
		if !ok {
			continue
		}
		if h, ok := oc.habits.Get(ref.HabitID); ok {
			out = append(out, h)
		}
	}
	return out
}

// Weeks returns the week lookup for a displayed owner.
func (p *Projection) Weeks(owner string) views.WeekLookup {
	switch {
	case owner == p.self:
		return p.own.Weeks.Record
	case owner == p.Viewing() && p.friendWeeks.Owner() == owner:
		return p.friendWeeks.Record
	}
	p.mu.Lock()
	oc, ok := p.shared[owner]
	p.mu.Unlock()
	if ok {
		return oc.weeks.Record
	}
	return func(string) (week.Record, bool) { return week.Record{}, false }
}

func (p *Projection) weeksOf(owner string) *cache.Weeks {
	switch {
	case owner == p.self:
		return p.own.Weeks
	case owner == p.Viewing():
		return p.friendWeeks
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if oc, ok := p.shared[owner]; ok {
		return oc.weeks
	}
	return nil
}

// ExtendWeeks loads older weeks of owner in the background when key lies
// before the subscribed window. A key inside the window is still loading
// and is left alone.
func (p *Projection) ExtendWeeks(owner, key string) {
	w := p.weeksOf(owner)
	if w == nil || w.Owner() != owner || w.Covers(owner, key) {
		return
	}
	go func() {
		if w.ExtendTo(owner, key, streak.MaxLookbackWeeks) {
			log.Printf("Activity: %s loading weeks of %s back to %s", p.self, owner, key)
		}
	}()
}

// Rollover advances every week window to now.
func (p *Projection) Rollover(now time.Time) {
	p.friendWeeks.Advance(now)
	p.mu.Lock()
	owners := make([]*ownerCaches, 0, len(p.shared))
	for _, oc := range p.shared {
		owners = append(owners, oc)
	}
	p.mu.Unlock()
	for _, oc := range owners {
		oc.weeks.Advance(now)
	}
}

// syncShared keeps one subscription per owner of a pinned habit.
func (p *Projection) syncShared() {
	shared, _ := p.own.Shared.Value()
	want := map[string]bool{}
	for _, ref := range shared.Refs {
		if ref.Owner != "" && ref.Owner != p.self {
			want[ref.Owner] = true
		}
	}

	p.mu.Lock()
	ctx := p.ctx
	if ctx == nil {
		p.mu.Unlock()
		return
	}
	var removed []*ownerCaches
	for owner, oc := range p.shared {
		if !want[owner] {
			removed = append(removed, oc)
			delete(p.shared, owner)
		}
	}
	var added []string
	for owner := range want {
		if _, ok := p.shared[owner]; ok {
			continue
		}
		oc := &ownerCaches{
			habits: cache.NewCollection("shared_habits", p.store, VisibleHabits, DecodeHabit),
			weeks:  cache.NewWeeks("shared_weeks", p.store, p.clock.Location()),
		}
		p.shared[owner] = oc
		added = append(added, owner)
	}
	p.mu.Unlock()

	for _, oc := range removed {
		oc.close()
	}
	for _, owner := range added {
		p.mu.Lock()
		oc, ok := p.shared[owner]
		p.mu.Unlock()
		if !ok {
			continue
		}
		oc.stops = append(oc.stops, oc.habits.Watch(p.Bump), oc.weeks.Watch(p.Bump))
		oc.habits.Subscribe(ctx, owner)
		oc.weeks.Subscribe(ctx, owner, p.clock.Now(), p.window)
	}
	if len(removed) > 0 || len(added) > 0 {
		log.Printf("Activity: %s shared owners +%d -%d", p.self, len(added), len(removed))
		p.Bump()
	}
}

func (oc *ownerCaches) close() {
	for _, stop := range oc.stops {
		stop()
	}
	oc.habits.Reset()
	oc.weeks.Reset()
}

// Close tears down every subscription the projection owns.
func (p *Projection) Close() {
	for _, stop := range p.stops {
		stop()
	}
	p.friendHabits.Reset()
	p.friendOrder.Reset()
	p.friendWeeks.Reset()

	p.mu.Lock()
	shared := p.shared
	p.shared = map[string]*ownerCaches{}
	p.ctx = nil
	p.mu.Unlock()
	for _, oc := range shared {
		oc.close()
	}
}
