package views

import (
	"context"
	"sync"
	"time"

	"habitsAPI/internal/cache"
	"habitsAPI/utils"
)

// Clock is the "today" input of views. It bumps its version at every local
// midnight once started.
type Clock struct {
	cache.Signal

	loc *time.Location
	now func() time.Time

	mu         sync.Mutex
	onRollover []func(time.Time)
}

func NewClock(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// OnRollover registers fn to run at each midnight before observers are notified.
func (c *Clock) OnRollover(fn func(time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRollover = append(c.onRollover, fn)
}

// Start runs the midnight timer until ctx is done.
func (c *Clock) Start(ctx context.Context) {
	go func() {
		for {
			now := c.Now()
			t := time.NewTimer(utils.NextMidnight(now).Sub(now))
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
				c.Rollover()
			}
		}
	}()
}

// Rollover runs the midnight hooks and notifies observers.
func (c *Clock) Rollover() {
	now := c.Now()
	c.mu.Lock()
	hooks := append([]func(time.Time){}, c.onRollover...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(now)
	}
	c.Bump()
}
