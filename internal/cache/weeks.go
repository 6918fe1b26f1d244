package cache

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/week"
	"habitsAPI/utils"
)

type weekEntry struct {
	record week.Record
	loaded bool
}

// Weeks caches a trailing window of per-week documents for one owner.
// A week inside the window whose document does not exist is loaded as an
// empty record; a week outside the window is not loaded.
type Weeks struct {
	notifier

	name  string
	store docstore.Store
	loc   *time.Location

	mu      sync.RWMutex
	owner   string
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	weeks   map[string]*weekEntry
	oldest  time.Time
	newest  time.Time
	version uint64
}

func NewWeeks(name string, store docstore.Store, loc *time.Location) *Weeks {
	if loc == nil {
		loc = time.UTC
	}
	return &Weeks{name: name, store: store, loc: loc, weeks: map[string]*weekEntry{}}
}

// Subscribe listens to the n weeks ending with the week of now.
func (w *Weeks) Subscribe(ctx context.Context, owner string, now time.Time, n int) {
	if n < 1 {
		n = 1
	}
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.gen++
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.owner = owner
	w.weeks = map[string]*weekEntry{}
	w.newest = utils.WeekStart(now.In(w.loc))
	w.oldest = w.newest.AddDate(0, 0, -7*(n-1))
	w.version++
	keys := utils.TrailingWeekKeys(now.In(w.loc), n)
	w.addLocked(keys)
	subs := w.pendingLocked(keys)
	w.mu.Unlock()

	w.notify()
	subs()
}

// Extend grows the window by n older weeks.
func (w *Weeks) Extend(n int) {
	w.mu.Lock()
	if w.ctx == nil || w.owner == "" {
		w.mu.Unlock()
		return
	}
	subs := w.extendLocked(n)
	w.mu.Unlock()

	w.notify()
	subs()
}

// ExtendTo grows owner's window back to cover key, at least doubling it,
// and never past limit weeks. It reports whether the window grew.
func (w *Weeks) ExtendTo(owner, key string, limit int) bool {
	target, err := time.ParseInLocation(utils.DateLayout, key, w.loc)
	if err != nil {
		return false
	}
	w.mu.Lock()
	size := len(w.weeks)
	if w.ctx == nil || w.owner != owner || !target.Before(w.oldest) || size >= limit {
		w.mu.Unlock()
		return false
	}
	n := 0
	for t := w.oldest; t.After(target); t = t.AddDate(0, 0, -7) {
		n++
	}
	if n < size {
		n = size
	}
	if size+n > limit {
		n = limit - size
	}
	subs := w.extendLocked(n)
	w.mu.Unlock()

	w.notify()
	subs()
	return true
}

// Covers reports whether key is inside owner's window.
func (w *Weeks) Covers(owner, key string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.owner != owner {
		return false
	}
	return key >= w.oldest.Format(utils.DateLayout)
}

func (w *Weeks) extendLocked(n int) func() {
	var keys []string
	for i := 0; i < n; i++ {
		w.oldest = w.oldest.AddDate(0, 0, -7)
		keys = append(keys, w.oldest.Format(utils.DateLayout))
	}
	w.addLocked(keys)
	w.version++
	return w.pendingLocked(keys)
}

// Advance adds the weeks between the newest subscribed week and now, used
// when the clock rolls over into a new week.
func (w *Weeks) Advance(now time.Time) {
	target := utils.WeekStart(now.In(w.loc))
	w.mu.Lock()
	if w.ctx == nil || w.owner == "" || !target.After(w.newest) {
		w.mu.Unlock()
		return
	}
	var keys []string
	for w.newest.Before(target) {
		w.newest = w.newest.AddDate(0, 0, 7)
		keys = append(keys, w.newest.Format(utils.DateLayout))
	}
	w.addLocked(keys)
	subs := w.pendingLocked(keys)
	w.version++
	w.mu.Unlock()

	w.notify()
	subs()
}

func (w *Weeks) addLocked(keys []string) {
	for _, k := range keys {
		if _, ok := w.weeks[k]; !ok {
			w.weeks[k] = &weekEntry{record: week.Record{StartDate: k}}
		}
	}
}

// pendingLocked returns a func that starts listeners for keys. It must run
// after the lock is released because the store may deliver synchronously.
func (w *Weeks) pendingLocked(keys []string) func() {
	ctx, gen, owner := w.ctx, w.gen, w.owner
	return func() {
		for _, k := range keys {
			key := k
			w.store.WatchDoc(ctx, docstore.WeekPath(owner, key), func(snap *docstore.Snapshot, err error) {
				w.onSnapshot(gen, owner, key, snap, err)
			})
		}
	}
}

func (w *Weeks) onSnapshot(gen uint64, owner, key string, snap *docstore.Snapshot, err error) {
	if err != nil {
		listenerErrorsTotal.WithLabelValues(w.name).Inc()
		log.Printf("Cache %s: listener for %s/%s failed: %v", w.name, owner, key, err)
		return
	}
	rec := week.Record{StartDate: key}
	if snap != nil && snap.Exists {
		if err := snap.DataTo(&rec); err != nil {
			log.Printf("Cache %s: decode %s: %v", w.name, snap.Path, err)
			return
		}
		rec.StartDate = key
	}

	w.mu.Lock()
	entry, ok := w.weeks[key]
	if gen != w.gen || !ok {
		w.mu.Unlock()
		staleSnapshotsTotal.WithLabelValues(w.name).Inc()
		return
	}
	entry.record = rec
	entry.loaded = true
	w.version++
	w.mu.Unlock()

	snapshotsTotal.WithLabelValues(w.name).Inc()
	w.notify()
}

func (w *Weeks) Unsubscribe() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
}

func (w *Weeks) Reset() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
	w.ctx = nil
	w.owner = ""
	w.weeks = map[string]*weekEntry{}
	w.version++
	w.mu.Unlock()
	w.notify()
}

// Mutate edits a copy of the week's record and stores it before the remote
// write. A week outside the window is subscribed first. A week that has not
// loaded keeps the edit but stays unloaded until its first snapshot.
func (w *Weeks) Mutate(ctx context.Context, key string, local func(r *week.Record), remote func(ctx context.Context) error) error {
	w.mu.Lock()
	if w.owner == "" {
		w.mu.Unlock()
		return fmt.Errorf("cache %s: not subscribed", w.name)
	}
	var subs func()
	entry, ok := w.weeks[key]
	if !ok {
		w.addLocked([]string{key})
		entry = w.weeks[key]
		subs = w.pendingLocked([]string{key})
	}
	rec := entry.record.Clone()
	local(&rec)
	entry.record = rec
	w.version++
	w.mu.Unlock()
	w.notify()
	if subs != nil {
		subs()
	}

	if remote == nil {
		return nil
	}
	if err := remote(context.WithoutCancel(ctx)); err != nil {
		writeErrorsTotal.WithLabelValues(w.name).Inc()
		return fmt.Errorf("cache %s: remote write: %w", w.name, err)
	}
	return nil
}

// Record returns the week and whether it is loaded.
func (w *Weeks) Record(key string) (week.Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	entry, ok := w.weeks[key]
	if !ok || !entry.loaded {
		return week.Record{}, false
	}
	return entry.record, true
}

// Lookup adapts Record for streak computation.
func (w *Weeks) Lookup() func(key string) (week.Record, bool) {
	return w.Record
}

// Keys lists the window newest first.
func (w *Weeks) Keys() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	keys := make([]string, 0, len(w.weeks))
	for k := range w.weeks {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

func (w *Weeks) Owner() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.owner
}

// Loaded reports whether every week in the window has loaded.
func (w *Weeks) Loaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.owner == "" {
		return false
	}
	for _, e := range w.weeks {
		if !e.loaded {
			return false
		}
	}
	return true
}

func (w *Weeks) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}
