// Package cache holds per-entity caches of remote documents. Each cache
// subscribes to one owner at a time, applies optimistic local mutations and
// notifies observers on every state change.
package cache

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"habitsAPI/internal/docstore"
)

// Decoder turns a snapshot into a value, setting its id fields.
type Decoder[T any] func(owner string, snap *docstore.Snapshot) (T, error)

// Collection caches every document matched by a per-owner query, keyed by id.
type Collection[T any] struct {
	notifier

	name   string
	store  docstore.Store
	query  func(owner string) docstore.Query
	decode Decoder[T]

	mu      sync.RWMutex
	owner   string
	gen     uint64
	cancel  context.CancelFunc
	items   map[string]T
	loaded  bool
	version uint64
}

func NewCollection[T any](name string, store docstore.Store, query func(owner string) docstore.Query, decode Decoder[T]) *Collection[T] {
	return &Collection[T]{
		name:   name,
		store:  store,
		query:  query,
		decode: decode,
		items:  map[string]T{},
	}
}

// Subscribe switches the cache to owner. The previous subscription is
// cancelled first, and any of its late snapshots are dropped.
func (c *Collection[T]) Subscribe(ctx context.Context, owner string) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.owner = owner
	c.items = map[string]T{}
	c.loaded = false
	c.version++
	c.mu.Unlock()
	c.notify()

	q := c.query(owner)
	c.store.WatchQuery(subCtx, q, func(snaps []*docstore.Snapshot, err error) {
		c.onSnapshot(gen, owner, snaps, err)
	})
}

func (c *Collection[T]) onSnapshot(gen uint64, owner string, snaps []*docstore.Snapshot, err error) {
	if err != nil {
		listenerErrorsTotal.WithLabelValues(c.name).Inc()
		log.Printf("Cache %s: listener for %s failed: %v", c.name, owner, err)
		return
	}

	items := make(map[string]T, len(snaps))
	for _, s := range snaps {
		v, err := c.decode(owner, s)
		if err != nil {
			log.Printf("Cache %s: skipping %s: %v", c.name, s.Path, err)
			continue
		}
		items[s.ID] = v
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		staleSnapshotsTotal.WithLabelValues(c.name).Inc()
		return
	}
	c.items = items
	c.loaded = true
	c.version++
	c.mu.Unlock()

	snapshotsTotal.WithLabelValues(c.name).Inc()
	c.notify()
}

// Unsubscribe stops listening and keeps the cached items. Safe to call twice.
func (c *Collection[T]) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}

// Reset unsubscribes and clears all state.
func (c *Collection[T]) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.owner = ""
	c.items = map[string]T{}
	c.loaded = false
	c.version++
	c.mu.Unlock()
	c.notify()
}

// Mutate applies local to the cached items, notifies observers and then
// runs remote with a context that ignores caller cancellation. A failed
// remote write is returned but the local change is kept; the next snapshot
// replaces it.
func (c *Collection[T]) Mutate(ctx context.Context, local func(items map[string]T), remote func(ctx context.Context) error) error {
	c.mu.Lock()
	local(c.items)
	c.version++
	c.mu.Unlock()
	c.notify()

	if remote == nil {
		return nil
	}
	if err := remote(context.WithoutCancel(ctx)); err != nil {
		writeErrorsTotal.WithLabelValues(c.name).Inc()
		return fmt.Errorf("cache %s: remote write: %w", c.name, err)
	}
	return nil
}

func (c *Collection[T]) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Collection[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

// Items returns a copy of the cached items.
func (c *Collection[T]) Items() map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]T, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

// List returns the cached items ordered by id.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.items[id])
	}
	return out
}
