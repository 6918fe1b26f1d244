package cache

import (
	"context"
	"fmt"
	"log"
	"sync"

	"habitsAPI/internal/docstore"
)

// Document caches a single per-owner document. A missing document is
// loaded with Exists() false and the zero value.
type Document[T any] struct {
	notifier

	name   string
	store  docstore.Store
	path   func(owner string) string
	decode Decoder[T]

	mu      sync.RWMutex
	owner   string
	gen     uint64
	cancel  context.CancelFunc
	value   T
	exists  bool
	loaded  bool
	version uint64
}

func NewDocument[T any](name string, store docstore.Store, path func(owner string) string, decode Decoder[T]) *Document[T] {
	return &Document[T]{name: name, store: store, path: path, decode: decode}
}

func (d *Document[T]) Subscribe(ctx context.Context, owner string) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	gen := d.gen
	subCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.owner = owner
	var zero T
	d.value, d.exists, d.loaded = zero, false, false
	d.version++
	d.mu.Unlock()
	d.notify()

	d.store.WatchDoc(subCtx, d.path(owner), func(snap *docstore.Snapshot, err error) {
		d.onSnapshot(gen, owner, snap, err)
	})
}

func (d *Document[T]) onSnapshot(gen uint64, owner string, snap *docstore.Snapshot, err error) {
	if err != nil {
		listenerErrorsTotal.WithLabelValues(d.name).Inc()
		log.Printf("Cache %s: listener for %s failed: %v", d.name, owner, err)
		return
	}

	var value T
	exists := snap != nil && snap.Exists
	if exists {
		value, err = d.decode(owner, snap)
		if err != nil {
			log.Printf("Cache %s: decode %s: %v", d.name, snap.Path, err)
			return
		}
	}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		staleSnapshotsTotal.WithLabelValues(d.name).Inc()
		return
	}
	d.value, d.exists, d.loaded = value, exists, true
	d.version++
	d.mu.Unlock()

	snapshotsTotal.WithLabelValues(d.name).Inc()
	d.notify()
}

func (d *Document[T]) Unsubscribe() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
}

func (d *Document[T]) Reset() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
	d.owner = ""
	var zero T
	d.value, d.exists, d.loaded = zero, false, false
	d.version++
	d.mu.Unlock()
	d.notify()
}

// Mutate edits the cached value in place (marking it as existing), then
// performs the remote write. See Collection.Mutate.
func (d *Document[T]) Mutate(ctx context.Context, local func(v *T), remote func(ctx context.Context) error) error {
	d.mu.Lock()
	local(&d.value)
	d.exists = true
	d.version++
	d.mu.Unlock()
	d.notify()

	if remote == nil {
		return nil
	}
	if err := remote(context.WithoutCancel(ctx)); err != nil {
		writeErrorsTotal.WithLabelValues(d.name).Inc()
		return fmt.Errorf("cache %s: remote write: %w", d.name, err)
	}
	return nil
}

func (d *Document[T]) Owner() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.owner
}

func (d *Document[T]) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

func (d *Document[T]) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Value returns the cached value and whether the document exists.
func (d *Document[T]) Value() (T, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value, d.exists
}
