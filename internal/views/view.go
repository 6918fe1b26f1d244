package views

import (
	"sync"

	"habitsAPI/internal/cache"
)

// View memoizes compute over its sources. It recomputes only when a source
// version changed and notifies observers only after a recompute.
type View[T any] struct {
	mu       sync.Mutex
	sources  []cache.Source
	compute  func() T
	versions []uint64
	value    T
	valid    bool
	computes int

	obsMu  sync.Mutex
	nextID int
	obs    map[int]func(T)
	stops  []func()
}

func NewView[T any](compute func() T, sources ...cache.Source) *View[T] {
	v := &View[T]{sources: sources, compute: compute, obs: map[int]func(T){}}
	for _, s := range sources {
		v.stops = append(v.stops, s.Watch(v.refresh))
	}
	return v
}

// Get returns the memoized value, recomputing if any source changed.
func (v *View[T]) Get() T {
	val, _ := v.get()
	return val
}

func (v *View[T]) get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	current := make([]uint64, len(v.sources))
	for i, s := range v.sources {
		current[i] = s.Version()
	}
	if v.valid && equalVersions(current, v.versions) {
		return v.value, false
	}
	v.value = v.compute()
	v.versions = current
	v.valid = true
	v.computes++
	return v.value, true
}

// Invalidate forces the next Get to recompute, for inputs that are not
// caches such as the clock.
func (v *View[T]) Invalidate() {
	v.mu.Lock()
	v.valid = false
	v.mu.Unlock()
	v.refresh()
}

func (v *View[T]) refresh() {
	v.obsMu.Lock()
	if len(v.obs) == 0 {
		v.obsMu.Unlock()
		return
	}
	v.obsMu.Unlock()

	val, changed := v.get()
	if !changed {
		return
	}
	v.obsMu.Lock()
	fns := make([]func(T), 0, len(v.obs))
	for _, fn := range v.obs {
		fns = append(fns, fn)
	}
	v.obsMu.Unlock()
	for _, fn := range fns {
		fn(val)
	}
}

// Subscribe registers fn for every recomputed value.
func (v *View[T]) Subscribe(fn func(T)) (cancel func()) {
	v.obsMu.Lock()
	defer v.obsMu.Unlock()
	id := v.nextID
	v.nextID++
	v.obs[id] = fn
	return func() {
		v.obsMu.Lock()
		delete(v.obs, id)
		v.obsMu.Unlock()
	}
}

// Computes reports how many times compute ran.
func (v *View[T]) Computes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.computes
}

// Close detaches the view from its sources.
func (v *View[T]) Close() {
	for _, stop := range v.stops {
		stop()
	}
	v.stops = nil
}

func equalVersions(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
