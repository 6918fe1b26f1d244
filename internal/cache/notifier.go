package cache

import (
	"sort"
	"sync"
)

// Source is anything whose state changes can be observed.
type Source interface {
	Version() uint64
	Watch(fn func()) (cancel func())
}

type notifier struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (n *notifier) Watch(fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fns == nil {
		n.fns = map[int]func(){}
	}
	id := n.next
	n.next++
	n.fns[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.fns, id)
		n.mu.Unlock()
	}
}

// notify calls observers in registration order. It must not be called
// with the owning cache's lock held.
func (n *notifier) notify() {
	n.mu.Lock()
	ids := make([]int, 0, len(n.fns))
	for id := range n.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, n.fns[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Signal is a Source driven by explicit Bump calls, for inputs that are
// not document caches.
type Signal struct {
	notifier

	mu      sync.Mutex
	version uint64
}

func (s *Signal) Bump() {
	s.mu.Lock()
	s.version++
	s.mu.Unlock()
	s.notify()
}

func (s *Signal) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}
