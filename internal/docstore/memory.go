package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store. Watch callbacks run synchronously on the
// goroutine that made the change, after the store lock is released.
type Memory struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	docs     map[string]map[string]interface{}
	watchers map[int]*memWatcher
	nextID   int
	seq      uint64
}

type memWatcher struct {
	mu sync.Mutex
	// delivered is the last change sequence handed to fn.
	delivered uint64
	ctx       context.Context

	path  string
	query *Query
	doc   DocFunc
	qfn   QueryFunc
}

func NewMemory() *Memory {
	return &Memory{
		docs:     map[string]map[string]interface{}{},
		watchers: map[int]*memWatcher{},
	}
}

func (m *Memory) Get(_ context.Context, path string) (*Snapshot, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.snapshotLocked(path)
	if !snap.Exists {
		return snap, ErrNotFound
	}
	return snap, nil
}

func (m *Memory) Set(ctx context.Context, path string, data map[string]interface{}) error {
	return m.commit(ctx, []memWrite{{path: path, kind: writeSet, data: data}})
}

func (m *Memory) Merge(ctx context.Context, path string, data map[string]interface{}) error {
	return m.commit(ctx, []memWrite{{path: path, kind: writeMerge, data: data}})
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.commit(ctx, []memWrite{{path: path, kind: writeDelete}})
}

func (m *Memory) Query(_ context.Context, q Query) ([]*Snapshot, error) {
	if !validCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(q), nil
}

func (m *Memory) WatchDoc(ctx context.Context, path string, fn DocFunc) {
	if _, _, err := splitPath(path); err != nil {
		fn(nil, err)
		return
	}
	m.watch(ctx, &memWatcher{ctx: ctx, path: path, doc: fn})
}

func (m *Memory) WatchQuery(ctx context.Context, q Query, fn QueryFunc) {
	if !validCollection(q.Collection) {
		fn(nil, ErrInvalidPath)
		return
	}
	m.watch(ctx, &memWatcher{ctx: ctx, query: &q, qfn: fn})
}

func (m *Memory) watch(ctx context.Context, w *memWatcher) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	seq := m.seq
	ev := m.eventLocked(w)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()

	w.deliver(seq, ev)
}

// RunTransaction serializes transactions against each other. Writes are
// buffered and applied atomically when fn returns nil.
func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{m: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return m.commit(ctx, tx.writes)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.watchers = map[int]*memWatcher{}
	m.mu.Unlock()
	return nil
}

// Paths lists every stored document path, sorted.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.docs))
	for p := range m.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type writeKind int

const (
	writeSet writeKind = iota
	writeMerge
	writeDelete
	writeCreate
)

type memWrite struct {
	path string
	kind writeKind
	data map[string]interface{}
}

type memEvent struct {
	doc  *Snapshot
	docs []*Snapshot
}

func (m *Memory) commit(ctx context.Context, writes []memWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, w := range writes {
		if _, _, err := splitPath(w.path); err != nil {
			return err
		}
	}

	m.mu.Lock()
	for _, w := range writes {
		if w.kind == writeCreate {
			if _, ok := m.docs[w.path]; ok {
				m.mu.Unlock()
				return ErrAlreadyExists
			}
		}
	}
	touched := map[string]bool{}
	for _, w := range writes {
		touched[w.path] = true
		switch w.kind {
		case writeSet, writeCreate:
			m.docs[w.path] = stripDeletes(w.data)
		case writeMerge:
			doc, ok := m.docs[w.path]
			if !ok {
				doc = map[string]interface{}{}
			}
			mergeMaps(doc, w.data)
			m.docs[w.path] = doc
		case writeDelete:
			delete(m.docs, w.path)
		}
	}
	m.seq++
	seq := m.seq

	type pending struct {
		w  *memWatcher
		ev memEvent
	}
	var out []pending
	for _, w := range m.watchers {
		if w.ctx.Err() != nil || !w.affected(touched) {
			continue
		}
		out = append(out, pending{w: w, ev: m.eventLocked(w)})
	}
	m.mu.Unlock()

	for _, p := range out {
		p.w.deliver(seq, p.ev)
	}
	return nil
}

func (w *memWatcher) affected(touched map[string]bool) bool {
	if w.query == nil {
		return touched[w.path]
	}
	for p := range touched {
		if parent, _, err := splitPath(p); err == nil && parent == w.query.Collection {
			return true
		}
	}
	return false
}

// deliver drops events older than the last one delivered, keeping each
// watcher's view monotonic when commits race.
func (w *memWatcher) deliver(seq uint64, ev memEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil || (w.delivered > 0 && seq <= w.delivered) {
		return
	}
	w.delivered = seq
	if w.query == nil {
		w.doc(ev.doc, nil)
		return
	}
	w.qfn(ev.docs, nil)
}

func (m *Memory) eventLocked(w *memWatcher) memEvent {
	if w.query == nil {
		return memEvent{doc: m.snapshotLocked(w.path)}
	}
	return memEvent{docs: m.queryLocked(*w.query)}
}

func (m *Memory) snapshotLocked(path string) *Snapshot {
	_, id, _ := splitPath(path)
	doc, ok := m.docs[path]
	return &Snapshot{Path: path, ID: id, Exists: ok, Data: cloneMap(doc)}
}

func (m *Memory) queryLocked(q Query) []*Snapshot {
	prefix := q.Collection + "/"
	var out []*Snapshot
	for p, doc := range m.docs {
		if !strings.HasPrefix(p, prefix) || strings.Contains(p[len(prefix):], "/") {
			continue
		}
		if !matches(doc, q.Filters) {
			continue
		}
		out = append(out, &Snapshot{Path: p, ID: p[len(prefix):], Exists: true, Data: cloneMap(doc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct {
	m      *Memory
	writes []memWrite
}

func (tx *memTx) Get(path string) (*Snapshot, error) {
	if len(tx.writes) > 0 {
		return nil, errReadAfterWrite
	}
	return tx.m.Get(context.Background(), path)
}

func (tx *memTx) Create(path string, data map[string]interface{}) error {
	tx.writes = append(tx.writes, memWrite{path: path, kind: writeCreate, data: data})
	return nil
}

func (tx *memTx) Set(path string, data map[string]interface{}) error {
	tx.writes = append(tx.writes, memWrite{path: path, kind: writeSet, data: data})
	return nil
}

func (tx *memTx) Merge(path string, data map[string]interface{}) error {
	tx.writes = append(tx.writes, memWrite{path: path, kind: writeMerge, data: data})
	return nil
}

func (tx *memTx) Delete(path string) error {
	tx.writes = append(tx.writes, memWrite{path: path, kind: writeDelete})
	return nil
}
