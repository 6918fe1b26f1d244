package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/week"
)

type item struct {
	ID   string `firestore:"-"`
	Name string `firestore:"name"`
}

func decodeItem(_ string, s *docstore.Snapshot) (item, error) {
	var it item
	if err := s.DataTo(&it); err != nil {
		return it, err
	}
	it.ID = s.ID
	return it, nil
}

func itemsQuery(owner string) docstore.Query {
	return docstore.Collection("users/" + owner + "/items")
}

// captureStore records listener callbacks instead of delivering them, so
// tests control when snapshots arrive.
type captureStore struct {
	*docstore.Memory

	mu      sync.Mutex
	queries []docstore.QueryFunc
	docs    []docstore.DocFunc
}

func newCaptureStore() *captureStore {
	return &captureStore{Memory: docstore.NewMemory()}
}

func (c *captureStore) WatchQuery(_ context.Context, _ docstore.Query, fn docstore.QueryFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, fn)
}

func (c *captureStore) WatchDoc(_ context.Context, _ string, fn docstore.DocFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, fn)
}

func snap(id, name string) *docstore.Snapshot {
	return &docstore.Snapshot{Path: "x/" + id, ID: id, Exists: true, Data: map[string]interface{}{"name": name}}
}

func TestCollectionLoadsFromStore(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, "users/u1/items/a", map[string]interface{}{"name": "A"}))

	c := NewCollection("items", store, itemsQuery, decodeItem)
	assert.False(t, c.Loaded())

	c.Subscribe(ctx, "u1")
	require.True(t, c.Loaded())
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, item{ID: "a", Name: "A"}, got)

	require.NoError(t, store.Set(ctx, "users/u1/items/b", map[string]interface{}{"name": "B"}))
	assert.Len(t, c.List(), 2)

	c.Reset()
	assert.False(t, c.Loaded())
	assert.Empty(t, c.Items())
	assert.Equal(t, "", c.Owner())
}

func TestCollectionDropsStaleSnapshot(t *testing.T) {
	store := newCaptureStore()
	c := NewCollection("items", store, itemsQuery, decodeItem)

	c.Subscribe(context.Background(), "alice")
	c.Subscribe(context.Background(), "bob")
	require.Len(t, store.queries, 2)

	store.queries[1]([]*docstore.Snapshot{snap("b1", "bob habit")}, nil)
	// alice's listener fires after the switch to bob.
	store.queries[0]([]*docstore.Snapshot{snap("a1", "alice habit")}, nil)

	assert.Equal(t, "bob", c.Owner())
	assert.Equal(t, []item{{ID: "b1", Name: "bob habit"}}, c.List())
}

func TestCollectionListenerErrorKeepsLoading(t *testing.T) {
	store := newCaptureStore()
	c := NewCollection("items", store, itemsQuery, decodeItem)
	c.Subscribe(context.Background(), "alice")

	store.queries[0](nil, errors.New("permission denied"))
	assert.False(t, c.Loaded())
}

func TestCollectionMutateIsVisibleBeforeRemoteWrite(t *testing.T) {
	store := newCaptureStore()
	c := NewCollection("items", store, itemsQuery, decodeItem)
	c.Subscribe(context.Background(), "alice")
	store.queries[0](nil, nil)

	notified := 0
	cancel := c.Watch(func() { notified++ })
	defer cancel()

	var seenDuringWrite item
	err := c.Mutate(context.Background(), func(items map[string]item) {
		items["x"] = item{ID: "x", Name: "new"}
	}, func(ctx context.Context) error {
		seenDuringWrite, _ = c.Get("x")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", seenDuringWrite.Name)
	assert.Equal(t, 1, notified)
}

func TestCollectionMutateFailureKeepsLocalState(t *testing.T) {
	store := newCaptureStore()
	c := NewCollection("items", store, itemsQuery, decodeItem)
	c.Subscribe(context.Background(), "alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	boom := errors.New("offline")
	err := c.Mutate(ctx, func(items map[string]item) {
		items["x"] = item{ID: "x"}
	}, func(wctx context.Context) error {
		assert.NoError(t, wctx.Err())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("x")
	assert.True(t, ok)
}

func TestCollectionVersionBumpsOnChange(t *testing.T) {
	store := newCaptureStore()
	c := NewCollection("items", store, itemsQuery, decodeItem)
	v0 := c.Version()
	c.Subscribe(context.Background(), "alice")
	v1 := c.Version()
	assert.Greater(t, v1, v0)
	store.queries[0](nil, nil)
	assert.Greater(t, c.Version(), v1)

	c.Unsubscribe()
	c.Unsubscribe()
	before := c.Version()
	store.queries[0]([]*docstore.Snapshot{snap("late", "x")}, nil)
	assert.Equal(t, before, c.Version())
}

type profileDoc struct {
	Name string `firestore:"name"`
}

func decodeProfile(_ string, s *docstore.Snapshot) (profileDoc, error) {
	var p profileDoc
	return p, s.DataTo(&p)
}

func TestDocumentMissingIsLoaded(t *testing.T) {
	store := docstore.NewMemory()
	d := NewDocument("profile", store, docstore.UserPath, decodeProfile)
	d.Subscribe(context.Background(), "u1")

	require.True(t, d.Loaded())
	_, exists := d.Value()
	assert.False(t, exists)

	require.NoError(t, store.Set(context.Background(), "users/u1", map[string]interface{}{"name": "Ada"}))
	v, exists := d.Value()
	assert.True(t, exists)
	assert.Equal(t, "Ada", v.Name)
}

func TestDocumentDropsStaleSnapshot(t *testing.T) {
	store := newCaptureStore()
	d := NewDocument("profile", store, docstore.UserPath, decodeProfile)
	d.Subscribe(context.Background(), "alice")
	d.Subscribe(context.Background(), "bob")

	store.docs[0](&docstore.Snapshot{Exists: true, Data: map[string]interface{}{"name": "Alice"}}, nil)
	assert.False(t, d.Loaded())

	store.docs[1](&docstore.Snapshot{Exists: true, Data: map[string]interface{}{"name": "Bob"}}, nil)
	v, _ := d.Value()
	assert.Equal(t, "Bob", v.Name)
}

func TestWeeksWindow(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, docstore.WeekPath("u1", "2026-10-12"), map[string]interface{}{
		"startDate": "2026-10-12",
		"trackers":  map[string]interface{}{"h1": []interface{}{"done", "done"}},
	}))

	w := NewWeeks("weeks", store, time.UTC)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	w.Subscribe(ctx, "u1", now, 2)

	assert.Equal(t, []string{"2026-10-12", "2026-10-05"}, w.Keys())
	assert.True(t, w.Loaded())

	cur, ok := w.Record("2026-10-12")
	require.True(t, ok)
	assert.Equal(t, week.Done, cur.Row("h1")[1])

	prev, ok := w.Record("2026-10-05")
	require.True(t, ok, "missing document inside window counts as empty week")
	assert.Empty(t, prev.Trackers)

	_, ok = w.Record("2026-09-28")
	assert.False(t, ok)

	w.Extend(1)
	_, ok = w.Record("2026-09-28")
	assert.True(t, ok)

	w.Advance(now.AddDate(0, 0, 3))
	assert.Equal(t, "2026-10-19", w.Keys()[0])
}

func TestWeeksExtendTo(t *testing.T) {
	ctx := context.Background()
	w := NewWeeks("weeks", docstore.NewMemory(), time.UTC)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	w.Subscribe(ctx, "u1", now, 2)

	assert.True(t, w.Covers("u1", "2026-10-05"))
	assert.False(t, w.Covers("u1", "2026-09-28"))
	assert.False(t, w.Covers("u2", "2026-10-05"))

	assert.False(t, w.ExtendTo("u1", "2026-10-05", 10), "inside the window")
	assert.False(t, w.ExtendTo("u2", "2026-09-28", 10), "other owner")

	// At least doubles the window.
	require.True(t, w.ExtendTo("u1", "2026-09-28", 10))
	assert.Len(t, w.Keys(), 4)
	assert.True(t, w.Covers("u1", "2026-09-21"))
	assert.True(t, w.Loaded())

	// Reaches a far key in one step, capped by the limit.
	require.True(t, w.ExtendTo("u1", "2025-01-06", 10))
	assert.Len(t, w.Keys(), 10)
	assert.False(t, w.ExtendTo("u1", "2025-01-06", 10))
}

func TestWeeksMutateOptimistic(t *testing.T) {
	store := newCaptureStore()
	w := NewWeeks("weeks", store, time.UTC)
	w.Subscribe(context.Background(), "u1", time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), 1)
	store.docs[0](&docstore.Snapshot{}, nil)

	err := w.Mutate(context.Background(), "2026-10-12", func(r *week.Record) {
		r.SetDay("h1", 5, week.Done)
	}, nil)
	require.NoError(t, err)

	rec, ok := w.Record("2026-10-12")
	require.True(t, ok)
	assert.Equal(t, week.Done, rec.Row("h1")[5])

	require.NoError(t, w.Mutate(context.Background(), "2026-09-07", func(r *week.Record) { r.Icon = "🌧" }, nil))
	assert.Contains(t, w.Keys(), "2026-09-07")
	_, ok = w.Record("2026-09-07")
	assert.False(t, ok, "an edit alone does not load the week")

	store.docs[1](&docstore.Snapshot{Exists: true, Data: map[string]interface{}{
		"icon":     "🌧",
		"trackers": map[string]interface{}{"h1": []interface{}{"done"}},
	}}, nil)
	rec, ok = w.Record("2026-09-07")
	require.True(t, ok)
	assert.Equal(t, week.Done, rec.Row("h1")[0])
}
