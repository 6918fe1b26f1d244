package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	ID       string               `firestore:"-"`
	Name     string               `firestore:"name"`
	Count    int                  `firestore:"count"`
	Freq     *int                 `firestore:"freq"`
	Tags     []string             `firestore:"tags"`
	Since    time.Time            `firestore:"since"`
	Children map[string]testChild `firestore:"children"`
}

type testChild struct {
	Label string `firestore:"label"`
}

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "users/u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "users/u1", map[string]interface{}{"name": "Ada"}))
	snap, err := m.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, "u1", snap.ID)
	assert.Equal(t, "Ada", snap.Data["name"])

	require.NoError(t, m.Delete(ctx, "users/u1"))
	_, err = m.Get(ctx, "users/u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryInvalidPath(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "users")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = m.Query(context.Background(), Collection("users/u1"))
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, m.Set(context.Background(), "users//x/y", nil), ErrInvalidPath)
}

func TestMemoryMergeIsDeep(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "users/u1/social/friends", map[string]interface{}{
		"friends": map[string]interface{}{
			"a": map[string]interface{}{"username": "alice"},
			"b": map[string]interface{}{"username": "bob"},
		},
	}))

	require.NoError(t, m.Merge(ctx, "users/u1/social/friends", map[string]interface{}{
		"friends": map[string]interface{}{
			"a": DeleteField,
			"c": map[string]interface{}{"username": "carol"},
		},
	}))

	snap, err := m.Get(ctx, "users/u1/social/friends")
	require.NoError(t, err)
	friends := snap.Data["friends"].(map[string]interface{})
	assert.NotContains(t, friends, "a")
	assert.Contains(t, friends, "b")
	assert.Contains(t, friends, "c")
}

func TestMemoryDataTo(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	since := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.Set(ctx, "things/t1", map[string]interface{}{
		"name":     "walk",
		"count":    int64(3),
		"freq":     int64(5),
		"tags":     []interface{}{"a", "b"},
		"since":    since,
		"children": map[string]interface{}{"x": map[string]interface{}{"label": "X"}},
	}))

	snap, err := m.Get(ctx, "things/t1")
	require.NoError(t, err)
	var e testEntry
	require.NoError(t, snap.DataTo(&e))
	assert.Equal(t, "", e.ID)
	assert.Equal(t, "walk", e.Name)
	assert.Equal(t, 3, e.Count)
	require.NotNil(t, e.Freq)
	assert.Equal(t, 5, *e.Freq)
	assert.Equal(t, []string{"a", "b"}, e.Tags)
	assert.True(t, since.Equal(e.Since))
	assert.Equal(t, "X", e.Children["x"].Label)
}

func TestDecodeTimeFromString(t *testing.T) {
	var e testEntry
	require.NoError(t, decodeMap(map[string]interface{}{"since": "2026-10-12T08:00:00Z", "count": 2.0}, &e))
	assert.Equal(t, 2026, e.Since.Year())
	assert.Equal(t, 2, e.Count)
}

func TestMemoryQueryFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "users/u1/habits/b", map[string]interface{}{"visibility": "public", "status": "active"}))
	require.NoError(t, m.Set(ctx, "users/u1/habits/a", map[string]interface{}{"visibility": "public", "status": "archived"}))
	require.NoError(t, m.Set(ctx, "users/u1/habits/c", map[string]interface{}{"visibility": "private", "status": "active"}))
	require.NoError(t, m.Set(ctx, "users/u2/habits/d", map[string]interface{}{"visibility": "public", "status": "active"}))

	all, err := m.Query(ctx, Collection("users/u1/habits"))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	public, err := m.Query(ctx, Collection("users/u1/habits").Where("visibility", "public").Where("status", "active"))
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "b", public[0].ID)
}

func TestMemoryWatchDoc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	var got []*Snapshot
	m.WatchDoc(ctx, "users/u1", func(s *Snapshot, err error) {
		require.NoError(t, err)
		got = append(got, s)
	})
	require.Len(t, got, 1)
	assert.False(t, got[0].Exists)

	require.NoError(t, m.Set(context.Background(), "users/u1", map[string]interface{}{"name": "Ada"}))
	require.NoError(t, m.Set(context.Background(), "users/u2", map[string]interface{}{"name": "Bob"}))
	require.Len(t, got, 2)
	assert.Equal(t, "Ada", got[1].Data["name"])

	cancel()
	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return len(m.watchers) == 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Set(context.Background(), "users/u1", map[string]interface{}{"name": "Eve"}))
	assert.Len(t, got, 2)
}

func TestMemoryWatchQuery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()

	var sizes []int
	m.WatchQuery(ctx, Collection("users/u1/notes"), func(s []*Snapshot, err error) {
		require.NoError(t, err)
		sizes = append(sizes, len(s))
	})
	require.NoError(t, m.Set(context.Background(), "users/u1/notes/n1", map[string]interface{}{"title": "a"}))
	require.NoError(t, m.Set(context.Background(), "users/u1/notes/n2", map[string]interface{}{"title": "b"}))
	require.NoError(t, m.Set(context.Background(), "users/u1/habits/h1", map[string]interface{}{"name": "x"}))
	require.NoError(t, m.Delete(context.Background(), "users/u1/notes/n1"))

	assert.Equal(t, []int{0, 1, 2, 1}, sizes)
}

func TestMemoryTransaction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "usernames/ada", map[string]interface{}{"uid": "u1"}))

	err := m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Get("usernames/ada")
		require.NoError(t, err)
		require.NoError(t, tx.Delete("usernames/ada"))
		return tx.Create("usernames/ada_l", map[string]interface{}{"uid": "u1"})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"usernames/ada_l"}, m.Paths())

	boom := errors.New("boom")
	err = m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Delete("usernames/ada_l"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"usernames/ada_l"}, m.Paths())

	err = m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Create("usernames/ada_l", map[string]interface{}{"uid": "u2"})
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestTransactionReadAfterWrite(t *testing.T) {
	m := NewMemory()
	err := m.RunTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Set("a/b", map[string]interface{}{}))
		_, err := tx.Get("a/b")
		return err
	})
	assert.ErrorIs(t, err, errReadAfterWrite)
}

func TestMemoryContract(t *testing.T) {
	runStoreContract(t, NewMemory(), "runs/memory")
}
