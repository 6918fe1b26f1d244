package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every Store backend shares. All
// paths live under root, a document path, so runs against a shared
// database do not see each other. Listeners may deliver asynchronously.
func runStoreContract(t *testing.T, s Store, root string) {
	t.Run("GetSetDelete", func(t *testing.T) {
		ctx := context.Background()
		path := root + "/users/u1"

		_, err := s.Get(ctx, path)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Set(ctx, path, map[string]interface{}{"name": "Ada", "count": int64(3)}))
		snap, err := s.Get(ctx, path)
		require.NoError(t, err)
		assert.True(t, snap.Exists)
		assert.Equal(t, "u1", snap.ID)
		assert.Equal(t, "Ada", snap.Data["name"])

		var e testEntry
		require.NoError(t, snap.DataTo(&e))
		assert.Equal(t, 3, e.Count)

		require.NoError(t, s.Delete(ctx, path))
		_, err = s.Get(ctx, path)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("MergeIsDeep", func(t *testing.T) {
		ctx := context.Background()
		path := root + "/social/friends"
		require.NoError(t, s.Set(ctx, path, map[string]interface{}{
			"friends": map[string]interface{}{
				"a": map[string]interface{}{"username": "alice"},
				"b": map[string]interface{}{"username": "bob"},
			},
		}))
		require.NoError(t, s.Merge(ctx, path, map[string]interface{}{
			"friends": map[string]interface{}{
				"a": DeleteField,
				"c": map[string]interface{}{"username": "carol"},
			},
		}))

		snap, err := s.Get(ctx, path)
		require.NoError(t, err)
		friends := snap.Data["friends"].(map[string]interface{})
		assert.NotContains(t, friends, "a")
		assert.Contains(t, friends, "b")
		assert.Contains(t, friends, "c")

		// Merging into a missing document creates it.
		require.NoError(t, s.Merge(ctx, root+"/social/requests", map[string]interface{}{"incoming": map[string]interface{}{}}))
		_, err = s.Get(ctx, root+"/social/requests")
		assert.NoError(t, err)
	})

	t.Run("QueryFilters", func(t *testing.T) {
		ctx := context.Background()
		habits := root + "/habits"
		require.NoError(t, s.Set(ctx, habits+"/b", map[string]interface{}{"visibility": "public", "status": "active"}))
		require.NoError(t, s.Set(ctx, habits+"/a", map[string]interface{}{"visibility": "public", "status": "archived"}))
		require.NoError(t, s.Set(ctx, habits+"/c", map[string]interface{}{"visibility": "private", "status": "active"}))

		all, err := s.Query(ctx, Collection(habits))
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].ID)

		public, err := s.Query(ctx, Collection(habits).Where("visibility", "public").Where("status", "active"))
		require.NoError(t, err)
		require.Len(t, public, 1)
		assert.Equal(t, "b", public[0].ID)
	})

	t.Run("Transaction", func(t *testing.T) {
		ctx := context.Background()
		names := root + "/usernames"
		require.NoError(t, s.Set(ctx, names+"/ada", map[string]interface{}{"uid": "u1"}))

		err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.Get(names + "/ada"); err != nil {
				return err
			}
			if err := tx.Delete(names + "/ada"); err != nil {
				return err
			}
			return tx.Create(names+"/ada_l", map[string]interface{}{"uid": "u1"})
		})
		require.NoError(t, err)
		_, err = s.Get(ctx, names+"/ada")
		assert.ErrorIs(t, err, ErrNotFound)

		boom := errors.New("boom")
		err = s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Delete(names + "/ada_l"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = s.Get(ctx, names+"/ada_l")
		assert.NoError(t, err, "rolled back")

		err = s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
			return tx.Create(names+"/ada_l", map[string]interface{}{"uid": "u2"})
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("WatchDoc", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		path := root + "/watched/doc"

		var mu sync.Mutex
		var got []*Snapshot
		s.WatchDoc(ctx, path, func(snap *Snapshot, err error) {
			assert.NoError(t, err)
			mu.Lock()
			got = append(got, snap)
			mu.Unlock()
		})
		last := func() *Snapshot {
			mu.Lock()
			defer mu.Unlock()
			if len(got) == 0 {
				return nil
			}
			return got[len(got)-1]
		}

		require.Eventually(t, func() bool { return last() != nil }, 5*time.Second, 10*time.Millisecond)
		assert.False(t, last().Exists)

		require.NoError(t, s.Set(context.Background(), path, map[string]interface{}{"name": "Ada"}))
		require.Eventually(t, func() bool {
			snap := last()
			return snap != nil && snap.Exists && snap.Data["name"] == "Ada"
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("WatchQuery", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		notes := root + "/notes"

		var mu sync.Mutex
		size := -1
		s.WatchQuery(ctx, Collection(notes), func(snaps []*Snapshot, err error) {
			assert.NoError(t, err)
			mu.Lock()
			size = len(snaps)
			mu.Unlock()
		})
		current := func() int {
			mu.Lock()
			defer mu.Unlock()
			return size
		}

		require.Eventually(t, func() bool { return current() == 0 }, 5*time.Second, 10*time.Millisecond)
		require.NoError(t, s.Set(context.Background(), notes+"/n1", map[string]interface{}{"title": "a"}))
		require.NoError(t, s.Set(context.Background(), notes+"/n2", map[string]interface{}{"title": "b"}))
		require.Eventually(t, func() bool { return current() == 2 }, 5*time.Second, 10*time.Millisecond)
		require.NoError(t, s.Delete(context.Background(), notes+"/n1"))
		require.Eventually(t, func() bool { return current() == 1 }, 5*time.Second, 10*time.Millisecond)
	})
}
