package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/streak"
	"habitsAPI/internal/views"
)

var now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, docstore.UserPath("u1"), map[string]interface{}{
		"displayName": "Ada", "username": "ada", "avatar": "🦊",
	}))
	require.NoError(t, store.Set(ctx, docstore.HabitPath("u1", "h1"), map[string]interface{}{
		"name": "Run", "status": "active", "visibility": "public", "weeklyFrequency": int64(2),
	}))
	require.NoError(t, store.Set(ctx, docstore.HabitOrderPath("u1"), map[string]interface{}{
		"order": []interface{}{"h1"},
	}))
	require.NoError(t, store.Set(ctx, docstore.WeekPath("u1", "2026-10-12"), map[string]interface{}{
		"startDate": "2026-10-12",
		"trackers":  map[string]interface{}{"h1": []interface{}{"done", "", "done"}},
	}))
}

func TestSessionLifecycle(t *testing.T) {
	store := docstore.NewMemory()
	seed(t, store)

	s := New(store, "u1", Options{Location: time.UTC, Now: func() time.Time { return now }, WeekWindow: 2})
	s.Start(context.Background())
	s.Start(context.Background())
	require.True(t, s.Ready())
	require.NoError(t, s.WaitReady(context.Background()))

	p, ok := s.Profile.Value()
	require.True(t, ok)
	assert.Equal(t, "u1", p.UID)
	assert.Equal(t, "ada", p.Username)

	home := s.Home.Get()
	assert.False(t, home.Loading)
	require.Len(t, home.Entries, 1)
	assert.Equal(t, 1, home.Entries[0].Streak.Count)
	assert.True(t, home.Entries[0].Streak.IsPending == false)

	var pushed []views.Home
	cancel := s.Home.Subscribe(func(h views.Home) { pushed = append(pushed, h) })
	defer cancel()
	require.NoError(t, store.Set(context.Background(), docstore.HabitPath("u1", "h2"), map[string]interface{}{
		"name": "Swim", "status": "active", "visibility": "private",
	}))
	require.NotEmpty(t, pushed)
	assert.Len(t, pushed[len(pushed)-1].Entries, 2)

	s.Close()
	s.Close()
	assert.False(t, s.Started())
	assert.False(t, s.Habits.Loaded())
	assert.Empty(t, s.Habits.Items())
}

func TestStreakLoadsWeeksBeyondWindow(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, docstore.HabitPath("u1", "h1"), map[string]interface{}{
		"name": "Read", "status": "active", "visibility": "public", "weeklyFrequency": int64(1),
	}))
	require.NoError(t, store.Set(ctx, docstore.HabitOrderPath("u1"), map[string]interface{}{
		"order": []interface{}{"h1"},
	}))
	for _, key := range []string{"2026-10-12", "2026-10-05", "2026-09-28", "2026-09-21", "2026-09-14"} {
		require.NoError(t, store.Set(ctx, docstore.WeekPath("u1", key), map[string]interface{}{
			"startDate": key,
			"trackers":  map[string]interface{}{"h1": []interface{}{"done"}},
		}))
	}

	s := New(store, "u1", Options{Location: time.UTC, Now: func() time.Time { return now }, WeekWindow: 2})
	s.Start(ctx)
	defer s.Close()

	assert.Eventually(t, func() bool {
		home := s.Home.Get()
		return len(home.Entries) == 1 && home.Entries[0].Streak == streak.HabitStreak{Count: 5}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, s.Weeks.Keys(), "2026-09-07")
}

func TestWaitReadyHonoursContext(t *testing.T) {
	s := New(docstore.NewMemory(), "u1", Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.WaitReady(ctx), context.Canceled)
}

func TestViewUserRequiresFriendship(t *testing.T) {
	store := docstore.NewMemory()
	seed(t, store)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, docstore.HabitPath("u2", "g1"), map[string]interface{}{
		"name": "Read", "status": "active", "visibility": "public",
	}))
	require.NoError(t, store.Set(ctx, docstore.HabitOrderPath("u2"), map[string]interface{}{"order": []interface{}{"g1"}}))

	s := New(store, "u1", Options{Location: time.UTC, Now: func() time.Time { return now }, WeekWindow: 2})
	assert.ErrorIs(t, s.ViewUser("u2"), ErrNotStarted)
	s.Start(ctx)
	defer s.Close()

	assert.ErrorIs(t, s.ViewUser("u2"), ErrNotFriends)

	require.NoError(t, store.Set(ctx, docstore.FriendsPath("u1"), map[string]interface{}{
		"friends": map[string]interface{}{"u2": map[string]interface{}{"username": "bob"}},
	}))
	require.NoError(t, s.ViewUser("u2"))
	home := s.Home.Get()
	assert.Equal(t, "u2", home.Viewing)
	require.Len(t, home.Entries, 1)
	assert.Equal(t, "Read", home.Entries[0].Habit.Name)

	// Unfriending while viewing falls back to the own view.
	require.NoError(t, store.Set(ctx, docstore.FriendsPath("u1"), map[string]interface{}{
		"friends": map[string]interface{}{},
	}))
	assert.Equal(t, "u1", s.Activity.Viewing())
}
