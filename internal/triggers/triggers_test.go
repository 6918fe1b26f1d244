package triggers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/friendship"
	"habitsAPI/internal/types/notification"
)

var now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func setProfile(t *testing.T, store docstore.Store, uid, username string) {
	require.NoError(t, store.Set(context.Background(), docstore.UserPath(uid), map[string]interface{}{
		"displayName": uid, "username": username, "avatar": "🐢",
	}))
}

func TestSyncUsername(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, docstore.UsernamePath("ada"), map[string]interface{}{"uid": "u1"}))
	require.NoError(t, store.Set(ctx, docstore.UsernamePath("bob"), map[string]interface{}{"uid": "u2"}))

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return SyncUsername(tx, "u1", "ada", "ada_l")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"usernames/ada_l", "usernames/bob"}, store.Paths())

	err = store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return SyncUsername(tx, "u1", "ada_l", "bob")
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, []string{"usernames/ada_l", "usernames/bob"}, store.Paths())

	uid, err := LookupUsername(ctx, store, "ada_l")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	_, err = LookupUsername(ctx, store, "ada")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func befriend(t *testing.T, store docstore.Store, a, b string) {
	for _, p := range [][2]string{{a, b}, {b, a}} {
		require.NoError(t, store.Merge(context.Background(), docstore.FriendsPath(p[0]), map[string]interface{}{
			"friends": map[string]interface{}{p[1]: map[string]interface{}{"username": p[1], "since": now}},
		}))
	}
}

func friendsOf(t *testing.T, store docstore.Store, uid string) friendship.List {
	snap, err := store.Get(context.Background(), docstore.FriendsPath(uid))
	require.NoError(t, err)
	var l friendship.List
	require.NoError(t, snap.DataTo(&l))
	return l
}

func TestRemoveFriendship(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	befriend(t, store, "u1", "u2")
	befriend(t, store, "u1", "u3")
	require.NoError(t, store.Set(ctx, docstore.SharedHabitsPath("u1"), map[string]interface{}{
		"refs": []interface{}{
			map[string]interface{}{"owner": "u2", "habitId": "h2"},
			map[string]interface{}{"owner": "u3", "habitId": "h3"},
		},
	}))

	require.NoError(t, RemoveFriendship(ctx, store, "u1", "u2"))
	require.NoError(t, RemoveFriendship(ctx, store, "u1", "u2"))

	assert.False(t, friendsOf(t, store, "u1").Has("u2"))
	assert.True(t, friendsOf(t, store, "u1").Has("u3"))
	assert.False(t, friendsOf(t, store, "u2").Has("u1"))

	snap, err := store.Get(ctx, docstore.SharedHabitsPath("u1"))
	require.NoError(t, err)
	refs := snap.Data["refs"].([]interface{})
	require.Len(t, refs, 1)
	assert.Equal(t, "u3", refs[0].(map[string]interface{})["owner"])
}

func TestAcceptFriendship(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	setProfile(t, store, "u1", "ada")
	setProfile(t, store, "u2", "bob")

	outcome, err := AcceptFriendship(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeNotFound, outcome)

	require.NoError(t, store.Merge(ctx, docstore.RequestsPath("u1"), map[string]interface{}{
		"incoming": map[string]interface{}{"u2": friendship.Entry{Username: "bob", Since: now}.Fields()},
	}))
	require.NoError(t, store.Merge(ctx, docstore.RequestsPath("u2"), map[string]interface{}{
		"outgoing": map[string]interface{}{"u1": friendship.Entry{Username: "ada", Since: now}.Fields()},
	}))

	outcome, err = AcceptFriendship(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeOK, outcome)

	l1 := friendsOf(t, store, "u1")
	l2 := friendsOf(t, store, "u2")
	assert.Equal(t, "bob", l1.Friends["u2"].Username)
	assert.Equal(t, "ada", l2.Friends["u1"].Username)
	assert.True(t, now.Equal(l2.Friends["u1"].Since))

	snap, err := store.Get(ctx, docstore.RequestsPath("u1"))
	require.NoError(t, err)
	assert.Empty(t, snap.Data["incoming"])
}

func TestAcceptFriendshipRespectsCap(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	full := map[string]interface{}{}
	for i := 0; i < friendship.MaxFriends; i++ {
		full[fmt.Sprintf("f%03d", i)] = map[string]interface{}{"username": "x"}
	}
	require.NoError(t, store.Set(ctx, docstore.FriendsPath("u2"), map[string]interface{}{"friends": full}))
	require.NoError(t, store.Merge(ctx, docstore.RequestsPath("u1"), map[string]interface{}{
		"incoming": map[string]interface{}{"u2": map[string]interface{}{"username": "bob"}},
	}))

	outcome, err := AcceptFriendship(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeMaxFriends, outcome)
	_, err = store.Get(ctx, docstore.FriendsPath("u1"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCheckUsernames(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	setProfile(t, store, "u1", "ada")
	setProfile(t, store, "u2", "bob")
	require.NoError(t, store.Set(ctx, docstore.UsernamePath("ada"), map[string]interface{}{"uid": "u1"}))
	require.NoError(t, store.Set(ctx, docstore.UsernamePath("old"), map[string]interface{}{"uid": "u1"}))

	report, err := CheckUsernames(ctx, store, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bob": "u2"}, report.Missing)
	assert.Equal(t, []string{"old"}, report.Orphaned)

	_, err = CheckUsernames(ctx, store, true)
	require.NoError(t, err)
	report, err = CheckUsernames(ctx, store, false)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestCheckFriendships(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	setProfile(t, store, "u1", "ada")
	setProfile(t, store, "u2", "bob")
	setProfile(t, store, "u3", "cy")
	befriend(t, store, "u1", "u2")
	require.NoError(t, store.Merge(ctx, docstore.FriendsPath("u3"), map[string]interface{}{
		"friends": map[string]interface{}{"u1": map[string]interface{}{"username": "ada"}},
	}))

	report, err := CheckFriendships(ctx, store, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3->u1"}, report.Asymmetric)

	report, err = CheckFriendships(ctx, store, false)
	require.NoError(t, err)
	assert.Empty(t, report.Asymmetric)
	assert.True(t, friendsOf(t, store, "u1").Has("u2"))
}

type recordingHandler struct {
	mu   sync.Mutex
	jobs []Job
	err  error
	done chan struct{}
}

func (r *recordingHandler) Handle(_ context.Context, job Job) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.err
}

func TestDispatcherRunsJobs(t *testing.T) {
	h := &recordingHandler{done: make(chan struct{}, 4), err: errors.New("transient")}
	d := NewDispatcher(h, 2)

	job := NewJob(JobFriendRemove)
	job.UID, job.FriendUID = "u1", "u2"
	require.NoError(t, d.Enqueue(context.Background(), job))

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}
	d.Stop()
	d.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.jobs, 1)
	assert.Equal(t, job.ID, h.jobs[0].ID)
	assert.Error(t, d.Enqueue(context.Background(), job))
}

type fakePush struct {
	pushes []notification.Push
}

func (f *fakePush) Notify(_ context.Context, p notification.Push) error {
	f.pushes = append(f.pushes, p)
	return nil
}

func TestRunner(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	befriend(t, store, "u1", "u2")
	push := &fakePush{}
	r := NewRunner(store, push)

	job := NewJob(JobFriendRemove)
	job.UID, job.FriendUID = "u2", "u1"
	require.NoError(t, r.Handle(ctx, job))
	assert.False(t, friendsOf(t, store, "u1").Has("u2"))

	pj := NewJob(JobPush)
	pj.Push = &notification.Push{UserID: "u1", Title: "hi"}
	require.NoError(t, r.Handle(ctx, pj))
	assert.Len(t, push.pushes, 1)

	assert.Error(t, r.Handle(ctx, NewJob(JobFriendRemove)))
	assert.Error(t, r.Handle(ctx, Job{Type: "nope"}))
}

func TestSendFriendRequest(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	setProfile(t, store, "u1", "ada")
	setProfile(t, store, "u2", "bob")

	outcome, accepted, err := SendFriendRequest(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeOK, outcome)
	assert.False(t, accepted)

	outcome, _, err = SendFriendRequest(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeAlreadyRequested, outcome)

	snap, err := store.Get(ctx, docstore.RequestsPath("u2"))
	require.NoError(t, err)
	var reqs friendship.Requests
	require.NoError(t, snap.DataTo(&reqs))
	assert.Equal(t, "ada", reqs.Incoming["u1"].Username)

	// The reverse request accepts the pending one.
	outcome, accepted, err = SendFriendRequest(ctx, store, "u2", "u1", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeOK, outcome)
	assert.True(t, accepted)
	assert.True(t, friendsOf(t, store, "u1").Has("u2"))
	assert.True(t, friendsOf(t, store, "u2").Has("u1"))

	outcome, _, err = SendFriendRequest(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeAlreadyFriends, outcome)
}

func TestSendFriendRequestRespectsInboxCap(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	incoming := map[string]interface{}{}
	for i := 0; i < friendship.MaxIncomingRequests; i++ {
		incoming[fmt.Sprintf("r%02d", i)] = map[string]interface{}{"username": "x"}
	}
	require.NoError(t, store.Set(ctx, docstore.RequestsPath("u2"), map[string]interface{}{"incoming": incoming}))

	outcome, _, err := SendFriendRequest(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, friendship.OutcomeMaxRequests, outcome)
}

func TestDropRequest(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	found, err := DropRequest(ctx, store, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = SendFriendRequest(ctx, store, "u1", "u2", now)
	require.NoError(t, err)
	found, err = DropRequest(ctx, store, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, found)

	snap, err := store.Get(ctx, docstore.RequestsPath("u1"))
	require.NoError(t, err)
	assert.Empty(t, snap.Data["outgoing"])
}
