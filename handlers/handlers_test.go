package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
	"habitsAPI/internal/triggers"
	"habitsAPI/internal/types/friendship"
	"habitsAPI/internal/types/habit"
	"habitsAPI/internal/types/profile"
	"habitsAPI/internal/types/week"
	"habitsAPI/internal/views"
	"habitsAPI/middleware"
	"habitsAPI/services"
)

// Wednesday.
var testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

type fakeVerifier map[string]*middleware.Identity

func (f fakeVerifier) VerifyToken(_ context.Context, token string) (*middleware.Identity, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return nil, errors.New("bad token")
}

type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, triggers.Job) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	store := docstore.NewMemory()
	manager := services.NewSessionManager(context.Background(), store, session.Options{
		Location:   time.UTC,
		Now:        func() time.Time { return testNow },
		WeekWindow: 4,
	})
	t.Cleanup(manager.Close)

	profiles := services.NewProfileService(store)
	h := Handlers{
		Profile: NewProfileHandler(manager, profiles),
		Habit:   NewHabitHandler(manager, services.NewHabitService(store)),
		Week:    NewWeekHandler(manager, services.NewWeekService(store)),
		Journal: NewJournalHandler(manager, services.NewJournalService(store)),
		Timer:   NewTimerHandler(manager, services.NewTimerService(store)),
		Friend:  NewFriendHandler(manager, services.NewFriendService(store, nopQueue{})),
		Device:  NewDeviceHandler(manager, services.NewDeviceService(store)),
		Session: NewSessionHandler(manager),
		Live:    NewLiveHandler(manager, profiles),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(fakeVerifier{
		"tok-u1": {UID: "u1", DisplayName: "Ada Lovelace"},
		"tok-u2": {UID: "u2", DisplayName: "Grace Hopper"},
	}))
	RegisterRoutes(api, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+"/api/v1"+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestProfileHabitAndTrackerRoutes(t *testing.T) {
	srv := newTestServer(t)

	var p profile.Profile
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/profile", "tok-u1", nil, &p))
	assert.Equal(t, "ada_lovelace", p.Username)

	var created habit.Habit
	require.Equal(t, http.StatusCreated, call(t, srv, "POST", "/habits", "tok-u1",
		map[string]interface{}{"name": "Read", "icon": "book", "weeklyFrequency": 3}, &created))
	assert.Equal(t, habit.StatusActive, created.Status)
	assert.Equal(t, habit.VisibilityPrivate, created.Visibility)

	var order habit.Order
	require.Equal(t, http.StatusOK, call(t, srv, "PUT", "/habits/order", "tok-u1",
		habit.SaveOrderRequest{Order: []string{created.ID, created.ID}}, &order))
	assert.Equal(t, []string{created.ID}, order.Order)

	var tracker week.TrackerResponse
	require.Equal(t, http.StatusOK, call(t, srv, "PUT", "/weeks/2026-10-12/trackers", "tok-u1",
		week.SetTrackerRequest{HabitID: created.ID, Date: "2026-10-14", Status: week.Done}, &tracker))
	assert.Equal(t, week.Done, tracker.Row[2])

	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/weeks/2026-10-12/trackers/cycle", "tok-u1",
		week.CycleRequest{HabitID: created.ID, Date: "2026-10-14"}, &tracker))
	assert.Equal(t, week.Skipped, tracker.Status)

	var home views.Home
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/home", "tok-u1", nil, &home))
	assert.Equal(t, "2026-10-12", home.WeekKey)
	require.Len(t, home.Entries, 1)
	assert.Equal(t, "Read", home.Entries[0].Habit.Name)
	assert.Equal(t, week.Skipped, home.Entries[0].Week[2])

	var ended map[string]bool
	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/session/end", "tok-u1", nil, &ended))
	assert.True(t, ended["ended"])
}

func TestServiceErrorsMapToStatuses(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/profile", "tok-u1", nil, nil))

	assert.Equal(t, http.StatusUnauthorized, call(t, srv, "GET", "/home", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, "POST", "/habits", "tok-u1", "{not json", nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, "POST", "/habits", "tok-u1", habit.EditRequest{Name: "  "}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, "PUT", "/habits/missing/status", "tok-u1",
		habit.SetStatusRequest{Status: habit.StatusArchived}, nil))
	assert.Equal(t, http.StatusConflict, call(t, srv, "POST", "/timer/stop", "tok-u1", nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, srv, "PUT", "/home/view", "tok-u1",
		map[string]string{"uid": "stranger"}, nil))

	var untimed habit.Habit
	require.Equal(t, http.StatusCreated, call(t, srv, "POST", "/habits", "tok-u1", habit.EditRequest{Name: "Walk"}, &untimed))
	assert.Equal(t, http.StatusUnprocessableEntity, call(t, srv, "POST", "/timer/start", "tok-u1",
		map[string]string{"habitId": untimed.ID}, nil))
}

func TestFriendRoutes(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/profile", "tok-u1", nil, nil))
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/profile", "tok-u2", nil, nil))

	var out friendship.OutcomeResponse
	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/friends/requests", "tok-u1",
		friendship.SendRequest{Username: "nobody_here"}, &out))
	assert.Equal(t, friendship.OutcomeNotFound, out.Outcome)

	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/friends/requests", "tok-u1",
		friendship.SendRequest{Username: "Grace_Hopper"}, &out))
	assert.Equal(t, friendship.OutcomeOK, out.Outcome)

	var overview friendship.Overview
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/friends", "tok-u2", nil, &overview))
	assert.Contains(t, overview.Incoming, "u1")

	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/friends/requests/u1/accept", "tok-u2", nil, &out))
	assert.Equal(t, friendship.OutcomeOK, out.Outcome)

	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/friends", "tok-u1", nil, &overview))
	assert.Contains(t, overview.Friends, "u2")
	assert.Empty(t, overview.Outgoing)

	var home views.Home
	require.Equal(t, http.StatusOK, call(t, srv, "PUT", "/home/view", "tok-u1", map[string]string{"uid": "u2"}, &home))
	assert.Equal(t, "u2", home.Viewing)

	require.Equal(t, http.StatusOK, call(t, srv, "DELETE", "/friends/u2", "tok-u1", nil, &out))
	assert.Equal(t, friendship.OutcomeOK, out.Outcome)
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/home", "tok-u1", nil, &home))
	assert.Equal(t, "u1", home.Viewing)
}

func TestLiveStreamsHome(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/live?token=tok-u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	next := func() liveEvent {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev liveEvent
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	first := next()
	require.Equal(t, "home", first.Type)
	assert.Empty(t, first.Home.Entries)

	require.Equal(t, http.StatusCreated, call(t, srv, "POST", "/habits", "tok-u1", habit.EditRequest{Name: "Stretch"}, nil))
	for {
		ev := next()
		if ev.Type == "home" && len(ev.Home.Entries) == 1 {
			assert.Equal(t, "Stretch", ev.Home.Entries[0].Habit.Name)
			break
		}
	}

	require.NoError(t, conn.WriteJSON(liveMessage{Action: "view", UID: "stranger"}))
	for {
		ev := next()
		if ev.Type == "error" {
			assert.Equal(t, session.ErrNotFriends.Error(), ev.Error)
			break
		}
	}
}
