package handlers

import (
	"github.com/gorilla/mux"
)

type Handlers struct {
	Profile *ProfileHandler
	Habit   *HabitHandler
	Week    *WeekHandler
	Journal *JournalHandler
	Timer   *TimerHandler
	Friend  *FriendHandler
	Device  *DeviceHandler
	Session *SessionHandler
	Live    *LiveHandler
}

// RegisterRoutes mounts the authenticated API on r.
func RegisterRoutes(r *mux.Router, h Handlers) {
	r.HandleFunc("/profile", h.Profile.GetProfile).Methods("GET")
	r.HandleFunc("/profile", h.Profile.UpdateProfile).Methods("PUT")
	r.HandleFunc("/profile/username", h.Profile.SetUsername).Methods("PUT")

	r.HandleFunc("/habits", h.Habit.CreateHabit).Methods("POST")
	r.HandleFunc("/habits/order", h.Habit.SaveOrder).Methods("PUT")
	r.HandleFunc("/habits/shared", h.Habit.ShareHabit).Methods("POST")
	r.HandleFunc("/habits/shared", h.Habit.UnshareHabit).Methods("DELETE")
	r.HandleFunc("/habits/{id}", h.Habit.EditHabit).Methods("PUT")
	r.HandleFunc("/habits/{id}", h.Habit.DeleteHabit).Methods("DELETE")
	r.HandleFunc("/habits/{id}/status", h.Habit.SetStatus).Methods("PUT")
	r.HandleFunc("/habits/{id}/visibility", h.Habit.SetVisibility).Methods("PUT")

	r.HandleFunc("/weeks/{week}/trackers", h.Week.SetTracker).Methods("PUT")
	r.HandleFunc("/weeks/{week}/trackers/cycle", h.Week.CycleTracker).Methods("POST")
	r.HandleFunc("/weeks/{week}/icon", h.Week.SetIcon).Methods("PUT")

	r.HandleFunc("/notes", h.Journal.CreateNote).Methods("POST")
	r.HandleFunc("/notes/{id}", h.Journal.UpdateNote).Methods("PUT")
	r.HandleFunc("/notes/{id}", h.Journal.DeleteNote).Methods("DELETE")

	r.HandleFunc("/timer", h.Timer.Status).Methods("GET")
	r.HandleFunc("/timer/start", h.Timer.Start).Methods("POST")
	r.HandleFunc("/timer/stop", h.Timer.Stop).Methods("POST")

	r.HandleFunc("/friends", h.Friend.GetFriends).Methods("GET")
	r.HandleFunc("/friends/requests", h.Friend.SendRequest).Methods("POST")
	r.HandleFunc("/friends/requests/{uid}/accept", h.Friend.AcceptRequest).Methods("POST")
	r.HandleFunc("/friends/requests/{uid}/decline", h.Friend.DeclineRequest).Methods("POST")
	r.HandleFunc("/friends/requests/{uid}/cancel", h.Friend.CancelRequest).Methods("POST")
	r.HandleFunc("/friends/{uid}", h.Friend.RemoveFriend).Methods("DELETE")

	r.HandleFunc("/devices", h.Device.RegisterDevice).Methods("POST")

	r.HandleFunc("/home", h.Session.GetHome).Methods("GET")
	r.HandleFunc("/home/view", h.Session.ViewUser).Methods("PUT")
	r.HandleFunc("/session/end", h.Session.EndSession).Methods("POST")

	r.HandleFunc("/live", h.Live.Connect).Methods("GET")
}
