package timer

import "time"

// State is users/{uid}/private/timer. An empty HabitID means no timer runs.
type State struct {
	HabitID   string    `json:"habitId" firestore:"habitId"`
	StartedAt time.Time `json:"startedAt" firestore:"startedAt"`
}

func (s State) Running() bool {
	return s.HabitID != ""
}

func (s State) Fields() map[string]interface{} {
	return map[string]interface{}{
		"habitId":   s.HabitID,
		"startedAt": s.StartedAt,
	}
}

type StartRequest struct {
	HabitID string `json:"habitId"`
}

type StatusResponse struct {
	Running bool      `json:"running"`
	HabitID string    `json:"habitId,omitempty"`
	Elapsed int       `json:"elapsed"`
	Since   time.Time `json:"since,omitempty"`
}

type StopResponse struct {
	HabitID string `json:"habitId"`
	Date    string `json:"date"`
	Seconds int    `json:"seconds"`
	Total   int    `json:"total"`
}
