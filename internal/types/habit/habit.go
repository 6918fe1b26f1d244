package habit

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusArchived  Status = "archived"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSuspended || s == StatusArchived
}

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

type Habit struct {
	ID    string `json:"id" firestore:"-"`
	Owner string `json:"owner,omitempty" firestore:"-"`

	Name       string     `json:"name" firestore:"name"`
	Icon       string     `json:"icon" firestore:"icon"`
	Status     Status     `json:"status" firestore:"status"`
	Visibility Visibility `json:"visibility" firestore:"visibility"`
	// WeeklyFrequency is nil for habits without streak tracking.
	WeeklyFrequency *int   `json:"weeklyFrequency" firestore:"weeklyFrequency"`
	Timeable        bool   `json:"timeable" firestore:"timeable"`
	Palette         string `json:"palette" firestore:"palette"`
}

func (h Habit) Fields() map[string]interface{} {
	var freq interface{}
	if h.WeeklyFrequency != nil {
		freq = int64(*h.WeeklyFrequency)
	}
	return map[string]interface{}{
		"name":            h.Name,
		"icon":            h.Icon,
		"status":          string(h.Status),
		"visibility":      string(h.Visibility),
		"weeklyFrequency": freq,
		"timeable":        h.Timeable,
		"palette":         h.Palette,
	}
}

func (h Habit) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("habit name is required")
	}
	if len(h.Name) > 100 {
		return fmt.Errorf("habit name is too long")
	}
	if !h.Status.Valid() {
		return fmt.Errorf("invalid habit status %q", h.Status)
	}
	if !h.Visibility.Valid() {
		return fmt.Errorf("invalid habit visibility %q", h.Visibility)
	}
	if h.WeeklyFrequency != nil && (*h.WeeklyFrequency < 1 || *h.WeeklyFrequency > 7) {
		return fmt.Errorf("weekly frequency must be between 1 and 7")
	}
	return nil
}

// Order is the per-user display order of habit ids.
type Order struct {
	Order []string `json:"order" firestore:"order"`
}

func (o Order) Fields() map[string]interface{} {
	ids := make([]interface{}, len(o.Order))
	for i, id := range o.Order {
		ids[i] = id
	}
	return map[string]interface{}{"order": ids}
}

// SharedRef points at a friend's habit pinned to the owner's home view.
type SharedRef struct {
	Owner   string `json:"owner" firestore:"owner"`
	HabitID string `json:"habitId" firestore:"habitId"`
}

type Shared struct {
	Refs []SharedRef `json:"refs" firestore:"refs"`
}

func (s Shared) Fields() map[string]interface{} {
	refs := make([]interface{}, len(s.Refs))
	for i, r := range s.Refs {
		refs[i] = map[string]interface{}{"owner": r.Owner, "habitId": r.HabitID}
	}
	return map[string]interface{}{"refs": refs}
}

type EditRequest struct {
	Name            string     `json:"name"`
	Icon            string     `json:"icon"`
	Status          Status     `json:"status,omitempty"`
	Visibility      Visibility `json:"visibility,omitempty"`
	WeeklyFrequency *int       `json:"weeklyFrequency"`
	Timeable        bool       `json:"timeable"`
	Palette         string     `json:"palette"`
}

type SetStatusRequest struct {
	Status Status `json:"status"`
}

type SetVisibilityRequest struct {
	Visibility Visibility `json:"visibility"`
}

type SaveOrderRequest struct {
	Order []string `json:"order"`
}

type ShareRequest struct {
	Owner   string `json:"owner"`
	HabitID string `json:"habitId"`
}
