package friendship

import "time"

const (
	MaxFriends          = 100
	MaxIncomingRequests = 50
)

// Outcome is the business result of a friend operation.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeInvalid          Outcome = "invalid"
	OutcomeNotFound         Outcome = "not-found"
	OutcomeSelf             Outcome = "self"
	OutcomeAlreadyFriends   Outcome = "already-friends"
	OutcomeAlreadyRequested Outcome = "already-requested"
	OutcomeMaxRequests      Outcome = "max-requests"
	OutcomeMaxFriends       Outcome = "max-friends"
)

// Entry is the denormalized profile of the other side of a friendship or request.
type Entry struct {
	Since       time.Time `json:"since" firestore:"since"`
	DisplayName string    `json:"displayName" firestore:"displayName"`
	Avatar      string    `json:"avatar" firestore:"avatar"`
	Username    string    `json:"username" firestore:"username"`
}

func (e Entry) Fields() map[string]interface{} {
	return map[string]interface{}{
		"since":       e.Since,
		"displayName": e.DisplayName,
		"avatar":      e.Avatar,
		"username":    e.Username,
	}
}

// List is users/{uid}/social/friends.
type List struct {
	Friends map[string]Entry `json:"friends" firestore:"friends"`
}

func (l List) Has(uid string) bool {
	_, ok := l.Friends[uid]
	return ok
}

// Requests is users/{uid}/social/requests.
type Requests struct {
	Incoming map[string]Entry `json:"incoming" firestore:"incoming"`
	Outgoing map[string]Entry `json:"outgoing" firestore:"outgoing"`
}

type SendRequest struct {
	Username string `json:"username"`
}

type OutcomeResponse struct {
	Outcome Outcome `json:"outcome"`
}

// Overview is the caller's friends and pending requests.
type Overview struct {
	Friends  map[string]Entry `json:"friends"`
	Incoming map[string]Entry `json:"incoming"`
	Outgoing map[string]Entry `json:"outgoing"`
}
