package profile

import (
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

type Profile struct {
	UID         string `json:"uid" firestore:"-"`
	DisplayName string `json:"displayName" firestore:"displayName"`
	Username    string `json:"username" firestore:"username"`
	Avatar      string `json:"avatar" firestore:"avatar"`
}

func (p Profile) Fields() map[string]interface{} {
	return map[string]interface{}{
		"displayName": p.DisplayName,
		"username":    p.Username,
		"avatar":      p.Avatar,
	}
}

// UsernameEntry is the usernames/{username} document owning a username.
type UsernameEntry struct {
	UID string `json:"uid" firestore:"uid"`
}

// ValidUsername reports whether s is 3-30 chars of lowercase letters, digits or underscores.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

type SetUsernameRequest struct {
	Username string `json:"username"`
}

// UsernameOutcome is the result of claiming a username.
type UsernameOutcome string

const (
	UsernameOK      UsernameOutcome = "ok"
	UsernameInvalid UsernameOutcome = "invalid"
	UsernameTaken   UsernameOutcome = "taken"
)

type UsernameResponse struct {
	Outcome  UsernameOutcome `json:"outcome"`
	Username string          `json:"username,omitempty"`
}

// SuggestUsername derives a valid username base from a display name.
func SuggestUsername(displayName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(displayName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if len(name) > 24 {
		name = name[:24]
	}
	for len(name) < 3 {
		name += "_"
	}
	if name == "___" {
		name = "user"
	}
	return name
}
