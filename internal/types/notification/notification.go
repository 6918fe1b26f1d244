package notification

import "time"

type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
)

type DeviceToken struct {
	Token    string    `json:"token" firestore:"token"`
	Platform string    `json:"platform" firestore:"platform"`
	AddedAt  time.Time `json:"added_at" firestore:"addedAt"`
	LastUsed time.Time `json:"last_used" firestore:"lastUsed"`
}

func (t DeviceToken) Fields() map[string]interface{} {
	return map[string]interface{}{
		"token":    t.Token,
		"platform": t.Platform,
		"addedAt":  t.AddedAt,
		"lastUsed": t.LastUsed,
	}
}

// Devices is users/{uid}/private/devices.
type Devices struct {
	Tokens []DeviceToken `json:"tokens" firestore:"tokens"`
}

func (d Devices) Fields() map[string]interface{} {
	tokens := make([]interface{}, len(d.Tokens))
	for i, t := range d.Tokens {
		tokens[i] = t.Fields()
	}
	return map[string]interface{}{"tokens": tokens}
}
