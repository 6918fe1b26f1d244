package services

import (
	"context"
	"fmt"
	"strings"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
	"habitsAPI/internal/types/notification"
)

var platforms = map[string]bool{"ios": true, "android": true, "web": true}

type DeviceService struct {
	store docstore.Store
}

func NewDeviceService(store docstore.Store) *DeviceService {
	return &DeviceService{store: store}
}

// RegisterDevice stores a push token. Registering a known token refreshes
// its platform and last use.
func (s *DeviceService) RegisterDevice(ctx context.Context, sess *session.Session, req *notification.RegisterDeviceRequest) error {
	token := strings.TrimSpace(req.Token)
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if token == "" {
		return fmt.Errorf("%w: device token is required", ErrInvalidInput)
	}
	if !platforms[platform] {
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, req.Platform)
	}

	now := sess.Clock.Now()
	var next notification.Devices
	return sess.Devices.Mutate(ctx, func(d *notification.Devices) {
		tokens := make([]notification.DeviceToken, 0, len(d.Tokens)+1)
		found := false
		for _, t := range d.Tokens {
			if t.Token == token {
				t.Platform = platform
				t.LastUsed = now
				found = true
			}
			tokens = append(tokens, t)
		}
		if !found {
			tokens = append(tokens, notification.DeviceToken{Token: token, Platform: platform, AddedAt: now, LastUsed: now})
		}
		d.Tokens = tokens
		next = notification.Devices{Tokens: tokens}
	}, func(ctx context.Context) error {
		return s.store.Set(ctx, docstore.DevicesPath(sess.UID), next.Fields())
	})
}
