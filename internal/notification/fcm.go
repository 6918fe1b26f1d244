package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/notification"
)

// Messenger is the part of the FCM client used here.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMService struct {
	client Messenger
	store  docstore.Store
}

func NewFCMService(ctx context.Context, app *firebase.App, store docstore.Store) (*FCMService, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FCMService{client: client, store: store}, nil
}

func NewFCMServiceWithClient(client Messenger, store docstore.Store) *FCMService {
	return &FCMService{client: client, store: store}
}

// Notify sends push to every registered device of push.UserID.
func (s *FCMService) Notify(ctx context.Context, push notification.Push) error {
	snap, err := s.store.Get(ctx, docstore.DevicesPath(push.UserID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load devices of %s: %w", push.UserID, err)
	}
	var devices notification.Devices
	if err := snap.DataTo(&devices); err != nil {
		return fmt.Errorf("failed to decode devices of %s: %w", push.UserID, err)
	}
	data := map[string]any{"type": string(push.Type)}
	for k, v := range push.Data {
		data[k] = v
	}
	return s.SendPush(ctx, devices.Tokens, push.Title, push.Body, data)
}

// SendPush sends one message per token; batch sends are not used.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	if len(tokens) == 0 {
		return nil
	}

	stringData := make(map[string]string, len(data))
	for k, v := range data {
		stringData[k] = fmt.Sprintf("%v", v)
	}

	successCount := 0
	failureCount := 0
	for _, t := range tokens {
		message := &messaging.Message{
			Token: t.Token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: stringData,
		}
		switch t.Platform {
		case "android", "":
			message.Android = &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			}
		case "ios":
			message.APNS = &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			}
		case "web":
			message.Webpush = &messaging.WebpushConfig{
				Notification: &messaging.WebpushNotification{Title: title, Body: body},
			}
		}

		if _, err := s.client.Send(ctx, message); err != nil {
			log.Printf("FCM: Failed to send to token %s: %v", t.Token, err)
			failureCount++
			continue
		}
		successCount++
	}

	log.Printf("FCM: Sent %d messages, %d failed", successCount, failureCount)
	if successCount == 0 && failureCount > 0 {
		return fmt.Errorf("all push notifications failed")
	}
	return nil
}
