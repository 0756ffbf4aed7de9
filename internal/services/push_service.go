package services

import (
	"context"

	"firebase.google.com/go/messaging"

	"storeBack/internal/iap"
	"storeBack/internal/models"
	"storeBack/internal/repositories"
)

// PushService delivers FCM notifications to registered devices.
type PushService struct {
	Client  *messaging.Client
	Devices *repositories.DeviceRepository
	Logger  iap.Logger
}

func NewPushService(client *messaging.Client, devices *repositories.DeviceRepository, logger iap.Logger) *PushService {
	return &PushService{Client: client, Devices: devices, Logger: logger}
}

func (s *PushService) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}

	_, err := s.Client.Send(ctx, message)
	return err
}

// Broadcast sends the notification to every device with an FCM token.
// Per-token failures are logged and skipped.
func (s *PushService) Broadcast(ctx context.Context, title, body string, data map[string]string) {
	tokens, err := s.Devices.PushTokens(ctx)
	if err != nil {
		s.Logger.Errorf("push: load tokens: %v", err)
		return
	}
	for _, token := range tokens {
		if err := s.Send(ctx, token, title, body, data); err != nil {
			s.Logger.Errorf("push: send to %s: %v", token, err)
		}
	}
}

// PushListener notifies registered devices about completed purchases and
// restores. It ignores the rest of the lifecycle.
type PushListener struct {
	iap.NopListener
	Push *PushService
}

func NewPushListener(push *PushService) *PushListener {
	return &PushListener{Push: push}
}

func (l *PushListener) DidPurchase(item models.Item) {
	l.Push.Broadcast(context.Background(), "Purchase complete", item.Title, map[string]string{
		"product_id": item.ProductID,
		"event":      "purchased",
	})
}

func (l *PushListener) DidRestore(item models.Item) {
	l.Push.Broadcast(context.Background(), "Purchase restored", item.Title, map[string]string{
		"product_id": item.ProductID,
		"event":      "restored",
	})
}
