package models

import "time"

// Device is a registered app install. Devices authenticate with a secret
// issued at registration time and may attach an FCM token for push delivery.
type Device struct {
	ID        string     `json:"device_id"`
	Platform  string     `json:"platform"` // "ios" | "android"
	FCMToken  string     `json:"fcm_token,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
