package models

import (
	"time"
)

// Entitlement is the durable record that a product has been purchased,
// together with the subscription expiration reported by receipt validation.
// Records are created on first write and never deleted: resetting a purchase
// only clears the flag.
type Entitlement struct {
	ProductID string     `json:"product_id"`
	Purchased bool       `json:"purchased"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ActiveSubscription reports whether the entitlement carries an expiration
// date that is still in the future.
func (e Entitlement) ActiveSubscription(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.After(now)
}
