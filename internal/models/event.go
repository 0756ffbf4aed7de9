package models

import "time"

// StoreEvent is one lifecycle event pushed to websocket subscribers.
type StoreEvent struct {
	Event     string    `json:"event"`
	ProductID string    `json:"product_id,omitempty"`
	Items     []Item    `json:"items,omitempty"`
	Error     string    `json:"error,omitempty"`
	Busy      *bool     `json:"busy,omitempty"`
	At        time.Time `json:"at"`
}
