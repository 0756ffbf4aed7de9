package iap

import (
	"context"

	"storeBack/internal/models"
)

// PaymentQueue is the platform payment queue collaborator. The engine submits
// purchase and restore requests, consumes batched transaction updates from
// Updates, and must acknowledge every transaction exactly once through Finish
// after reconciling it; unacknowledged transactions are redelivered.
type PaymentQueue interface {
	// CanMakePayments reports whether the platform allows purchases at all.
	CanMakePayments() bool

	// Submit places a payment request for the product on the queue.
	Submit(ctx context.Context, productID string) error

	// RestoreCompletedTransactions asks the queue to replay all prior
	// transactions. Replayed transactions arrive through Updates; the queue
	// signals overall completion or failure with a restore event.
	RestoreCompletedTransactions(ctx context.Context) error

	// Finish acknowledges a reconciled transaction.
	Finish(ctx context.Context, txn models.Transaction) error

	// Updates is the inbound event channel. The queue closes it when torn
	// down.
	Updates() <-chan QueueEvent
}

// QueueEvent is one delivery from the payment queue: either a batch of
// transaction updates or a queue-level restore completion/failure.
type QueueEvent struct {
	Transactions []models.Transaction

	RestoreFinished bool
	RestoreErr      error
}

// ReceiptSource locates the locally stored purchase receipt.
type ReceiptSource interface {
	// Receipt returns the raw receipt, or models.ErrNoReceipt when absent.
	Receipt(ctx context.Context) ([]byte, error)

	// Refresh requests a fresh receipt from the platform. It returns once the
	// platform has stored one.
	Refresh(ctx context.Context) error
}

// CatalogProvider supplies product descriptors for a set of identifiers.
type CatalogProvider interface {
	Products(ctx context.Context, ids []string) ([]models.Item, error)
}
