package models

// Transaction outcomes reported by the payment queue.
const (
	TransactionPurchased = "purchased"
	TransactionRestored  = "restored"
	TransactionFailed    = "failed"
)

// Transaction is a single reported outcome of a purchase or restore attempt.
// It is transient: consumed once by the reconciliation loop and then
// acknowledged back to the queue. The queue may deliver transactions in
// batches, out of order and more than once across restarts.
type Transaction struct {
	ID        string `json:"transaction_id"`
	ProductID string `json:"product_id"`
	Outcome   string `json:"outcome"`

	// OriginalID and OriginalProductID identify the original purchase for
	// restored transactions. A restore always refers back to the original
	// purchase, not to the wrapper transaction the queue delivers.
	OriginalID        string `json:"original_transaction_id,omitempty"`
	OriginalProductID string `json:"original_product_id,omitempty"`

	// Canceled marks a failed transaction that the user aborted. Cancellation
	// must never grant an entitlement.
	Canceled bool   `json:"canceled,omitempty"`
	Error    string `json:"error,omitempty"`
}
