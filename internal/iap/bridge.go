package iap

import (
	"context"
	"sync"

	"storeBack/internal/models"
)

// QueueBridge adapts client-reported transaction outcomes to the PaymentQueue
// contract. Devices complete purchases with the platform and report the
// resulting transactions here; the bridge delivers them to the
// reconciliation loop and redelivers anything that was never acknowledged.
type QueueBridge struct {
	logger Logger

	mu      sync.Mutex
	enabled bool
	pending map[string]models.Transaction

	// sendMu serializes channel sends against Close: senders hold the read
	// side for the whole send so teardown cannot close ch underneath them.
	sendMu sync.RWMutex
	ch     chan QueueEvent
	closed bool
}

func NewQueueBridge(logger Logger) *QueueBridge {
	return &QueueBridge{
		logger:  logger,
		enabled: true,
		pending: make(map[string]models.Transaction),
		ch:      make(chan QueueEvent, 64),
	}
}

// SetPaymentsEnabled flips the payments-available switch, e.g. for
// maintenance windows.
func (b *QueueBridge) SetPaymentsEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

func (b *QueueBridge) CanMakePayments() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Submit records the outstanding request. The device drives the actual
// platform payment sheet; its outcome arrives through Deliver.
func (b *QueueBridge) Submit(ctx context.Context, productID string) error {
	b.logger.Infof("queue: payment requested for %s", productID)
	return nil
}

func (b *QueueBridge) RestoreCompletedTransactions(ctx context.Context) error {
	b.logger.Infof("queue: restore requested")
	return nil
}

// Finish acknowledges a reconciled transaction and stops its redelivery.
func (b *QueueBridge) Finish(ctx context.Context, txn models.Transaction) error {
	b.mu.Lock()
	delete(b.pending, txn.ID)
	b.mu.Unlock()
	return nil
}

func (b *QueueBridge) Updates() <-chan QueueEvent {
	return b.ch
}

// send delivers an event unless the bridge has been closed. Events offered
// after Close are dropped.
func (b *QueueBridge) send(ev QueueEvent) {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		return
	}
	b.ch <- ev
}

// Deliver queues a batch of reported transactions. Transactions stay pending
// until Finish acknowledges them; Redeliver replays the leftovers.
func (b *QueueBridge) Deliver(txns []models.Transaction) {
	b.mu.Lock()
	for _, txn := range txns {
		if txn.ID != "" {
			b.pending[txn.ID] = txn
		}
	}
	b.mu.Unlock()
	b.send(QueueEvent{Transactions: txns})
}

// CompleteRestore reports the queue-level outcome of a restore session.
func (b *QueueBridge) CompleteRestore(err error) {
	if err != nil {
		b.send(QueueEvent{RestoreErr: err})
		return
	}
	b.send(QueueEvent{RestoreFinished: true})
}

// Redeliver replays every unacknowledged transaction.
func (b *QueueBridge) Redeliver() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	txns := make([]models.Transaction, 0, len(b.pending))
	for _, txn := range b.pending {
		txns = append(txns, txn)
	}
	b.mu.Unlock()
	b.logger.Infof("queue: redelivering %d unacknowledged transactions", len(txns))
	b.send(QueueEvent{Transactions: txns})
}

// Close tears the bridge down and closes the update channel. It waits for
// in-flight sends to drain first.
func (b *QueueBridge) Close() {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
