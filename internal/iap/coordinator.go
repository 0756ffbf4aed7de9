package iap

import (
	"context"
	"errors"

	"storeBack/internal/iap/fsm"
	"storeBack/internal/models"
)

// Purchase starts a purchase attempt for a catalog product. It fails fast,
// with no state change and no queue submission, when payments are
// unavailable, the identifier is unknown, a purchase is already in flight or
// the product is already purchased.
func (s *Store) Purchase(ctx context.Context, productID string) error {
	if !s.deps.Queue.CanMakePayments() {
		return models.ErrPaymentsUnavailable
	}

	s.mu.Lock()
	item, ok := s.product(productID)
	if !ok {
		s.mu.Unlock()
		s.deps.Logger.Errorf("iap: product identifier is invalid: %s", productID)
		return models.ErrUnknownProduct
	}
	if s.purchaseInProgress {
		s.mu.Unlock()
		s.deps.Logger.Infof("iap: purchase in progress")
		return models.ErrPurchaseInProgress
	}
	s.mu.Unlock()

	purchased, err := s.IsPurchased(ctx, productID)
	if err != nil {
		return err
	}
	if purchased {
		s.deps.Logger.Infof("iap: can't buy product %s, already bought", productID)
		return models.ErrAlreadyPurchased
	}

	s.deps.Logger.Infof("iap: will buy product: %s", item.Title)
	s.hub.WillPurchase(item)
	s.deps.Busy.Begin()

	s.mu.Lock()
	if s.purchaseInProgress {
		// lost the race to another caller
		s.mu.Unlock()
		s.deps.Busy.End()
		return models.ErrPurchaseInProgress
	}
	s.purchaseInProgress = true
	s.purchasingID = productID
	s.attemptStatus = fsm.StatusRequested
	s.mu.Unlock()

	if err := s.deps.Queue.Submit(ctx, productID); err != nil {
		s.mu.Lock()
		s.purchaseInProgress = false
		s.purchasingID = ""
		s.attemptStatus = fsm.StatusIdle
		s.mu.Unlock()
		s.deps.Busy.End()
		s.hub.PurchaseError(err)
		return err
	}

	s.mu.Lock()
	s.attemptStatus = fsm.StatusAwaitingQueue
	s.mu.Unlock()
	return nil
}

// RestorePurchases asks the queue to replay all prior transactions. The
// replayed transactions are reconciled one by one through the usual path; the
// queue-level completion or failure event deasserts the busy signal.
func (s *Store) RestorePurchases(ctx context.Context) error {
	s.deps.Busy.Begin()
	if err := s.deps.Queue.RestoreCompletedTransactions(ctx); err != nil {
		s.deps.Busy.End()
		s.deps.Logger.Errorf("iap: restore failed: %v", err)
		s.hub.RestoreError(err)
		return err
	}
	return nil
}

// handleEvent reconciles one queue delivery.
func (s *Store) handleEvent(ctx context.Context, ev QueueEvent) {
	for _, txn := range ev.Transactions {
		switch txn.Outcome {
		case models.TransactionPurchased:
			s.complete(ctx, txn)
		case models.TransactionRestored:
			s.restore(ctx, txn)
		case models.TransactionFailed:
			s.fail(ctx, txn)
		default:
			s.deps.Logger.Errorf("iap: unknown transaction outcome %q for %s", txn.Outcome, txn.ID)
		}
	}

	if ev.RestoreErr != nil {
		s.deps.Busy.End()
		s.deps.Logger.Errorf("iap: restore failed: %v", ev.RestoreErr)
		s.hub.RestoreError(ev.RestoreErr)
		return
	}
	if ev.RestoreFinished {
		s.deps.Busy.End()
	}
}

// complete reconciles a successful purchase transaction.
func (s *Store) complete(ctx context.Context, txn models.Transaction) {
	s.deps.Logger.Infof("iap: transaction complete: %s", txn.ID)

	replay, err := s.alreadyProcessed(ctx, txn)
	if err != nil {
		s.deps.Logger.Errorf("iap: check transaction %s: %v", txn.ID, err)
		return
	}
	if replay {
		s.acknowledge(ctx, txn)
		s.finishAttempt(txn.ProductID, fsm.StatusCompleted)
		return
	}

	s.mu.Lock()
	err = s.writePurchased(ctx, txn.ProductID, true)
	s.mu.Unlock()
	if err != nil {
		// leave the transaction unacknowledged so the queue redelivers it
		s.deps.Logger.Errorf("iap: record purchase %s: %v", txn.ProductID, err)
		return
	}
	if err := s.transactions.Save(ctx, txn); err != nil {
		s.deps.Logger.Errorf("iap: save transaction %s: %v", txn.ID, err)
		return
	}

	s.notifyPurchased(txn.ProductID, false)
	s.acknowledge(ctx, txn)
	s.finishAttempt(txn.ProductID, fsm.StatusCompleted)
}

// restore reconciles a restored transaction. The entitlement write uses the
// original transaction's product identifier: the restore wrapper may carry a
// different one.
func (s *Store) restore(ctx context.Context, txn models.Transaction) {
	s.deps.Logger.Infof("iap: transaction restore: %s", txn.ID)

	productID := txn.OriginalProductID
	if productID == "" {
		productID = txn.ProductID
	}

	replay, err := s.alreadyProcessed(ctx, txn)
	if err != nil {
		s.deps.Logger.Errorf("iap: check transaction %s: %v", txn.ID, err)
		return
	}
	if replay {
		s.acknowledge(ctx, txn)
		s.finishAttempt(txn.ProductID, fsm.StatusRestored)
		return
	}

	s.mu.Lock()
	err = s.writePurchased(ctx, productID, true)
	s.mu.Unlock()
	if err != nil {
		s.deps.Logger.Errorf("iap: record restore %s: %v", productID, err)
		return
	}
	if err := s.transactions.Save(ctx, txn); err != nil {
		s.deps.Logger.Errorf("iap: save transaction %s: %v", txn.ID, err)
		return
	}

	s.notifyPurchased(productID, true)

	go func() {
		if err := s.RefreshSubscriptions(context.Background()); err != nil {
			s.deps.Logger.Errorf("iap: refresh subscriptions: %v", err)
		}
	}()

	s.acknowledge(ctx, txn)
	s.finishAttempt(txn.ProductID, fsm.StatusRestored)
}

// fail reconciles a failed transaction. Cancellation never grants an
// entitlement and is reported separately from other failures.
func (s *Store) fail(ctx context.Context, txn models.Transaction) {
	s.deps.Logger.Errorf("iap: transaction failed: %s (%s)", txn.ID, txn.Error)

	replay, err := s.alreadyProcessed(ctx, txn)
	if err != nil {
		s.deps.Logger.Errorf("iap: check transaction %s: %v", txn.ID, err)
		return
	}
	if !replay {
		if err := s.transactions.Save(ctx, txn); err != nil {
			s.deps.Logger.Errorf("iap: save transaction %s: %v", txn.ID, err)
			return
		}
		platformErr := errors.New(txn.Error)
		if txn.Canceled {
			s.hub.PurchaseCanceled(platformErr)
		} else {
			s.hub.PurchaseError(platformErr)
		}
	}

	s.acknowledge(ctx, txn)
	status := fsm.StatusFailed
	if txn.Canceled {
		status = fsm.StatusCanceled
	}
	s.finishAttempt(txn.ProductID, status)
}

// alreadyProcessed reports whether the transaction id has been reconciled
// before. Transactions without an id cannot be tracked and are treated as
// fresh.
func (s *Store) alreadyProcessed(ctx context.Context, txn models.Transaction) (bool, error) {
	if txn.ID == "" {
		return false, nil
	}
	return s.transactions.IsProcessed(ctx, txn.ID)
}

// acknowledge finishes the transaction with the queue. Every reconciled
// transaction, including replays, cancellations and errors, is acknowledged.
func (s *Store) acknowledge(ctx context.Context, txn models.Transaction) {
	if err := s.deps.Queue.Finish(ctx, txn); err != nil {
		s.deps.Logger.Errorf("iap: finish transaction %s: %v", txn.ID, err)
	}
}

// finishAttempt clears the purchase session when the terminal transaction
// matches it, and deasserts the busy signal exactly once per outstanding
// request.
func (s *Store) finishAttempt(productID, status string) {
	s.mu.Lock()
	matched := s.purchaseInProgress && s.purchasingID == productID
	if matched {
		if !fsm.CanTransition(s.attemptStatus, status) {
			s.deps.Logger.Errorf("iap: unexpected attempt transition %s -> %s", s.attemptStatus, status)
		}
		s.purchaseInProgress = false
		s.purchasingID = ""
		s.attemptStatus = fsm.StatusIdle
	}
	s.mu.Unlock()
	if matched {
		s.deps.Busy.End()
	}
}

// notifyPurchased routes the success notification: catalog items get the
// purchase/restore callback with the item, unknown identifiers report as a
// reconciled but unlisted product.
func (s *Store) notifyPurchased(productID string, isRestore bool) {
	s.mu.Lock()
	item, ok := s.product(productID)
	s.mu.Unlock()

	if !ok {
		s.hub.DidRestoreUnlisted(productID)
		return
	}
	if isRestore {
		s.deps.Logger.Infof("iap: did restore product: %s", item.Title)
		s.hub.DidRestore(item)
		return
	}
	s.deps.Logger.Infof("iap: did purchase product: %s", item.Title)
	s.hub.DidPurchase(item)
}
