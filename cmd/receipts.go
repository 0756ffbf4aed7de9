package main

import (
	"context"
	"errors"
	"time"

	"storeBack/internal/models"
	"storeBack/internal/repositories"
)

const receiptRefreshTimeout = 5 * time.Minute

// receiptVault serves the newest uploaded receipt to the store engine. A
// refresh request asks connected devices to upload a fresh receipt and waits
// for the first one to arrive.
type receiptVault struct {
	repo    *repositories.ReceiptRepository
	ws      *WebSocketManager
	arrived chan struct{}
}

func newReceiptVault(repo *repositories.ReceiptRepository, ws *WebSocketManager) *receiptVault {
	return &receiptVault{
		repo:    repo,
		ws:      ws,
		arrived: make(chan struct{}, 1),
	}
}

func (v *receiptVault) Receipt(ctx context.Context) ([]byte, error) {
	return v.repo.Latest(ctx)
}

func (v *receiptVault) Refresh(ctx context.Context) error {
	v.ws.Broadcast(models.StoreEvent{Event: "receipt_requested"})

	timer := time.NewTimer(receiptRefreshTimeout)
	defer timer.Stop()
	select {
	case <-v.arrived:
		return nil
	case <-timer.C:
		return errors.New("no receipt uploaded")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyUploaded wakes a pending Refresh. Extra signals are dropped.
func (v *receiptVault) notifyUploaded() {
	select {
	case v.arrived <- struct{}{}:
	default:
	}
}
