package iap

import (
	"context"
	"sync"
	"testing"

	"storeBack/internal/models"
)

func TestBridgeRedeliversUntilFinished(t *testing.T) {
	b := NewQueueBridge(nopLogger{})
	defer b.Close()

	txn := models.Transaction{ID: "t-1", ProductID: "com.app.gold", Outcome: models.TransactionPurchased}
	b.Deliver([]models.Transaction{txn})
	<-b.Updates()

	b.Redeliver()
	select {
	case ev := <-b.Updates():
		if len(ev.Transactions) != 1 || ev.Transactions[0].ID != "t-1" {
			t.Fatalf("expected t-1 redelivered, got %+v", ev)
		}
	default:
		t.Fatal("unacknowledged transaction was not redelivered")
	}

	if err := b.Finish(context.Background(), txn); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	b.Redeliver()
	select {
	case ev := <-b.Updates():
		t.Fatalf("acknowledged transaction redelivered: %+v", ev)
	default:
	}
}

func TestBridgeDeliverAfterCloseIsDropped(t *testing.T) {
	b := NewQueueBridge(nopLogger{})
	b.Close()

	b.Deliver([]models.Transaction{{ID: "t-1", Outcome: models.TransactionPurchased}})
	b.CompleteRestore(nil)
	b.Redeliver()

	if _, ok := <-b.Updates(); ok {
		t.Fatal("expected closed update channel")
	}
}

func TestBridgeCloseConcurrentWithSenders(t *testing.T) {
	b := NewQueueBridge(nopLogger{})

	done := make(chan struct{})
	go func() {
		for range b.Updates() {
		}
		close(done)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Deliver([]models.Transaction{{ID: "t", Outcome: models.TransactionPurchased}})
				b.CompleteRestore(nil)
			}
		}()
	}
	b.Close()
	wg.Wait()
	<-done
}
