package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storeBack/internal/iap"
	"storeBack/internal/models"
)

type testLogger struct{}

func (testLogger) Infof(format string, args ...interface{})  {}
func (testLogger) Errorf(format string, args ...interface{}) {}

func TestReportDeliversToBridge(t *testing.T) {
	bridge := iap.NewQueueBridge(testLogger{})
	defer bridge.Close()
	h := NewTransactionHandler(bridge)

	body := `{"transactions":[{"transaction_id":"t1","product_id":"com.app.gold","outcome":"purchased"}]}`
	rec := httptest.NewRecorder()
	h.Report(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected %d, got %d", http.StatusAccepted, rec.Code)
	}
	select {
	case ev := <-bridge.Updates():
		if len(ev.Transactions) != 1 || ev.Transactions[0].ID != "t1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("no event delivered to the bridge")
	}
}

func TestReportRejectsBadInput(t *testing.T) {
	bridge := iap.NewQueueBridge(testLogger{})
	defer bridge.Close()
	h := NewTransactionHandler(bridge)

	for name, body := range map[string]string{
		"empty batch":     `{"transactions":[]}`,
		"unknown outcome": `{"transactions":[{"transaction_id":"t1","product_id":"p","outcome":"refunded"}]}`,
		"not json":        `nope`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Report(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected %d, got %d", http.StatusBadRequest, rec.Code)
			}
			select {
			case <-bridge.Updates():
				t.Fatal("invalid report reached the bridge")
			default:
			}
		})
	}
}

func TestRestoreCompleteForwardsError(t *testing.T) {
	bridge := iap.NewQueueBridge(testLogger{})
	defer bridge.Close()
	h := NewTransactionHandler(bridge)

	rec := httptest.NewRecorder()
	h.RestoreComplete(rec, httptest.NewRequest(http.MethodPost, "/api/restore/complete", strings.NewReader(`{"error":"store unreachable"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected %d, got %d", http.StatusAccepted, rec.Code)
	}

	ev := <-bridge.Updates()
	if ev.RestoreErr == nil || ev.RestoreErr.Error() != "store unreachable" {
		t.Fatalf("unexpected restore error: %v", ev.RestoreErr)
	}
}

func TestPurchaseErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrUnknownProduct, http.StatusNotFound},
		{models.ErrAlreadyPurchased, http.StatusConflict},
		{models.ErrPurchaseInProgress, http.StatusConflict},
		{models.ErrPaymentsUnavailable, http.StatusServiceUnavailable},
		{errors.New("generic"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := purchaseErrorStatus(c.err); got != c.want {
			t.Fatalf("purchaseErrorStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
