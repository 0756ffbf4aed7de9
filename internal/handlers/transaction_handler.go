package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"storeBack/internal/iap"
	"storeBack/internal/models"
)

// TransactionHandler receives transaction outcomes reported by devices and
// feeds them to the reconciliation loop through the queue bridge. Responses
// are accepted immediately; reconciliation is asynchronous.
type TransactionHandler struct {
	Bridge *iap.QueueBridge
}

func NewTransactionHandler(bridge *iap.QueueBridge) *TransactionHandler {
	return &TransactionHandler{Bridge: bridge}
}

func (h *TransactionHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Transactions) == 0 {
		http.Error(w, "transactions are required", http.StatusBadRequest)
		return
	}
	for _, txn := range req.Transactions {
		switch txn.Outcome {
		case models.TransactionPurchased, models.TransactionRestored, models.TransactionFailed:
		default:
			http.Error(w, "unknown outcome: "+txn.Outcome, http.StatusBadRequest)
			return
		}
	}

	h.Bridge.Deliver(req.Transactions)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "accepted",
		"received": len(req.Transactions),
	})
}

// RestoreComplete marks the end of a device's restore session.
func (h *TransactionHandler) RestoreComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Error string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Error != "" {
		h.Bridge.CompleteRestore(errors.New(req.Error))
	} else {
		h.Bridge.CompleteRestore(nil)
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
