package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"storeBack/internal/iap"
	"storeBack/internal/repositories"
)

// ReceiptHandler accepts receipt uploads from devices. Each upload triggers a
// background re-validation so subscription expirations stay current.
type ReceiptHandler struct {
	Repo   *repositories.ReceiptRepository
	Store  *iap.Store
	Logger iap.Logger

	// Uploaded, when set, is called after each stored receipt so waiters on a
	// pending refresh request wake up.
	Uploaded func()
}

func NewReceiptHandler(repo *repositories.ReceiptRepository, store *iap.Store, logger iap.Logger) *ReceiptHandler {
	return &ReceiptHandler{Repo: repo, Store: store, Logger: logger}
}

func (h *ReceiptHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiptData string `json:"receipt_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	receipt, err := base64.StdEncoding.DecodeString(req.ReceiptData)
	if err != nil {
		http.Error(w, "receipt_data must be base64", http.StatusBadRequest)
		return
	}
	if len(receipt) == 0 {
		http.Error(w, "receipt_data is required", http.StatusBadRequest)
		return
	}

	if err := h.Repo.Save(r.Context(), receipt); err != nil {
		http.Error(w, "store receipt: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if h.Uploaded != nil {
		h.Uploaded()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.Store.RefreshSubscriptions(ctx); err != nil {
			h.Logger.Errorf("receipt upload: refresh subscriptions: %v", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
