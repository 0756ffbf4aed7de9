package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storeBack/internal/iap"
	"storeBack/internal/models"
)

// PurchaseHandler starts purchase and restore flows. The flows complete
// asynchronously through the payment queue; clients observe the outcome via
// the event stream or by polling entitlements.
type PurchaseHandler struct {
	Store *iap.Store
}

func NewPurchaseHandler(store *iap.Store) *PurchaseHandler {
	return &PurchaseHandler{Store: store}
}

func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	if err := h.Store.Purchase(r.Context(), req.ProductID); err != nil {
		http.Error(w, err.Error(), purchaseErrorStatus(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":     "pending",
		"product_id": req.ProductID,
	})
}

func (h *PurchaseHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.RestorePurchases(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
}

func purchaseErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrUnknownProduct):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyPurchased):
		return http.StatusConflict
	case errors.Is(err, models.ErrPurchaseInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrPaymentsUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
