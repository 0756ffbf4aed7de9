package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"storeBack/internal/iap"
)

// EntitlementHandler reads and administers the durable entitlement records.
type EntitlementHandler struct {
	Store *iap.Store
}

func NewEntitlementHandler(store *iap.Store) *EntitlementHandler {
	return &EntitlementHandler{Store: store}
}

func (h *EntitlementHandler) List(w http.ResponseWriter, r *http.Request) {
	ents, err := h.Store.Entitlements(r.Context())
	if err != nil {
		http.Error(w, "load entitlements: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"entitlements": ents})
}

func (h *EntitlementHandler) Status(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get(":product_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	purchased, err := h.Store.IsPurchased(r.Context(), productID)
	if err != nil {
		http.Error(w, "load entitlement: "+err.Error(), http.StatusInternalServerError)
		return
	}
	active, err := h.Store.IsActiveSubscription(r.Context(), productID)
	if err != nil {
		http.Error(w, "load subscription: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"product_id":          productID,
		"purchased":           purchased,
		"active_subscription": active,
	})
}

// Grant marks a product purchased without a transaction, e.g. for support
// compensations.
func (h *EntitlementHandler) Grant(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get(":product_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}
	if err := h.Store.MarkPurchased(r.Context(), productID); err != nil {
		http.Error(w, "grant entitlement: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Revoke resets the purchased flag, e.g. after a refund.
func (h *EntitlementHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get(":product_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}
	if err := h.Store.MarkNotPurchased(r.Context(), productID); err != nil {
		http.Error(w, "revoke entitlement: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RefreshSubscriptions re-validates the stored receipt and reports which
// subscriptions have lapsed.
func (h *EntitlementHandler) RefreshSubscriptions(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.RefreshSubscriptions(r.Context()); err != nil {
		http.Error(w, "refresh subscriptions: "+err.Error(), http.StatusBadGateway)
		return
	}
	expired, err := h.Store.ExpiredProducts(r.Context(), time.Now())
	if err != nil {
		http.Error(w, "load expired products: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"expired": expired,
	})
}
