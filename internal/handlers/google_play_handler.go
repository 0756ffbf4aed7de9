package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"storeBack/internal/models"
	"storeBack/internal/services"
)

// PlayVerifier is the slice of GooglePlayService the handler needs.
type PlayVerifier interface {
	VerifyProductPurchase(ctx context.Context, productID, token string) (models.GooglePurchase, error)
	VerifySubscriptionPurchase(ctx context.Context, subscriptionID, token string) (models.GooglePurchase, error)
	AcknowledgeProduct(ctx context.Context, productID, token string) error
	AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error
	ConsumeProduct(ctx context.Context, productID, token string) error
}

// GooglePlayHandler verifies Play purchases server-side and applies them to
// the entitlement records.
type GooglePlayHandler struct {
	Service PlayVerifier
	Store   EntitlementWriter
}

func NewGooglePlayHandler(service *services.GooglePlayService, store EntitlementWriter) *GooglePlayHandler {
	h := &GooglePlayHandler{Store: store}
	if service != nil {
		h.Service = service
	}
	return h
}

func (h *GooglePlayHandler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		http.Error(w, "google play is not configured", http.StatusNotImplemented)
		return
	}

	var req struct {
		ProductID     string `json:"product_id"`
		PurchaseToken string `json:"purchase_token"`
		Kind          string `json:"kind"`    // "product" (default) | "subscription"
		Consume       bool   `json:"consume"` // consumable products only
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	kind := strings.ToLower(strings.TrimSpace(req.Kind))

	if kind == "subscription" {
		h.verifySubscription(ctx, w, req.ProductID, req.PurchaseToken)
		return
	}
	h.verifyProduct(ctx, w, req.ProductID, req.PurchaseToken, req.Consume)
}

func (h *GooglePlayHandler) verifySubscription(ctx context.Context, w http.ResponseWriter, productID, token string) {
	purchase, err := h.Service.VerifySubscriptionPurchase(ctx, productID, token)
	if err != nil {
		http.Error(w, "google verify: "+err.Error(), http.StatusBadGateway)
		return
	}
	if purchase.Status == "ACTIVE" || purchase.Status == "CANCELED" {
		if err := h.Store.MarkPurchased(ctx, purchase.ProductID); err != nil {
			http.Error(w, "record purchase: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if purchase.ExpiryTimeMillis > 0 {
			expires := time.UnixMilli(purchase.ExpiryTimeMillis)
			if err := h.Store.SetExpiration(ctx, purchase.ProductID, expires); err != nil {
				http.Error(w, "record expiration: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}
	if !purchase.Acknowledged {
		if err := h.Service.AcknowledgeSubscription(ctx, purchase.ProductID, purchase.PurchaseToken); err != nil {
			http.Error(w, "acknowledge: "+err.Error(), http.StatusBadGateway)
			return
		}
	}
	writePurchaseStatus(w, purchase.ProductID, purchase.Status)
}

func (h *GooglePlayHandler) verifyProduct(ctx context.Context, w http.ResponseWriter, productID, token string, consume bool) {
	purchase, err := h.Service.VerifyProductPurchase(ctx, productID, token)
	if err != nil {
		http.Error(w, "google verify: "+err.Error(), http.StatusBadGateway)
		return
	}

	// PurchaseState 0 means purchased.
	purchased := purchase.PurchaseState == 0
	if purchased {
		if err := h.Store.MarkPurchased(ctx, purchase.ProductID); err != nil {
			http.Error(w, "record purchase: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	status := "PENDING"
	switch {
	case purchased && consume && !purchase.Consumed:
		// Consuming acknowledges as a side effect.
		if err := h.Service.ConsumeProduct(ctx, purchase.ProductID, purchase.PurchaseToken); err != nil {
			http.Error(w, "consume: "+err.Error(), http.StatusBadGateway)
			return
		}
		status = "CONSUMED"
	case purchased && purchase.Consumed:
		status = "CONSUMED"
	case purchased:
		if !purchase.Acknowledged {
			if err := h.Service.AcknowledgeProduct(ctx, purchase.ProductID, purchase.PurchaseToken); err != nil {
				http.Error(w, "acknowledge: "+err.Error(), http.StatusBadGateway)
				return
			}
		}
		status = "ACTIVE"
	}
	writePurchaseStatus(w, purchase.ProductID, status)
}

func writePurchaseStatus(w http.ResponseWriter, productID, status string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":     status,
		"product_id": productID,
	})
}
