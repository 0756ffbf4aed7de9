package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"storeBack/internal/models"
	"storeBack/internal/services"
)

// EntitlementWriter is the slice of the store that verified platform
// callbacks mutate.
type EntitlementWriter interface {
	MarkPurchased(ctx context.Context, productID string) error
	MarkNotPurchased(ctx context.Context, productID string) error
	SetExpiration(ctx context.Context, productID string, expiresAt time.Time) error
}

// AppleNotificationsHandler consumes App Store Server Notifications V2 and
// applies them to the entitlement records. Signature verification happens
// before anything is trusted.
type AppleNotificationsHandler struct {
	Service *services.AppleAPIService
	Store   EntitlementWriter
}

func NewAppleNotificationsHandler(service *services.AppleAPIService, store EntitlementWriter) *AppleNotificationsHandler {
	return &AppleNotificationsHandler{Service: service, Store: store}
}

func (h *AppleNotificationsHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		http.Error(w, "apple notifications are not configured", http.StatusNotImplemented)
		return
	}

	var req struct {
		SignedPayload string `json:"signedPayload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	notif, err := h.Service.ParseNotification(r.Context(), req.SignedPayload)
	if err != nil {
		http.Error(w, "verify notification: "+err.Error(), http.StatusBadRequest)
		return
	}

	if notif.Data.SignedTransactionInfo == "" {
		// Renewal-only notifications carry no transaction to apply; the
		// renewal info is still verified so a forged payload is rejected.
		if notif.Data.SignedRenewalInfo != "" {
			renewal, err := h.Service.DecodeSignedRenewalInfo(r.Context(), notif.Data.SignedRenewalInfo)
			if err != nil {
				http.Error(w, "decode renewal info: "+err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":                "ok",
				"auto_renew_product_id": renewal.AutoRenewProductID,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}

	txn, err := h.Service.DecodeSignedTransaction(r.Context(), notif.Data.SignedTransactionInfo)
	if err != nil {
		http.Error(w, "decode transaction: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.apply(r, notif, txn); err != nil {
		http.Error(w, "apply notification: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// VerifyTransaction checks a device-reported transaction id against the App
// Store Server API and applies the verified result to the entitlement
// records.
func (h *AppleNotificationsHandler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		http.Error(w, "apple verification is not configured", http.StatusNotImplemented)
		return
	}

	var req struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		http.Error(w, "transaction_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	txn, err := h.Service.VerifyTransaction(ctx, req.TransactionID)
	if err != nil {
		http.Error(w, "apple verify: "+err.Error(), http.StatusBadGateway)
		return
	}

	status := "ACTIVE"
	if txn.RevocationDate > 0 {
		status = "REVOKED"
		err = h.Store.MarkNotPurchased(ctx, txn.ProductID)
	} else {
		err = h.Store.MarkPurchased(ctx, txn.ProductID)
		if err == nil && txn.ExpiresDate > 0 {
			err = h.Store.SetExpiration(ctx, txn.ProductID, time.UnixMilli(txn.ExpiresDate))
		}
	}
	if err != nil {
		http.Error(w, "record transaction: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":     status,
		"product_id": txn.ProductID,
	})
}

func (h *AppleNotificationsHandler) apply(r *http.Request, notif models.AppleNotification, txn models.AppleTransaction) error {
	if txn.ProductID == "" {
		return errors.New("transaction missing product id")
	}
	ctx := r.Context()

	switch notif.NotificationType {
	case "REFUND", "REVOKE":
		return h.Store.MarkNotPurchased(ctx, txn.ProductID)
	case "EXPIRED", "GRACE_PERIOD_EXPIRED":
		// The stored expiration already reflects the lapse.
		return nil
	}

	if txn.RevocationDate > 0 {
		return h.Store.MarkNotPurchased(ctx, txn.ProductID)
	}
	if err := h.Store.MarkPurchased(ctx, txn.ProductID); err != nil {
		return err
	}
	if txn.ExpiresDate > 0 {
		expires := time.UnixMilli(txn.ExpiresDate)
		return h.Store.SetExpiration(ctx, txn.ProductID, expires)
	}
	return nil
}
