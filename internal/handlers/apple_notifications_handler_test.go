package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storeBack/internal/models"
)

// fakeEntitlements records the entitlement writes a handler performs.
type fakeEntitlements struct {
	purchased []string
	revoked   []string
	expires   map[string]time.Time
}

func newFakeEntitlements() *fakeEntitlements {
	return &fakeEntitlements{expires: make(map[string]time.Time)}
}

func (f *fakeEntitlements) MarkPurchased(ctx context.Context, productID string) error {
	f.purchased = append(f.purchased, productID)
	return nil
}

func (f *fakeEntitlements) MarkNotPurchased(ctx context.Context, productID string) error {
	f.revoked = append(f.revoked, productID)
	return nil
}

func (f *fakeEntitlements) SetExpiration(ctx context.Context, productID string, expiresAt time.Time) error {
	f.expires[productID] = expiresAt
	return nil
}

func notifReq() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/apple/notifications", nil)
}

func TestApplyRefundRevokesEntitlement(t *testing.T) {
	for _, kind := range []string{"REFUND", "REVOKE"} {
		t.Run(kind, func(t *testing.T) {
			ents := newFakeEntitlements()
			h := NewAppleNotificationsHandler(nil, ents)

			notif := models.AppleNotification{NotificationType: kind}
			txn := models.AppleTransaction{ProductID: "com.app.gold"}
			if err := h.apply(notifReq(), notif, txn); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if len(ents.revoked) != 1 || ents.revoked[0] != "com.app.gold" {
				t.Fatalf("expected revoke for com.app.gold, got %v", ents.revoked)
			}
			if len(ents.purchased) != 0 {
				t.Fatalf("refund must not grant an entitlement: %v", ents.purchased)
			}
		})
	}
}

func TestApplyRevocationDateRevokesEntitlement(t *testing.T) {
	ents := newFakeEntitlements()
	h := NewAppleNotificationsHandler(nil, ents)

	notif := models.AppleNotification{NotificationType: "DID_CHANGE_RENEWAL_STATUS"}
	txn := models.AppleTransaction{
		ProductID:      "com.app.gold",
		RevocationDate: time.Now().UnixMilli(),
	}
	if err := h.apply(notifReq(), notif, txn); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(ents.revoked) != 1 || ents.revoked[0] != "com.app.gold" {
		t.Fatalf("expected revoke for com.app.gold, got %v", ents.revoked)
	}
}

func TestApplyRenewalUpdatesExpiration(t *testing.T) {
	ents := newFakeEntitlements()
	h := NewAppleNotificationsHandler(nil, ents)

	expires := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Millisecond)
	notif := models.AppleNotification{NotificationType: "DID_RENEW"}
	txn := models.AppleTransaction{
		ProductID:   "com.app.gold",
		ExpiresDate: expires.UnixMilli(),
	}
	if err := h.apply(notifReq(), notif, txn); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(ents.purchased) != 1 || ents.purchased[0] != "com.app.gold" {
		t.Fatalf("expected purchase mark for com.app.gold, got %v", ents.purchased)
	}
	got, ok := ents.expires["com.app.gold"]
	if !ok || !got.Equal(expires) {
		t.Fatalf("expected expiration %v, got %v (present=%v)", expires, got, ok)
	}
}

func TestApplyExpiredIsNoop(t *testing.T) {
	ents := newFakeEntitlements()
	h := NewAppleNotificationsHandler(nil, ents)

	notif := models.AppleNotification{NotificationType: "EXPIRED"}
	txn := models.AppleTransaction{ProductID: "com.app.gold"}
	if err := h.apply(notifReq(), notif, txn); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(ents.purchased) != 0 || len(ents.revoked) != 0 || len(ents.expires) != 0 {
		t.Fatalf("expired notification must not touch entitlements: %+v", ents)
	}
}

func TestApplyRejectsMissingProductID(t *testing.T) {
	h := NewAppleNotificationsHandler(nil, newFakeEntitlements())
	if err := h.apply(notifReq(), models.AppleNotification{NotificationType: "DID_RENEW"}, models.AppleTransaction{}); err == nil {
		t.Fatal("expected error for missing product id")
	}
}

func TestVerifyTransactionUnconfigured(t *testing.T) {
	h := NewAppleNotificationsHandler(nil, newFakeEntitlements())
	rec := httptest.NewRecorder()
	h.VerifyTransaction(rec, httptest.NewRequest(http.MethodPost, "/api/apple/verify", strings.NewReader(`{"transaction_id":"t1"}`)))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected %d, got %d", http.StatusNotImplemented, rec.Code)
	}
}
