package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storeBack/internal/models"
)

// fakePlayService returns canned verification results and records the
// acknowledge/consume calls the handler makes.
type fakePlayService struct {
	product      models.GooglePurchase
	subscription models.GooglePurchase
	verifyErr    error

	acknowledged []string
	consumed     []string
}

func (f *fakePlayService) VerifyProductPurchase(ctx context.Context, productID, token string) (models.GooglePurchase, error) {
	if f.verifyErr != nil {
		return models.GooglePurchase{}, f.verifyErr
	}
	return f.product, nil
}

func (f *fakePlayService) VerifySubscriptionPurchase(ctx context.Context, subscriptionID, token string) (models.GooglePurchase, error) {
	if f.verifyErr != nil {
		return models.GooglePurchase{}, f.verifyErr
	}
	return f.subscription, nil
}

func (f *fakePlayService) AcknowledgeProduct(ctx context.Context, productID, token string) error {
	f.acknowledged = append(f.acknowledged, productID)
	return nil
}

func (f *fakePlayService) AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error {
	f.acknowledged = append(f.acknowledged, subscriptionID)
	return nil
}

func (f *fakePlayService) ConsumeProduct(ctx context.Context, productID, token string) error {
	f.consumed = append(f.consumed, productID)
	return nil
}

func playVerifyRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/google/verify", strings.NewReader(body))
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestVerifyPurchaseConsumesConsumable(t *testing.T) {
	svc := &fakePlayService{product: models.GooglePurchase{
		Kind:          "product",
		ProductID:     "com.app.coins",
		PurchaseToken: "tok-1",
		PurchaseState: 0,
	}}
	ents := newFakeEntitlements()
	h := &GooglePlayHandler{Service: svc, Store: ents}

	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, playVerifyRequest(`{"product_id":"com.app.coins","purchase_token":"tok-1","consume":true}`))

	resp := decodeStatus(t, rec)
	if resp["status"] != "CONSUMED" {
		t.Fatalf("status = %q, want CONSUMED", resp["status"])
	}
	if len(svc.consumed) != 1 || svc.consumed[0] != "com.app.coins" {
		t.Fatalf("consume calls = %v", svc.consumed)
	}
	if len(svc.acknowledged) != 0 {
		t.Fatalf("consume already acknowledges, got acknowledge calls %v", svc.acknowledged)
	}
	if len(ents.purchased) != 1 || ents.purchased[0] != "com.app.coins" {
		t.Fatalf("entitlement writes = %v", ents.purchased)
	}
}

func TestVerifyPurchaseSkipsConsumeWhenAlreadyConsumed(t *testing.T) {
	svc := &fakePlayService{product: models.GooglePurchase{
		Kind:          "product",
		ProductID:     "com.app.coins",
		PurchaseToken: "tok-1",
		PurchaseState: 0,
		Consumed:      true,
	}}
	h := &GooglePlayHandler{Service: svc, Store: newFakeEntitlements()}

	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, playVerifyRequest(`{"product_id":"com.app.coins","purchase_token":"tok-1","consume":true}`))

	resp := decodeStatus(t, rec)
	if resp["status"] != "CONSUMED" {
		t.Fatalf("status = %q, want CONSUMED", resp["status"])
	}
	if len(svc.consumed) != 0 {
		t.Fatalf("must not consume twice, got %v", svc.consumed)
	}
}

func TestVerifyPurchaseAcknowledgesNonConsumable(t *testing.T) {
	svc := &fakePlayService{product: models.GooglePurchase{
		Kind:          "product",
		ProductID:     "com.app.gold",
		PurchaseToken: "tok-2",
		PurchaseState: 0,
	}}
	h := &GooglePlayHandler{Service: svc, Store: newFakeEntitlements()}

	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, playVerifyRequest(`{"product_id":"com.app.gold","purchase_token":"tok-2"}`))

	resp := decodeStatus(t, rec)
	if resp["status"] != "ACTIVE" {
		t.Fatalf("status = %q, want ACTIVE", resp["status"])
	}
	if len(svc.acknowledged) != 1 || svc.acknowledged[0] != "com.app.gold" {
		t.Fatalf("acknowledge calls = %v", svc.acknowledged)
	}
	if len(svc.consumed) != 0 {
		t.Fatalf("unexpected consume calls %v", svc.consumed)
	}
}

func TestVerifySubscriptionRecordsExpiration(t *testing.T) {
	expiry := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Millisecond)
	svc := &fakePlayService{subscription: models.GooglePurchase{
		Kind:             "subscription",
		ProductID:        "com.app.premium",
		PurchaseToken:    "tok-3",
		Status:           "ACTIVE",
		ExpiryTimeMillis: expiry.UnixMilli(),
		Acknowledged:     true,
	}}
	ents := newFakeEntitlements()
	h := &GooglePlayHandler{Service: svc, Store: ents}

	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, playVerifyRequest(`{"product_id":"com.app.premium","purchase_token":"tok-3","kind":"subscription"}`))

	resp := decodeStatus(t, rec)
	if resp["status"] != "ACTIVE" {
		t.Fatalf("status = %q, want ACTIVE", resp["status"])
	}
	if got := ents.expires["com.app.premium"]; !got.Equal(expiry) {
		t.Fatalf("expiration = %v, want %v", got, expiry)
	}
}

func TestVerifyPurchaseVerificationFailure(t *testing.T) {
	svc := &fakePlayService{verifyErr: errors.New("upstream down")}
	h := &GooglePlayHandler{Service: svc, Store: newFakeEntitlements()}

	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, playVerifyRequest(`{"product_id":"com.app.gold","purchase_token":"tok-2"}`))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestVerifyPurchaseUnconfigured(t *testing.T) {
	h := NewGooglePlayHandler(nil, newFakeEntitlements())

	rec := httptest.NewRecorder()
	h.VerifyPurchase(rec, playVerifyRequest(`{}`))

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}
