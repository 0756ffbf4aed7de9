package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"

	"storeBack/internal/models"
)

type GooglePlayConfig struct {
	PackageName        string
	ServiceAccountJSON string
}

// GooglePlayService verifies product and subscription purchases through the
// androidpublisher API, acknowledges them, and consumes consumable products.
type GooglePlayService struct {
	cfg GooglePlayConfig
	svc *androidpublisher.Service
}

func NewGooglePlayService(cfg GooglePlayConfig) (*GooglePlayService, error) {
	cfg.PackageName = strings.TrimSpace(cfg.PackageName)
	if cfg.PackageName == "" {
		return nil, errors.New("GOOGLE_PLAY_PACKAGE_NAME is empty")
	}
	if strings.TrimSpace(cfg.ServiceAccountJSON) == "" {
		return nil, errors.New("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON is empty")
	}

	ctx := context.Background()
	s, err := androidpublisher.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		return nil, fmt.Errorf("androidpublisher.NewService: %w", err)
	}
	return &GooglePlayService{cfg: cfg, svc: s}, nil
}

// purchaseArgs trims and validates the pair every Play call needs.
func purchaseArgs(productID, token string) (string, string, error) {
	productID = strings.TrimSpace(productID)
	token = strings.TrimSpace(token)
	if productID == "" || token == "" {
		return "", "", errors.New("product_id and purchase_token are required")
	}
	return productID, token, nil
}

func (s *GooglePlayService) VerifyProductPurchase(ctx context.Context, productID, token string) (models.GooglePurchase, error) {
	productID, token, err := purchaseArgs(productID, token)
	if err != nil {
		return models.GooglePurchase{}, err
	}

	resp, err := s.svc.Purchases.Products.Get(s.cfg.PackageName, productID, token).
		Context(ctx).
		Do()
	if err != nil {
		return models.GooglePurchase{}, fmt.Errorf("google products.get: %w", err)
	}

	raw, _ := json.Marshal(resp)

	return models.GooglePurchase{
		Kind:          "product",
		ProductID:     productID,
		PurchaseToken: token,
		OrderID:       resp.OrderId,
		PackageName:   s.cfg.PackageName,

		PurchaseState: resp.PurchaseState,
		Acknowledged:  resp.AcknowledgementState == 1,
		Consumed:      resp.ConsumptionState == 1,

		Raw: string(raw),
	}, nil
}

func (s *GooglePlayService) VerifySubscriptionPurchase(ctx context.Context, subscriptionID, token string) (models.GooglePurchase, error) {
	subscriptionID, token, err := purchaseArgs(subscriptionID, token)
	if err != nil {
		return models.GooglePurchase{}, err
	}

	resp, err := s.svc.Purchases.Subscriptions.Get(s.cfg.PackageName, subscriptionID, token).
		Context(ctx).
		Do()
	if err != nil {
		return models.GooglePurchase{}, fmt.Errorf("google subscriptions.get: %w", err)
	}

	raw, _ := json.Marshal(resp)
	status, derivedState := deriveSubscriptionStatus(resp, time.Now().UnixMilli())

	return models.GooglePurchase{
		Kind:          "subscription",
		ProductID:     subscriptionID,
		PurchaseToken: token,
		OrderID:       resp.OrderId,
		PackageName:   s.cfg.PackageName,

		ExpiryTimeMillis: resp.ExpiryTimeMillis,
		PaymentState:     resp.PaymentState,
		CancelReason:     resp.CancelReason,
		AutoRenewing:     resp.AutoRenewing,

		PurchaseState: derivedState,
		Acknowledged:  resp.AcknowledgementState == 1,
		Status:        status,
		Raw:           string(raw),
	}, nil
}

// deriveSubscriptionStatus maps a SubscriptionPurchase onto the coarse status
// the entitlement layer works with. PaymentState: 0 pending, 1 received,
// 2 free trial, 3 deferred.
func deriveSubscriptionStatus(resp *androidpublisher.SubscriptionPurchase, nowMillis int64) (string, int64) {
	switch {
	case int64PtrEq(resp.PaymentState, 0):
		return "PENDING", 2
	case resp.ExpiryTimeMillis > nowMillis:
		// auto-renew turned off: the period may still be running
		if !resp.AutoRenewing {
			return "CANCELED", 0
		}
		return "ACTIVE", 0
	case resp.ExpiryTimeMillis > 0:
		return "EXPIRED", 1
	}
	return "UNKNOWN", 2
}

func (s *GooglePlayService) AcknowledgeProduct(ctx context.Context, productID, token string) error {
	productID, token, err := purchaseArgs(productID, token)
	if err != nil {
		return err
	}

	req := &androidpublisher.ProductPurchasesAcknowledgeRequest{}
	if err := s.svc.Purchases.Products.Acknowledge(s.cfg.PackageName, productID, token, req).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("google products.acknowledge: %w", err)
	}
	return nil
}

// ConsumeProduct marks a consumable product as consumed so the store can sell
// it to the same account again. Consumption also acknowledges the purchase.
func (s *GooglePlayService) ConsumeProduct(ctx context.Context, productID, token string) error {
	productID, token, err := purchaseArgs(productID, token)
	if err != nil {
		return err
	}

	if err := s.svc.Purchases.Products.Consume(s.cfg.PackageName, productID, token).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("google products.consume: %w", err)
	}
	return nil
}

func (s *GooglePlayService) AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error {
	subscriptionID, token, err := purchaseArgs(subscriptionID, token)
	if err != nil {
		return err
	}

	req := &androidpublisher.SubscriptionPurchasesAcknowledgeRequest{}
	if err := s.svc.Purchases.Subscriptions.Acknowledge(s.cfg.PackageName, subscriptionID, token, req).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("google subscriptions.acknowledge: %w", err)
	}
	return nil
}

func int64PtrEq(v *int64, want int64) bool {
	return v != nil && *v == want
}
