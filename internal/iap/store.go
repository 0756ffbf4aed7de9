package iap

import (
	"context"
	"sync"
	"time"

	"storeBack/internal/iap/fsm"
	"storeBack/internal/models"
	"storeBack/internal/repositories"
)

// EntitlementStore persists per-product purchase flags and subscription
// expirations. The MySQL-backed repository is the production implementation.
type EntitlementStore interface {
	SetPurchased(ctx context.Context, productID string, purchased bool) error
	IsPurchased(ctx context.Context, productID string) (bool, error)
	SetExpiration(ctx context.Context, productID string, expiresAt time.Time) error
	Expiration(ctx context.Context, productID string) (*time.Time, error)
	List(ctx context.Context) ([]models.Entitlement, error)
	ExpiredProducts(ctx context.Context, now time.Time) ([]string, error)
}

// TransactionLedger records processed transaction identifiers so queue
// redeliveries reconcile idempotently.
type TransactionLedger interface {
	IsProcessed(ctx context.Context, transactionID string) (bool, error)
	Save(ctx context.Context, txn models.Transaction) error
}

// Store owns the purchase lifecycle: the product catalog, the single
// in-flight purchase session, entitlement persistence and subscription
// receipt validation. All state mutations are serialized through one mutex so
// that queue callbacks, timer-driven catalog retries and user-initiated calls
// never race.
type Store struct {
	deps Deps
	cfg  Config
	hub  *Hub

	entitlements EntitlementStore
	transactions TransactionLedger
	cache        *StatusCache

	mu           sync.Mutex
	catalog      []models.Item
	productIDs   []string
	sharedSecret string

	purchaseInProgress bool
	purchasingID       string
	attemptStatus      string

	retryTimer *time.Timer
}

// New constructs the store module. Call Run to start consuming payment queue
// updates.
func New(deps Deps) (*Store, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		deps:          deps,
		cfg:           deps.Config,
		hub:           NewHub(),
		entitlements:  repositories.NewEntitlementRepository(deps.DB),
		transactions:  repositories.NewIAPTransactionRepository(deps.DB),
		attemptStatus: fsm.StatusIdle,
		productIDs:    append([]string(nil), deps.Config.ProductIDs...),
		sharedSecret:  deps.Config.SharedSecret,
	}
	if deps.RDB != nil {
		s.cache = NewStatusCache(deps.RDB, deps.Config.CatalogCacheTTL)
	}
	return s, nil
}

// Subscribe registers a lifecycle listener.
func (s *Store) Subscribe(l Listener) {
	s.hub.Subscribe(l)
}

// CanMakePayments reports whether the platform allows purchases.
func (s *Store) CanMakePayments() bool {
	return s.deps.Queue.CanMakePayments()
}

// Run consumes payment queue updates until the context is canceled or the
// queue closes its channel. It is the single reconciliation loop: every
// transaction the queue delivers passes through here exactly once per
// delivery.
func (s *Store) Run(ctx context.Context) {
	updates := s.deps.Queue.Updates()
	for {
		select {
		case <-ctx.Done():
			s.stopRetryTimer()
			return
		case ev, ok := <-updates:
			if !ok {
				s.stopRetryTimer()
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Store) stopRetryTimer() {
	s.mu.Lock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.mu.Unlock()
}

// IsPurchased reports the durable purchased flag for a product, consulting
// the cache first.
func (s *Store) IsPurchased(ctx context.Context, productID string) (bool, error) {
	if s.cache != nil {
		if purchased, ok, err := s.cache.IsPurchased(ctx, productID); err == nil && ok {
			return purchased, nil
		}
	}
	purchased, err := s.entitlements.IsPurchased(ctx, productID)
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		if cerr := s.cache.SetPurchased(ctx, productID, purchased); cerr != nil {
			s.deps.Logger.Errorf("iap: cache purchased flag: %v", cerr)
		}
	}
	return purchased, nil
}

// MarkPurchased records a product as purchased outside the queue flow, e.g.
// from a verified platform webhook.
func (s *Store) MarkPurchased(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePurchased(ctx, productID, true)
}

// MarkNotPurchased resets the purchased flag. The record persists.
func (s *Store) MarkNotPurchased(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePurchased(ctx, productID, false)
}

// writePurchased must be called with s.mu held.
func (s *Store) writePurchased(ctx context.Context, productID string, purchased bool) error {
	if err := s.entitlements.SetPurchased(ctx, productID, purchased); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.SetPurchased(ctx, productID, purchased); err != nil {
			s.deps.Logger.Errorf("iap: cache purchased flag: %v", err)
		}
	}
	return nil
}

// SetExpiration records a subscription expiration outside the receipt flow,
// e.g. from a verified platform webhook.
func (s *Store) SetExpiration(ctx context.Context, productID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entitlements.SetExpiration(ctx, productID, expiresAt)
}

// IsActiveSubscription reports whether the stored expiration for a product is
// in the future.
func (s *Store) IsActiveSubscription(ctx context.Context, productID string) (bool, error) {
	expires, err := s.entitlements.Expiration(ctx, productID)
	if err != nil {
		return false, err
	}
	return expires != nil && expires.After(time.Now()), nil
}

// Entitlements lists every stored entitlement record.
func (s *Store) Entitlements(ctx context.Context) ([]models.Entitlement, error) {
	return s.entitlements.List(ctx)
}

// ExpiredProducts lists products whose subscription has lapsed.
func (s *Store) ExpiredProducts(ctx context.Context, now time.Time) ([]string, error) {
	return s.entitlements.ExpiredProducts(ctx, now)
}
