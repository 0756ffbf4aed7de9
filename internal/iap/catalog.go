package iap

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slices"

	"storeBack/internal/models"
)

// Configure sets the product identifier set and shared secret, then starts
// the first catalog load. A no-op when the platform reports purchases
// unavailable, matching the queue contract.
func (s *Store) Configure(ctx context.Context, productIDs []string, sharedSecret string) error {
	if !s.deps.Queue.CanMakePayments() {
		s.deps.Logger.Infof("iap: can't make payments, skipping configuration")
		return models.ErrPaymentsUnavailable
	}
	if len(productIDs) == 0 {
		return models.ErrNoProductIdentifiers
	}

	s.mu.Lock()
	s.productIDs = dedupe(productIDs)
	s.sharedSecret = sharedSecret
	s.mu.Unlock()

	return s.Fetch(ctx)
}

// Fetch loads product descriptors for the configured identifiers. Any pending
// retry timer is disarmed first so timers never stack. An empty or failed
// response notifies listeners and arms a one-shot retry; a non-empty response
// replaces the catalog wholesale, sorted ascending by price.
func (s *Store) Fetch(ctx context.Context) error {
	if !s.deps.Queue.CanMakePayments() {
		return nil
	}

	s.mu.Lock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	ids := append([]string(nil), s.productIDs...)
	s.mu.Unlock()

	if len(ids) == 0 {
		return models.ErrNoProductIdentifiers
	}

	s.deps.Logger.Infof("iap: attempt to load products (%d ids)", len(ids))

	items, err := s.deps.Provider.Products(ctx, ids)
	if err != nil {
		s.deps.Logger.Errorf("iap: load products: %v", err)
		s.hub.CatalogError(err)
		s.armRetry()
		return fmt.Errorf("load products: %w", err)
	}

	items = dedupeItems(items)
	slices.SortStableFunc(items, func(a, b models.Item) int {
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		}
		return 0
	})

	// An empty list still counts as a successful response for listeners, but
	// it also arms the retry path. Both effects fire.
	if len(items) == 0 {
		s.deps.Logger.Infof("iap: products list is empty")
		s.armRetry()
	}

	s.mu.Lock()
	s.catalog = items
	s.mu.Unlock()

	for _, item := range items {
		s.deps.Logger.Infof("iap: find product: %s - %s", item.Title, item.DisplayPrice())
	}
	s.hub.CatalogUpdated(items)

	if s.cache != nil && len(items) > 0 {
		if err := s.cache.StoreCatalog(ctx, items); err != nil {
			s.deps.Logger.Errorf("iap: cache catalog: %v", err)
		}
	}
	return nil
}

// armRetry schedules a one-shot Fetch. A pending timer is replaced.
func (s *Store) armRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	interval := s.cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	s.deps.Logger.Infof("iap: restart products request after %s", interval)
	s.retryTimer = time.AfterFunc(interval, func() {
		if err := s.Fetch(context.Background()); err != nil {
			s.deps.Logger.Errorf("iap: retry fetch: %v", err)
		}
	})
}

// Catalog returns the current catalog. Empty until the first successful load.
func (s *Store) Catalog() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Item(nil), s.catalog...)
}

// Product returns the catalog item for an identifier.
func (s *Store) Product(productID string) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product(productID)
}

// product must be called with s.mu held.
func (s *Store) product(productID string) (models.Item, bool) {
	for _, item := range s.catalog {
		if item.ProductID == productID {
			return item, true
		}
	}
	return models.Item{}, false
}

// ProductsCount returns the catalog size.
func (s *Store) ProductsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.catalog)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dedupeItems keeps the first item per identifier: identifiers are unique
// within a catalog.
func dedupeItems(items []models.Item) []models.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item)
	}
	return out
}
