package iap

import (
	"context"
	"errors"
	"testing"
	"time"

	"storeBack/internal/models"
)

func testItems() []models.Item {
	return []models.Item{
		{ProductID: "com.app.gold", Title: "Gold", Price: 499, Currency: "USD"},
		{ProductID: "com.app.silver", Title: "Silver", Price: 199, Currency: "USD"},
		{ProductID: "com.app.bronze", Title: "Bronze", Price: 99, Currency: "USD"},
	}
}

func TestFetchSortsAndDeduplicates(t *testing.T) {
	queue := newFakeQueue()
	provider := &fakeProvider{}
	items := append(testItems(), models.Item{ProductID: "com.app.gold", Title: "Gold dup", Price: 499})
	provider.respond(items, nil)

	cfg := Config{ProductIDs: []string{"com.app.gold", "com.app.silver", "com.app.bronze"}}
	s, _, _ := newTestStore(t, Deps{Config: cfg, Queue: queue, Provider: provider})

	listener := &recListener{}
	s.Subscribe(listener)

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	catalog := s.Catalog()
	if len(catalog) != 3 {
		t.Fatalf("expected 3 products, got %d", len(catalog))
	}
	for i := 1; i < len(catalog); i++ {
		if catalog[i-1].Price > catalog[i].Price {
			t.Fatalf("catalog not sorted by price: %v", catalog)
		}
	}
	if catalog[0].ProductID != "com.app.bronze" {
		t.Errorf("expected bronze first, got %s", catalog[0].ProductID)
	}

	got := listener.snapshot()
	if len(got.catalogs) != 1 {
		t.Fatalf("expected 1 catalog notification, got %d", len(got.catalogs))
	}
}

func TestFetchEmptyCatalogNotifiesAndRetries(t *testing.T) {
	queue := newFakeQueue()
	provider := &fakeProvider{}
	provider.respond(nil, nil)
	provider.respond(testItems(), nil)

	cfg := Config{ProductIDs: []string{"com.app.gold"}, RetryInterval: 20 * time.Millisecond}
	s, _, _ := newTestStore(t, Deps{Config: cfg, Queue: queue, Provider: provider})

	listener := &recListener{}
	s.Subscribe(listener)

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if s.ProductsCount() != 0 {
		t.Fatalf("expected empty catalog after empty response, got %d products", s.ProductsCount())
	}
	if got := listener.snapshot(); len(got.catalogs) != 1 || len(got.catalogs[0]) != 0 {
		t.Fatalf("empty response should still notify listeners, got %v", got.catalogs)
	}

	waitFor(t, time.Second, func() bool { return s.ProductsCount() == 3 }, "retry did not reload catalog")
}

func TestFetchErrorNotifiesAndRetries(t *testing.T) {
	queue := newFakeQueue()
	provider := &fakeProvider{}
	provider.respond(nil, errors.New("network down"))
	provider.respond(testItems(), nil)

	cfg := Config{ProductIDs: []string{"com.app.gold"}, RetryInterval: 20 * time.Millisecond}
	s, _, _ := newTestStore(t, Deps{Config: cfg, Queue: queue, Provider: provider})

	listener := &recListener{}
	s.Subscribe(listener)

	if err := s.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error from failed load")
	}
	if got := listener.snapshot(); len(got.catalogErrs) != 1 {
		t.Fatalf("expected 1 catalog error notification, got %d", len(got.catalogErrs))
	}
	if got := listener.snapshot(); len(got.catalogs) != 0 {
		t.Fatalf("failed load must not notify a catalog update")
	}

	waitFor(t, time.Second, func() bool { return s.ProductsCount() == 3 }, "retry did not reload catalog")
}

func TestManualFetchDisarmsPendingRetry(t *testing.T) {
	queue := newFakeQueue()
	provider := &fakeProvider{}
	provider.respond(nil, nil)
	provider.respond(testItems(), nil)

	cfg := Config{ProductIDs: []string{"com.app.gold"}, RetryInterval: 60 * time.Millisecond}
	s, _, _ := newTestStore(t, Deps{Config: cfg, Queue: queue, Provider: provider})

	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Manual reload before the retry fires should replace it.
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if s.ProductsCount() != 3 {
		t.Fatalf("expected 3 products after manual reload, got %d", s.ProductsCount())
	}

	time.Sleep(150 * time.Millisecond)
	if calls := provider.callCount(); calls != 2 {
		t.Fatalf("expected 2 provider calls, pending retry was not disarmed: %d", calls)
	}
}

func TestConfigureValidatesInput(t *testing.T) {
	queue := newFakeQueue()
	provider := &fakeProvider{}
	provider.respond(testItems(), nil)

	s, _, _ := newTestStore(t, Deps{Queue: queue, Provider: provider})

	if err := s.Configure(context.Background(), nil, "secret"); !errors.Is(err, models.ErrNoProductIdentifiers) {
		t.Fatalf("expected ErrNoProductIdentifiers, got %v", err)
	}

	queue.mu.Lock()
	queue.paymentsOK = false
	queue.mu.Unlock()
	if err := s.Configure(context.Background(), []string{"com.app.gold"}, "secret"); !errors.Is(err, models.ErrPaymentsUnavailable) {
		t.Fatalf("expected ErrPaymentsUnavailable, got %v", err)
	}
}

func TestConfigureDeduplicatesIdentifiers(t *testing.T) {
	queue := newFakeQueue()
	provider := &fakeProvider{}
	provider.respond(testItems(), nil)

	s, _, _ := newTestStore(t, Deps{Queue: queue, Provider: provider})

	ids := []string{"com.app.gold", "com.app.silver", "com.app.gold"}
	if err := s.Configure(context.Background(), ids, "secret"); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	s.mu.Lock()
	got := len(s.productIDs)
	s.mu.Unlock()
	if got != 2 {
		t.Fatalf("expected 2 unique identifiers, got %d", got)
	}
}
