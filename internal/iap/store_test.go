package iap

import (
	"context"
	"sync"
	"testing"
	"time"

	"storeBack/internal/iap/fsm"
	"storeBack/internal/models"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

type memEntitlements struct {
	mu       sync.Mutex
	flags    map[string]bool
	expires  map[string]time.Time
	writes   int
	writeErr error
}

func newMemEntitlements() *memEntitlements {
	return &memEntitlements{flags: map[string]bool{}, expires: map[string]time.Time{}}
}

func (m *memEntitlements) SetPurchased(_ context.Context, productID string, purchased bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.flags[productID] = purchased
	m.writes++
	return nil
}

func (m *memEntitlements) IsPurchased(_ context.Context, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[productID], nil
}

func (m *memEntitlements) SetExpiration(_ context.Context, productID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.expires[productID] = expiresAt
	return nil
}

func (m *memEntitlements) Expiration(_ context.Context, productID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.expires[productID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memEntitlements) List(context.Context) ([]models.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Entitlement, 0, len(m.flags))
	for id, purchased := range m.flags {
		out = append(out, models.Entitlement{ProductID: id, Purchased: purchased})
	}
	return out, nil
}

func (m *memEntitlements) ExpiredProducts(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, exp := range m.expires {
		if exp.Before(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memEntitlements) purchased(productID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[productID]
}

func (m *memEntitlements) expiration(productID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.expires[productID]
	return t, ok
}

type memLedger struct {
	mu        sync.Mutex
	processed map[string]models.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{processed: map[string]models.Transaction{}}
}

func (m *memLedger) IsProcessed(_ context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[transactionID]
	return ok, nil
}

func (m *memLedger) Save(_ context.Context, txn models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[txn.ID] = txn
	return nil
}

type fakeQueue struct {
	mu         sync.Mutex
	paymentsOK bool
	submitted  []string
	submitErr  error
	restoreErr error
	finished   []string
	ch         chan QueueEvent
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{paymentsOK: true, ch: make(chan QueueEvent, 8)}
}

func (q *fakeQueue) CanMakePayments() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paymentsOK
}

func (q *fakeQueue) Submit(_ context.Context, productID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitErr != nil {
		return q.submitErr
	}
	q.submitted = append(q.submitted, productID)
	return nil
}

func (q *fakeQueue) RestoreCompletedTransactions(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.restoreErr
}

func (q *fakeQueue) Finish(_ context.Context, txn models.Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finished = append(q.finished, txn.ID)
	return nil
}

func (q *fakeQueue) Updates() <-chan QueueEvent { return q.ch }

func (q *fakeQueue) finishedCount(transactionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, id := range q.finished {
		if id == transactionID {
			n++
		}
	}
	return n
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	items [][]models.Item
	errs  []error
}

// respond queues one Products response; calls past the queued responses
// repeat the last one.
func (p *fakeProvider) respond(items []models.Item, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, items)
	p.errs = append(p.errs, err)
}

func (p *fakeProvider) Products(context.Context, []string) ([]models.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return nil, nil
	}
	i := p.calls
	if i >= len(p.items) {
		i = len(p.items) - 1
	}
	p.calls++
	return p.items[i], p.errs[i]
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeReceipts struct {
	mu        sync.Mutex
	data      []byte
	err       error
	refreshed bool
}

func (r *fakeReceipts) Receipt(context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.data, nil
}

func (r *fakeReceipts) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshed = true
	r.err = nil
	return nil
}

type countBusy struct {
	mu     sync.Mutex
	begins int
	ends   int
}

func (b *countBusy) Begin() {
	b.mu.Lock()
	b.begins++
	b.mu.Unlock()
}

func (b *countBusy) End() {
	b.mu.Lock()
	b.ends++
	b.mu.Unlock()
}

func (b *countBusy) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.begins, b.ends
}

type recListener struct {
	mu        sync.Mutex
	purchased []models.Item
	restored  []models.Item
	unlisted  []string
	catalogs  [][]models.Item

	catalogErrs  []error
	purchaseErrs []error
	restoreErrs  []error
	canceled     []error
}

func (l *recListener) WillPurchase(models.Item) {}

func (l *recListener) DidPurchase(item models.Item) {
	l.mu.Lock()
	l.purchased = append(l.purchased, item)
	l.mu.Unlock()
}

func (l *recListener) DidRestore(item models.Item) {
	l.mu.Lock()
	l.restored = append(l.restored, item)
	l.mu.Unlock()
}

func (l *recListener) DidRestoreUnlisted(productID string) {
	l.mu.Lock()
	l.unlisted = append(l.unlisted, productID)
	l.mu.Unlock()
}

func (l *recListener) CatalogUpdated(items []models.Item) {
	l.mu.Lock()
	l.catalogs = append(l.catalogs, items)
	l.mu.Unlock()
}

func (l *recListener) CatalogError(err error) {
	l.mu.Lock()
	l.catalogErrs = append(l.catalogErrs, err)
	l.mu.Unlock()
}

func (l *recListener) PurchaseError(err error) {
	l.mu.Lock()
	l.purchaseErrs = append(l.purchaseErrs, err)
	l.mu.Unlock()
}

func (l *recListener) RestoreError(err error) {
	l.mu.Lock()
	l.restoreErrs = append(l.restoreErrs, err)
	l.mu.Unlock()
}

func (l *recListener) PurchaseCanceled(err error) {
	l.mu.Lock()
	l.canceled = append(l.canceled, err)
	l.mu.Unlock()
}

func (l *recListener) snapshot() recListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return recListener{
		purchased:    append([]models.Item(nil), l.purchased...),
		restored:     append([]models.Item(nil), l.restored...),
		unlisted:     append([]string(nil), l.unlisted...),
		catalogs:     append([][]models.Item(nil), l.catalogs...),
		catalogErrs:  append([]error(nil), l.catalogErrs...),
		purchaseErrs: append([]error(nil), l.purchaseErrs...),
		restoreErrs:  append([]error(nil), l.restoreErrs...),
		canceled:     append([]error(nil), l.canceled...),
	}
}

// newTestStore wires a store around in-memory collaborators, bypassing the
// SQL-backed repositories.
func newTestStore(t *testing.T, deps Deps) (*Store, *memEntitlements, *memLedger) {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Busy == nil {
		deps.Busy = nopBusy{}
	}
	ents := newMemEntitlements()
	ledger := newMemLedger()
	s := &Store{
		deps:          deps,
		cfg:           deps.Config,
		hub:           NewHub(),
		entitlements:  ents,
		transactions:  ledger,
		attemptStatus: fsm.StatusIdle,
		productIDs:    append([]string(nil), deps.Config.ProductIDs...),
		sharedSecret:  deps.Config.SharedSecret,
	}
	t.Cleanup(s.stopRetryTimer)
	return s, ents, ledger
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
