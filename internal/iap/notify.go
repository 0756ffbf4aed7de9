package iap

import (
	"sync"

	"storeBack/internal/models"
)

// Listener receives purchase lifecycle events. Implementations that only care
// about a subset of events should embed NopListener.
type Listener interface {
	WillPurchase(item models.Item)
	DidPurchase(item models.Item)
	DidRestore(item models.Item)

	// DidRestoreUnlisted fires for a reconciled product that is not part of
	// the current catalog, e.g. a retired identifier replayed by the queue.
	DidRestoreUnlisted(productID string)

	CatalogUpdated(items []models.Item)
	CatalogError(err error)

	PurchaseError(err error)
	RestoreError(err error)
	PurchaseCanceled(err error)
}

// NopListener implements every Listener method as a no-op.
type NopListener struct{}

func (NopListener) WillPurchase(models.Item)     {}
func (NopListener) DidPurchase(models.Item)      {}
func (NopListener) DidRestore(models.Item)       {}
func (NopListener) DidRestoreUnlisted(string)    {}
func (NopListener) CatalogUpdated([]models.Item) {}
func (NopListener) CatalogError(error)           {}
func (NopListener) PurchaseError(error)          {}
func (NopListener) RestoreError(error)           {}
func (NopListener) PurchaseCanceled(error)       {}

// BusyIndicator brackets long-running purchase and restore operations, e.g.
// an activity spinner on the client.
type BusyIndicator interface {
	Begin()
	End()
}

type nopBusy struct{}

func (nopBusy) Begin() {}
func (nopBusy) End()   {}

// Hub fans lifecycle events out to registered listeners.
type Hub struct {
	mu        sync.Mutex
	listeners []Listener
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a listener for all subsequent events.
func (h *Hub) Subscribe(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

func (h *Hub) each(fn func(Listener)) {
	h.mu.Lock()
	listeners := make([]Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()
	for _, l := range listeners {
		fn(l)
	}
}

func (h *Hub) WillPurchase(item models.Item) { h.each(func(l Listener) { l.WillPurchase(item) }) }
func (h *Hub) DidPurchase(item models.Item)  { h.each(func(l Listener) { l.DidPurchase(item) }) }
func (h *Hub) DidRestore(item models.Item)   { h.each(func(l Listener) { l.DidRestore(item) }) }
func (h *Hub) DidRestoreUnlisted(id string)  { h.each(func(l Listener) { l.DidRestoreUnlisted(id) }) }
func (h *Hub) CatalogUpdated(items []models.Item) {
	h.each(func(l Listener) { l.CatalogUpdated(items) })
}
func (h *Hub) CatalogError(err error)     { h.each(func(l Listener) { l.CatalogError(err) }) }
func (h *Hub) PurchaseError(err error)    { h.each(func(l Listener) { l.PurchaseError(err) }) }
func (h *Hub) RestoreError(err error)     { h.each(func(l Listener) { l.RestoreError(err) }) }
func (h *Hub) PurchaseCanceled(err error) { h.each(func(l Listener) { l.PurchaseCanceled(err) }) }
