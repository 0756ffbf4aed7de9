package handlers

import (
	"encoding/json"
	"net/http"

	"storeBack/internal/iap"
)

// CatalogHandler exposes the loaded product catalog.
type CatalogHandler struct {
	Store *iap.Store
}

func NewCatalogHandler(store *iap.Store) *CatalogHandler {
	return &CatalogHandler{Store: store}
}

// ListProducts returns the current catalog. Empty until the first successful
// load; the engine retries failed loads on its own.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	items := h.Store.Catalog()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"products": items,
		"count":    len(items),
	})
}

// RefreshCatalog forces a reload of the product catalog.
func (h *CatalogHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Fetch(r.Context()); err != nil {
		http.Error(w, "load products: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"count":  h.Store.ProductsCount(),
	})
}
