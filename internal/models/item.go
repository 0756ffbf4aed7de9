package models

import (
	"fmt"
	"strings"
	"time"
)

// Item describes a single purchasable product as returned by the catalog
// provider. Items are immutable; the catalog is replaced wholesale on every
// successful load.
type Item struct {
	ProductID      string  `json:"product_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	LocalizedPrice string  `json:"localized_price,omitempty"`
}

// DisplayPrice returns the localized price if the provider supplied one,
// otherwise a plain "<price> <currency>" fallback.
func (i Item) DisplayPrice() string {
	if strings.TrimSpace(i.LocalizedPrice) != "" {
		return i.LocalizedPrice
	}
	if i.Currency == "" {
		return fmt.Sprintf("%.2f", i.Price)
	}
	return fmt.Sprintf("%.2f %s", i.Price, i.Currency)
}

// PricePerMonth splits the item price over a subscription period.
func (i Item) PricePerMonth(monthsCount int) float64 {
	if monthsCount <= 0 {
		return i.Price
	}
	return i.Price / float64(monthsCount)
}

// CatalogUpdate is broadcast to websocket clients when the catalog changes.
type CatalogUpdate struct {
	Items    []Item    `json:"items"`
	LoadedAt time.Time `json:"loaded_at"`
}
