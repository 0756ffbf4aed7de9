package models

type GooglePurchase struct {
	Kind          string // "product" | "subscription"
	ProductID     string
	PurchaseToken string
	OrderID       string
	PackageName   string

	// Subscription-only
	ExpiryTimeMillis int64
	PaymentState     *int64
	CancelReason     int64
	AutoRenewing     bool

	// 0 = Purchased, 1 = Canceled, 2 = Pending
	PurchaseState int64

	Acknowledged bool
	Consumed     bool

	Status string // "ACTIVE" | "EXPIRED" | "PENDING" | "CANCELED" | "UNKNOWN"

	Raw string
}
