package models

// AppleTransaction contains the decoded transaction fields from Apple's JWS
// payload (App Store Server API and server notifications).
type AppleTransaction struct {
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	ProductID             string `json:"productId"`
	BundleID              string `json:"bundleId"`
	Environment           string `json:"environment"`
	PurchaseDate          int64  `json:"purchaseDate,omitempty"`
	ExpiresDate           int64  `json:"expiresDate,omitempty"`
	RevocationDate        int64  `json:"revocationDate,omitempty"`
	Raw                   string `json:"-"`
}

// AppleRenewalInfo contains decoded renewal fields from Apple's
// signedRenewalInfo JWS payload.
type AppleRenewalInfo struct {
	OriginalTransactionID string `json:"originalTransactionId"`
	AutoRenewProductID    string `json:"autoRenewProductId,omitempty"`
	Environment           string `json:"environment"`
	SignedDate            int64  `json:"signedDate"`
	BundleID              string `json:"bundleId,omitempty"`
	Raw                   string `json:"-"`
}

// AppleNotification wraps the server notification payload after signature
// verification.
type AppleNotification struct {
	NotificationType string `json:"notificationType"`
	Subtype          string `json:"subtype,omitempty"`
	Data             struct {
		AppAppleID            int64  `json:"appAppleId,omitempty"`
		BundleID              string `json:"bundleId,omitempty"`
		Environment           string `json:"environment"`
		SignedTransactionInfo string `json:"signedTransactionInfo,omitempty"`
		SignedRenewalInfo     string `json:"signedRenewalInfo,omitempty"`
		Status                string `json:"status,omitempty"`
	} `json:"data"`
	Version    string `json:"version"`
	SignedDate int64  `json:"signedDate"`
	Raw        string `json:"-"`
}
