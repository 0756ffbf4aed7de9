package models

// verifyReceipt response status codes that need special handling.
const (
	ReceiptStatusOK = 0
	// ReceiptStatusSandboxReceipt means a sandbox receipt was sent to the
	// production endpoint; the request must be replayed against sandbox.
	ReceiptStatusSandboxReceipt = 21007
)

// ReceiptValidationRequest is the JSON body posted to the verifyReceipt
// endpoint. Field names are fixed by the remote API.
type ReceiptValidationRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password,omitempty"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

// LatestReceiptInfo is one entry of the latest_receipt_info array. Dates are
// strings in the "yyyy-MM-dd HH:mm:ss ZONE" layout.
type LatestReceiptInfo struct {
	ProductID        string `json:"product_id"`
	ExpiresDate      string `json:"expires_date"`
	CancellationDate string `json:"cancellation_date,omitempty"`
}

// ReceiptValidationResponse is the part of the verifyReceipt response the
// engine consumes.
type ReceiptValidationResponse struct {
	Status            int                 `json:"status"`
	Environment       string              `json:"environment,omitempty"`
	LatestReceiptInfo []LatestReceiptInfo `json:"latest_receipt_info"`
}
