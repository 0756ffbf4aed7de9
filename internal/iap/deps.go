package iap

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// Logger provides minimal logging required by the IAP module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ReceiptArchiver stores raw validation responses for audit. Optional.
type ReceiptArchiver interface {
	ArchiveReceipt(data []byte, name string) (string, error)
}

// Deps groups external dependencies needed by the IAP module.
type Deps struct {
	DB         *sql.DB
	RDB        *redis.Client
	Logger     Logger
	Config     Config
	HTTPClient *http.Client

	// Queue is the platform payment queue collaborator. It delivers batched
	// transaction updates on its own goroutine; the module serializes them.
	Queue PaymentQueue

	// Provider supplies product descriptors for the configured identifiers.
	Provider CatalogProvider

	// Receipts locates the locally stored purchase receipt.
	Receipts ReceiptSource

	// Busy brackets network-waiting purchase and restore operations. Optional.
	Busy BusyIndicator

	// Archive receives raw verifyReceipt responses. Optional.
	Archive ReceiptArchiver
}

// Validate ensures required dependencies are provided.
func (d *Deps) Validate() error {
	if d.DB == nil {
		return errors.New("iap deps: DB is required")
	}
	if d.Logger == nil {
		return errors.New("iap deps: Logger is required")
	}
	if d.Queue == nil {
		return errors.New("iap deps: Queue is required")
	}
	if d.Provider == nil {
		return errors.New("iap deps: Provider is required")
	}
	if d.HTTPClient == nil {
		d.HTTPClient = http.DefaultClient
	}
	if d.Busy == nil {
		d.Busy = nopBusy{}
	}
	return nil
}
