package models

import (
	"errors"
)

var ErrPaymentsUnavailable = errors.New("payments are not available")
var ErrNoProductIdentifiers = errors.New("no product identifiers configured")
var ErrNoReceipt = errors.New("no local receipt")
var (
	ErrNoRecord            = errors.New("models: no matching record found")
	ErrInvalidCredentials  = errors.New("models: invalid credentials")
	ErrUnknownProduct      = errors.New("models: unknown product identifier")
	ErrAlreadyPurchased    = errors.New("models: product already purchased")
	ErrPurchaseInProgress  = errors.New("models: purchase already in progress")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateDevice     = errors.New("models: duplicate device")
)
