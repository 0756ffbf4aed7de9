package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"storeBack/internal/models"
)

// IAPTransactionRepository stores every reconciled transaction so that queue
// redeliveries and process restarts stay idempotent: a transaction id seen
// before is acknowledged again but produces no second entitlement write.
type IAPTransactionRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewIAPTransactionRepository(db *sql.DB) *IAPTransactionRepository {
	return &IAPTransactionRepository{DB: db}
}

func (r *IAPTransactionRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS iap_transactions (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    transaction_id VARCHAR(255) NOT NULL,
    original_transaction_id VARCHAR(255) NOT NULL DEFAULT '',
    product_id VARCHAR(255) NOT NULL DEFAULT '',
    outcome VARCHAR(32) NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_transaction_id (transaction_id),
    KEY idx_original_transaction (original_transaction_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

// IsProcessed returns true if the transaction id is already stored.
func (r *IAPTransactionRepository) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return false, err
	}
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM iap_transactions WHERE transaction_id = ?)`, transactionID).Scan(&exists)
	return exists, err
}

// Save stores a reconciled transaction. It is safe to call multiple times for
// the same transaction id: duplicates are ignored.
func (r *IAPTransactionRepository) Save(ctx context.Context, txn models.Transaction) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	if txn.ID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO iap_transactions (transaction_id, original_transaction_id, product_id, outcome)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE transaction_id = transaction_id
`, txn.ID, txn.OriginalID, txn.ProductID, txn.Outcome)
	return err
}

// FindByOriginalTransactionID returns the latest stored transaction for an
// original transaction id, for renewals arriving through webhooks.
func (r *IAPTransactionRepository) FindByOriginalTransactionID(ctx context.Context, originalID string) (models.Transaction, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Transaction{}, err
	}
	var txn models.Transaction
	err := r.DB.QueryRowContext(ctx, `
SELECT transaction_id, original_transaction_id, product_id, outcome
FROM iap_transactions WHERE original_transaction_id = ? ORDER BY id DESC LIMIT 1
`, originalID).Scan(&txn.ID, &txn.OriginalID, &txn.ProductID, &txn.Outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	return txn, err
}
