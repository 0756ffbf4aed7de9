package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"storeBack/internal/models"
)

// ReceiptRepository stores the receipt blobs devices upload. Only the newest
// receipt matters for validation; older rows are kept for audit.
type ReceiptRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{DB: db}
}

func (r *ReceiptRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS receipts (
    id BIGINT NOT NULL AUTO_INCREMENT,
    receipt MEDIUMBLOB NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

func (r *ReceiptRepository) Save(ctx context.Context, receipt []byte) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO receipts (receipt) VALUES (?)`, receipt)
	return err
}

// Latest returns the newest stored receipt, or models.ErrNoReceipt.
func (r *ReceiptRepository) Latest(ctx context.Context) ([]byte, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var receipt []byte
	err := r.DB.QueryRowContext(ctx, `SELECT receipt FROM receipts ORDER BY id DESC LIMIT 1`).Scan(&receipt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoReceipt
	}
	return receipt, err
}
