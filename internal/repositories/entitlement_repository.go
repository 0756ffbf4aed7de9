package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"storeBack/internal/models"
)

type EntitlementRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewEntitlementRepository(db *sql.DB) *EntitlementRepository {
	return &EntitlementRepository{DB: db}
}

func (r *EntitlementRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS entitlements (
    product_id VARCHAR(255) NOT NULL,
    purchased TINYINT(1) NOT NULL DEFAULT 0,
    expires_at TIMESTAMP NULL DEFAULT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL DEFAULT NULL ON UPDATE CURRENT_TIMESTAMP,
    PRIMARY KEY (product_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

// SetPurchased upserts the purchased flag for a product. The record is
// created on first write and survives a reset to false.
func (r *EntitlementRepository) SetPurchased(ctx context.Context, productID string, purchased bool) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO entitlements (product_id, purchased) VALUES (?, ?)
ON DUPLICATE KEY UPDATE purchased = VALUES(purchased)
`, productID, purchased)
	return err
}

// IsPurchased reports the purchased flag; unknown products are simply not
// purchased.
func (r *EntitlementRepository) IsPurchased(ctx context.Context, productID string) (bool, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return false, err
	}
	var purchased bool
	err := r.DB.QueryRowContext(ctx, `SELECT purchased FROM entitlements WHERE product_id = ?`, productID).Scan(&purchased)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return purchased, err
}

// SetExpiration upserts the subscription expiration for a product.
func (r *EntitlementRepository) SetExpiration(ctx context.Context, productID string, expiresAt time.Time) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO entitlements (product_id, expires_at) VALUES (?, ?)
ON DUPLICATE KEY UPDATE expires_at = VALUES(expires_at)
`, productID, expiresAt.UTC())
	return err
}

// Expiration returns the stored expiration or nil when none is recorded.
func (r *EntitlementRepository) Expiration(ctx context.Context, productID string) (*time.Time, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var expires sql.NullTime
	err := r.DB.QueryRowContext(ctx, `SELECT expires_at FROM entitlements WHERE product_id = ?`, productID).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !expires.Valid {
		return nil, nil
	}
	t := expires.Time
	return &t, nil
}

// Get returns the full entitlement record for a product.
func (r *EntitlementRepository) Get(ctx context.Context, productID string) (models.Entitlement, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Entitlement{}, err
	}
	row := r.DB.QueryRowContext(ctx, `SELECT product_id, purchased, expires_at, created_at, updated_at FROM entitlements WHERE product_id = ?`, productID)
	ent, err := scanEntitlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entitlement{}, models.ErrNoRecord
	}
	return ent, err
}

// List returns every entitlement record ordered by product id.
func (r *EntitlementRepository) List(ctx context.Context) ([]models.Entitlement, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT product_id, purchased, expires_at, created_at, updated_at FROM entitlements ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ents []models.Entitlement
	for rows.Next() {
		ent, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		ents = append(ents, ent)
	}
	return ents, rows.Err()
}

// ExpiredProducts lists product ids whose subscription expiration is in the
// past. Used by the background refresher for reporting.
func (r *EntitlementRepository) ExpiredProducts(ctx context.Context, now time.Time) ([]string, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT product_id FROM entitlements WHERE expires_at IS NOT NULL AND expires_at < ?`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanEntitlement(scanner interface{ Scan(dest ...any) error }) (models.Entitlement, error) {
	var ent models.Entitlement
	var expires, updated sql.NullTime
	if err := scanner.Scan(&ent.ProductID, &ent.Purchased, &expires, &ent.CreatedAt, &updated); err != nil {
		return models.Entitlement{}, err
	}
	if expires.Valid {
		t := expires.Time
		ent.ExpiresAt = &t
	}
	if updated.Valid {
		t := updated.Time
		ent.UpdatedAt = &t
	}
	return ent, nil
}
