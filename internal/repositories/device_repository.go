package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"storeBack/internal/models"
)

type DeviceRepository struct {
	DB *sql.DB

	once sync.Once
	err  error
}

func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{DB: db}
}

func (r *DeviceRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		const ddl = `
CREATE TABLE IF NOT EXISTS devices (
    device_id VARCHAR(64) NOT NULL,
    platform VARCHAR(16) NOT NULL DEFAULT 'ios',
    secret_hash VARCHAR(255) NOT NULL,
    fcm_token VARCHAR(512) NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL DEFAULT NULL ON UPDATE CURRENT_TIMESTAMP,
    PRIMARY KEY (device_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
		_, r.err = r.DB.ExecContext(ctx, ddl)
	})
	return r.err
}

func (r *DeviceRepository) Create(ctx context.Context, device models.Device, secretHash string) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO devices (device_id, platform, secret_hash, fcm_token) VALUES (?, ?, ?, ?)
`, device.ID, device.Platform, secretHash, device.FCMToken)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate") {
		return models.ErrDuplicateDevice
	}
	return err
}

func (r *DeviceRepository) SecretHash(ctx context.Context, deviceID string) (string, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return "", err
	}
	var hash string
	err := r.DB.QueryRowContext(ctx, `SELECT secret_hash FROM devices WHERE device_id = ?`, deviceID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrDeviceNotFound
	}
	return hash, err
}

func (r *DeviceRepository) UpdateFCMToken(ctx context.Context, deviceID, token string) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE devices SET fcm_token = ? WHERE device_id = ?`, token, deviceID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrDeviceNotFound
	}
	return nil
}

// PushTokens returns every non-empty FCM token.
func (r *DeviceRepository) PushTokens(ctx context.Context) ([]string, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT fcm_token FROM devices WHERE fcm_token <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
