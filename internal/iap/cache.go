package iap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storeBack/internal/models"
)

// StatusCache keeps hot entitlement flags and the last good catalog snapshot
// in Redis so that read endpoints do not hit MySQL on every request.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client, catalogTTL time.Duration) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: catalogTTL}
}

func purchasedKey(productID string) string {
	return fmt.Sprintf("iap:purchased:%s", productID)
}

const catalogKey = "iap:catalog"

// SetPurchased mirrors an entitlement flag. Cache failures are not fatal.
func (c *StatusCache) SetPurchased(ctx context.Context, productID string, purchased bool) error {
	val := "0"
	if purchased {
		val = "1"
	}
	return c.rdb.Set(ctx, purchasedKey(productID), val, 0).Err()
}

// IsPurchased returns the cached flag and whether the key was present.
func (c *StatusCache) IsPurchased(ctx context.Context, productID string) (bool, bool, error) {
	val, err := c.rdb.Get(ctx, purchasedKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

// StoreCatalog snapshots the catalog with the configured TTL.
func (c *StatusCache) StoreCatalog(ctx context.Context, items []models.Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, catalogKey, data, c.ttl).Err()
}

// Catalog returns the snapshotted catalog, or nil when the key is absent or
// expired.
func (c *StatusCache) Catalog(ctx context.Context) ([]models.Item, error) {
	data, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []models.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
