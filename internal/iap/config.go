package iap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRetryInterval   = 15 * time.Second
	defaultRefreshInterval = 24 * time.Hour
	defaultCatalogCacheTTL = 10 * time.Minute

	sandboxVerifyURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
	productionVerifyURL = "https://buy.itunes.apple.com/verifyReceipt"
)

// Config holds runtime configuration for the IAP module.
type Config struct {
	// Environment selects the default verifyReceipt endpoint: "sandbox" or
	// "production". A 21007 response from production falls back to sandbox
	// regardless of this setting.
	Environment string

	ProductIDs   []string
	SharedSecret string

	// CatalogURL is the product catalog provider endpoint.
	CatalogURL string

	RetryInterval   time.Duration
	RefreshInterval time.Duration
	CatalogCacheTTL time.Duration

	// Endpoint overrides, used by tests.
	VerifyURL        string
	SandboxVerifyURL string
}

// LoadConfig reads configuration from environment variables and applies
// defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Environment:      "production",
		RetryInterval:    defaultRetryInterval,
		RefreshInterval:  defaultRefreshInterval,
		CatalogCacheTTL:  defaultCatalogCacheTTL,
		VerifyURL:        productionVerifyURL,
		SandboxVerifyURL: sandboxVerifyURL,
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("IAP_ENVIRONMENT"))); v != "" {
		if v != "sandbox" && v != "production" {
			return Config{}, fmt.Errorf("parse IAP_ENVIRONMENT: unknown value %q", v)
		}
		cfg.Environment = v
	}
	if cfg.Environment == "sandbox" {
		cfg.VerifyURL = sandboxVerifyURL
	}

	if v := strings.TrimSpace(os.Getenv("IAP_PRODUCT_IDS")); v != "" {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.ProductIDs = append(cfg.ProductIDs, id)
			}
		}
	}

	cfg.SharedSecret = strings.TrimSpace(os.Getenv("IAP_SHARED_SECRET"))
	cfg.CatalogURL = strings.TrimSpace(os.Getenv("IAP_CATALOG_URL"))

	if v, err := readDurationEnv("IAP_RETRY_INTERVAL"); err != nil {
		return Config{}, fmt.Errorf("parse IAP_RETRY_INTERVAL: %w", err)
	} else if v != nil {
		cfg.RetryInterval = *v
	}

	if v, err := readDurationEnv("IAP_REFRESH_INTERVAL"); err != nil {
		return Config{}, fmt.Errorf("parse IAP_REFRESH_INTERVAL: %w", err)
	} else if v != nil {
		cfg.RefreshInterval = *v
	}

	if v, err := readDurationEnv("IAP_CATALOG_CACHE_TTL"); err != nil {
		return Config{}, fmt.Errorf("parse IAP_CATALOG_CACHE_TTL: %w", err)
	} else if v != nil {
		cfg.CatalogCacheTTL = *v
	}

	return cfg, nil
}

func readDurationEnv(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		d := time.Duration(secs) * time.Second
		return &d, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
