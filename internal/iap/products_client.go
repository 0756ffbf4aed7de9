package iap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storeBack/internal/models"
)

// ProductsClient fetches product metadata from a catalog service over HTTP.
// It implements CatalogProvider.
type ProductsClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewProductsClient constructs a catalog client for the given base URL.
func NewProductsClient(httpClient *http.Client, baseURL string) *ProductsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProductsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Products requests metadata for the given product identifiers. Identifiers
// unknown to the catalog service are absent from the result, not an error.
func (c *ProductsClient) Products(ctx context.Context, ids []string) ([]models.Item, error) {
	url := c.baseURL + "/products?ids=" + strings.Join(ids, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog: unexpected status %s", resp.Status)
	}

	var apiResp struct {
		Products []models.Item `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	return apiResp.Products, nil
}
