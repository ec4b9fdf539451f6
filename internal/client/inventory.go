package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minhphan/garageflow/internal/models"
	"go.uber.org/zap"
)

// InventoryClient queries stock levels and prices at a service center.
// All operations are read-only.
type InventoryClient struct {
	baseClient
}

// InventoryConfig holds inventory client configuration
type InventoryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(cfg InventoryConfig, logger *zap.Logger) *InventoryClient {
	return &InventoryClient{
		baseClient: newBaseClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger),
	}
}

// QueryRecords returns the inventory records at a center matching a part
// name. A name can match several records, so callers must match the exact
// part reference themselves.
func (c *InventoryClient) QueryRecords(ctx context.Context, centerID, partName string) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	path := fmt.Sprintf("/api/inventory?center_id=%s&part_name=%s",
		url.QueryEscape(centerID), url.QueryEscape(partName))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, fmt.Errorf("query inventory for %q at %s: %w", partName, centerID, err)
	}
	return records, nil
}

type catalogPart struct {
	PartName  string `json:"part_name"`
	SellPrice int64  `json:"sell_price"`
}

// CatalogPrice returns the catalog sell price for a part in VND. Used as
// the fallback when the center has no inventory record with a cost.
func (c *InventoryClient) CatalogPrice(ctx context.Context, partName string) (int64, error) {
	var part catalogPart
	path := "/api/parts/" + url.PathEscape(partName) + "/price"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &part); err != nil {
		return 0, fmt.Errorf("catalog price for %q: %w", partName, err)
	}
	return part.SellPrice, nil
}
