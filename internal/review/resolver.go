package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/minhphan/garageflow/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InventoryGateway is the read-only contract the review core needs from
// the inventory service.
type InventoryGateway interface {
	QueryRecords(ctx context.Context, centerID, partName string) ([]models.InventoryRecord, error)
	CatalogPrice(ctx context.Context, partName string) (int64, error)
}

// LineItemView is a checklist line item resolved to a display label and a
// unit price in VND.
type LineItemView struct {
	PartRef   string `json:"part_ref"`
	PartName  string `json:"part_name"`
	Label     string `json:"label"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Resolver resolves checklist line items against inventory and catalog
// prices. It never mutates anything.
type Resolver struct {
	inventory InventoryGateway
	logger    *zap.Logger
}

// NewResolver creates a new line item resolver
func NewResolver(inventory InventoryGateway, logger *zap.Logger) *Resolver {
	return &Resolver{inventory: inventory, logger: logger}
}

// Resolve returns one view per line item, in checklist order. The unit
// price comes from the center's inventory cost when present, falling back
// to the catalog sell price, falling back to zero. Price lookups for
// distinct part names run concurrently; a failed lookup degrades to the
// next price tier instead of failing the resolve.
func (r *Resolver) Resolve(ctx context.Context, checklist *models.Checklist, centerID string) []LineItemView {
	prices := r.lookupPrices(ctx, checklist.LineItems, centerID)

	views := make([]LineItemView, 0, len(checklist.LineItems))
	for _, item := range checklist.LineItems {
		views = append(views, LineItemView{
			PartRef:   item.PartRef,
			PartName:  item.PartName,
			Label:     fmt.Sprintf("%s x%d", item.PartName, item.Quantity),
			Quantity:  item.Quantity,
			UnitPrice: prices[item.PartName],
		})
	}
	return views
}

// lookupPrices resolves a unit price per unique part name.
func (r *Resolver) lookupPrices(ctx context.Context, items []models.LineItem, centerID string) map[string]int64 {
	unique := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.PartName] {
			seen[item.PartName] = true
			unique = append(unique, item.PartName)
		}
	}

	var mu sync.Mutex
	prices := make(map[string]int64, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range unique {
		name := name
		g.Go(func() error {
			price := r.priceFor(gctx, name, centerID)
			mu.Lock()
			prices[name] = price
			mu.Unlock()
			return nil
		})
	}
	// Tasks never return errors; they degrade internally.
	_ = g.Wait()

	return prices
}

// priceFor applies the price priority order for one part name.
func (r *Resolver) priceFor(ctx context.Context, partName, centerID string) int64 {
	if centerID != "" {
		records, err := r.inventory.QueryRecords(ctx, centerID, partName)
		if err != nil {
			r.logger.Warn("Inventory price lookup failed, falling back to catalog",
				zap.String("part_name", partName),
				zap.String("center_id", centerID),
				zap.Error(err))
		} else {
			for _, rec := range records {
				if rec.CostPerUnit > 0 {
					return rec.CostPerUnit
				}
			}
		}
	}

	price, err := r.inventory.CatalogPrice(ctx, partName)
	if err != nil {
		r.logger.Warn("Catalog price lookup failed, defaulting to zero",
			zap.String("part_name", partName),
			zap.Error(err))
		return 0
	}
	return price
}

// TotalAmount computes the settlement amount: sum of unit price times
// quantity over all line items, plus the service base price. Callers must
// recompute this from fresh views at session creation time.
func TotalAmount(views []LineItemView, basePrice int64) int64 {
	total := decimal.NewFromInt(basePrice)
	for _, v := range views {
		line := decimal.NewFromInt(v.UnitPrice).Mul(decimal.NewFromInt(int64(v.Quantity)))
		total = total.Add(line)
	}
	return total.IntPart()
}
