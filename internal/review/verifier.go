package review

import (
	"context"

	"github.com/minhphan/garageflow/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Verifier checks whether the service center's stock covers each line
// item of a checklist. Verification is fail-closed: anything that
// prevents a confident answer counts as insufficient.
type Verifier struct {
	inventory InventoryGateway
	logger    *zap.Logger
}

// NewVerifier creates a new inventory verifier
func NewVerifier(inventory InventoryGateway, logger *zap.Logger) *Verifier {
	return &Verifier{inventory: inventory, logger: logger}
}

// Verify runs one concurrent stock lookup per line item and returns a
// verdict map keyed by part reference, with exactly one entry per item.
// A missing center id fails every item closed without any lookups. A
// failed or ambiguous lookup degrades that item to insufficient with zero
// availability; it never blocks or corrupts the other items.
func (v *Verifier) Verify(ctx context.Context, centerID string, items []models.LineItem) map[string]models.LineItemSufficiency {
	result := make(map[string]models.LineItemSufficiency, len(items))

	if centerID == "" {
		v.logger.Warn("Inventory verification without a center id, failing closed",
			zap.Int("items", len(items)))
		for _, item := range items {
			result[item.PartRef] = models.LineItemSufficiency{
				PartRef:          item.PartRef,
				RequiredQuantity: item.Quantity,
				Sufficient:       false,
				Checking:         false,
			}
		}
		return result
	}

	// One slot per item; each goroutine owns exactly one index, so the
	// fan-in needs no locking.
	slots := make([]models.LineItemSufficiency, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		slots[i] = models.LineItemSufficiency{
			PartRef:          item.PartRef,
			RequiredQuantity: item.Quantity,
			Checking:         true,
		}
		i, item := i, item
		g.Go(func() error {
			slots[i] = v.checkItem(gctx, centerID, item)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range slots {
		result[s.PartRef] = s
	}
	return result
}

// checkItem resolves one line item's verdict.
func (v *Verifier) checkItem(ctx context.Context, centerID string, item models.LineItem) models.LineItemSufficiency {
	verdict := models.LineItemSufficiency{
		PartRef:          item.PartRef,
		RequiredQuantity: item.Quantity,
		Checking:         false,
	}

	records, err := v.inventory.QueryRecords(ctx, centerID, item.PartName)
	if err != nil {
		v.logger.Warn("Inventory lookup failed, marking item insufficient",
			zap.String("part_ref", item.PartRef),
			zap.String("part_name", item.PartName),
			zap.String("center_id", centerID),
			zap.Error(err))
		return verdict
	}

	// A part name can match several records; only the exact part
	// reference counts.
	for _, rec := range records {
		if rec.PartRef == item.PartRef {
			verdict.AvailableQuantity = rec.AvailableQuantity
			verdict.InventoryRecordID = rec.RecordID
			break
		}
	}

	verdict.Sufficient = verdict.AvailableQuantity >= verdict.RequiredQuantity
	return verdict
}
