package review

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/minhphan/garageflow/internal/models"
)

// IsReleaseReady is the aggregate gate: true only when the checklist has
// at least one line item and every item has a finished, sufficient
// verdict. An item still checking withholds approval; it is never treated
// as implicitly fine. A checklist with no line items is never ready.
func IsReleaseReady(sufficiency map[string]models.LineItemSufficiency, items []models.LineItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		verdict, ok := sufficiency[item.PartRef]
		if !ok {
			return false
		}
		if verdict.Checking || !verdict.Sufficient {
			return false
		}
	}
	return true
}

// Fingerprint identifies the inputs a sufficiency map was computed for.
// When the center or the line item set changes, the fingerprint changes
// and a stale map must not gate approval.
func Fingerprint(centerID string, items []models.LineItem) string {
	var b strings.Builder
	b.WriteString(centerID)
	for _, item := range items {
		fmt.Fprintf(&b, "|%s:%d", item.PartRef, item.Quantity)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
