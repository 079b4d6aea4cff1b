package commission

import (
	"github.com/shopspring/decimal"

	"commission-service/internal/models"
)

// RecalcResult reports what a recalculation did to one detail row.
type RecalcResult struct {
	Changed      bool
	Amount       decimal.Decimal
	OrderRevenue decimal.Decimal
	HasSpiff     bool
}

// RecalculateDetail recomputes an order's commission from its line items
// with spiffs resolved. When the detail is manually overridden the stored
// amount is frozen: only the auxiliary has-spiff flag may change. The
// financial figure stays until an admin explicitly clears the override.
func RecalculateDetail(detail *models.CommissionDetail, lines []*models.LineItem, lookup SpiffLookup) RecalcResult {
	total := decimal.Zero
	revenue := decimal.Zero
	hasSpiff := false

	for _, line := range lines {
		amount, spiffed := LineCommission(line, lookup, detail.CommissionRate)
		total = total.Add(amount)
		revenue = revenue.Add(line.TotalRevenue)
		if spiffed {
			hasSpiff = true
		}
	}

	result := RecalcResult{
		Amount:       total,
		OrderRevenue: revenue,
		HasSpiff:     hasSpiff,
	}

	if detail.IsOverride {
		result.Changed = detail.HasSpiff != hasSpiff
		detail.HasSpiff = hasSpiff
		result.Amount = detail.CommissionAmount
		return result
	}

	result.Changed = !detail.CommissionAmount.Equal(total) ||
		!detail.OrderRevenue.Equal(revenue) ||
		detail.HasSpiff != hasSpiff
	detail.CommissionAmount = total
	detail.OrderRevenue = revenue
	detail.HasSpiff = hasSpiff
	return result
}

// ApplyAdjustment applies a manual adjustment on top of the original
// calculated amount and freezes the detail against recomputation. The
// stored amount is original + adjustment so the original stays derivable
// as commission_amount - manual_adjustment.
func ApplyAdjustment(detail *models.CommissionDetail, amount decimal.Decimal, note string) decimal.Decimal {
	original := detail.OriginalAmount()
	detail.CommissionAmount = original.Add(amount)
	detail.ManualAdjustment = decimal.NewNullDecimal(amount)
	detail.ManualAdjustmentNote = note
	detail.IsOverride = true
	return detail.CommissionAmount
}

// ClearOverride removes a manual override, restoring the detail to
// automatic recalculation. The next recompute rebuilds the amount.
func ClearOverride(detail *models.CommissionDetail) {
	detail.CommissionAmount = detail.OriginalAmount()
	detail.ManualAdjustment = decimal.NullDecimal{}
	detail.ManualAdjustmentNote = ""
	detail.IsOverride = false
}
