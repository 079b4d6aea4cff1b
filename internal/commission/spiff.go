package commission

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"commission-service/internal/models"
)

// excludedProducts earn zero commission unconditionally, before any spiff
// lookup. Matched as a case-insensitive substring of the product number
// or description.
var excludedProducts = []string{"shipping", "cc processing"}

var oneHundred = decimal.NewFromInt(100)

// SpiffLookup is the active-spiff set for one commission period, keyed
// by product number.
type SpiffLookup map[string]models.Spiff

// NewSpiffLookup filters the full spiff set down to those active for the
// period. When more than one spiff is active for a product, the one with
// the latest start date wins.
func NewSpiffLookup(spiffs []models.Spiff, periodStart, periodEnd time.Time) SpiffLookup {
	lookup := make(SpiffLookup)
	for _, s := range spiffs {
		if !s.ActiveFor(periodStart, periodEnd) {
			continue
		}
		if current, ok := lookup[s.ProductNumber]; ok && !s.StartDate.After(current.StartDate) {
			continue
		}
		lookup[s.ProductNumber] = s
	}
	return lookup
}

// normalizeIncentiveType lower-cases and strips non-letters so label
// variants like "Flat $" and "flat-rate" compare equal.
func normalizeIncentiveType(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isExcludedProduct(line *models.LineItem) bool {
	number := strings.ToLower(line.ProductNumber)
	desc := strings.ToLower(line.Description)
	for _, excluded := range excludedProducts {
		if strings.Contains(number, excluded) || strings.Contains(desc, excluded) {
			return true
		}
	}
	return false
}

// LineCommission computes one line item's commission. An active spiff
// replaces the percentage rate entirely: flat contributes quantity times
// the incentive value, percentage contributes revenue times the incentive
// percent. Absent a spiff the order's standard rate applies. The returned
// bool reports whether a spiff drove the amount.
func LineCommission(line *models.LineItem, lookup SpiffLookup, orderRate decimal.Decimal) (decimal.Decimal, bool) {
	if isExcludedProduct(line) {
		return decimal.Zero, false
	}

	if spiff, ok := lookup[line.ProductNumber]; ok {
		normalized := normalizeIncentiveType(spiff.IncentiveType)
		if strings.HasPrefix(normalized, models.IncentiveFlat) {
			return line.Quantity.Mul(spiff.IncentiveValue), true
		}
		if strings.HasPrefix(normalized, "percent") {
			return line.TotalRevenue.Mul(spiff.IncentiveValue).Div(oneHundred), true
		}
	}

	return line.TotalRevenue.Mul(orderRate).Div(oneHundred), false
}
