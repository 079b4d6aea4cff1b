package commission

import (
	"testing"

	"github.com/shopspring/decimal"

	"commission-service/internal/models"
)

func TestRecalculateDetail_SumsLineCommissions(t *testing.T) {
	detail := &models.CommissionDetail{
		SONumber:       "SO-100",
		CommissionRate: dec("8"),
	}
	lines := []*models.LineItem{
		{ProductNumber: "A", TotalRevenue: dec("1000")},
		{ProductNumber: "B", TotalRevenue: dec("500")},
	}

	result := RecalculateDetail(detail, lines, SpiffLookup{})
	if !result.Changed {
		t.Fatal("expected recalculation to report a change")
	}
	if !detail.CommissionAmount.Equal(dec("120")) {
		t.Fatalf("expected commission 120, got %s", detail.CommissionAmount)
	}
	if !detail.OrderRevenue.Equal(dec("1500")) {
		t.Fatalf("expected revenue 1500, got %s", detail.OrderRevenue)
	}
	if detail.HasSpiff {
		t.Fatal("no spiff was involved")
	}
}

func TestRecalculateDetail_OverrideFreezesAmount(t *testing.T) {
	detail := &models.CommissionDetail{
		SONumber:         "SO-100",
		CommissionRate:   dec("8"),
		CommissionAmount: dec("500"),
		IsOverride:       true,
	}
	lookup := SpiffLookup{
		"WIDGET": {ProductNumber: "WIDGET", IncentiveType: "flat", IncentiveValue: dec("2")},
	}
	lines := []*models.LineItem{
		{ProductNumber: "WIDGET", Quantity: dec("10"), TotalRevenue: dec("1000")},
	}

	result := RecalculateDetail(detail, lines, lookup)
	if !detail.CommissionAmount.Equal(dec("500")) {
		t.Fatalf("overridden amount was touched: %s", detail.CommissionAmount)
	}
	if !result.Amount.Equal(dec("500")) {
		t.Fatalf("result should report the frozen amount, got %s", result.Amount)
	}
	// Auxiliary flags may still update under an override.
	if !detail.HasSpiff {
		t.Fatal("has_spiff should be refreshed even when frozen")
	}
}

func TestApplyAdjustment_OriginalStaysDerivable(t *testing.T) {
	detail := &models.CommissionDetail{
		SONumber:         "SO-100",
		CommissionAmount: dec("120"),
	}

	newTotal := ApplyAdjustment(detail, dec("30"), "missed spiff window")
	if !newTotal.Equal(dec("150")) {
		t.Fatalf("expected new total 150, got %s", newTotal)
	}
	if !detail.IsOverride {
		t.Fatal("adjustment must freeze the detail")
	}
	if !detail.OriginalAmount().Equal(dec("120")) {
		t.Fatalf("original amount not derivable, got %s", detail.OriginalAmount())
	}

	// Re-adjusting replaces the delta against the same original.
	newTotal = ApplyAdjustment(detail, dec("-20"), "correction")
	if !newTotal.Equal(dec("100")) {
		t.Fatalf("expected new total 100 after re-adjustment, got %s", newTotal)
	}
	if !detail.OriginalAmount().Equal(dec("120")) {
		t.Fatalf("original drifted after re-adjustment: %s", detail.OriginalAmount())
	}
}

func TestClearOverride_RestoresOriginal(t *testing.T) {
	detail := &models.CommissionDetail{
		SONumber:         "SO-100",
		CommissionAmount: dec("150"),
		ManualAdjustment: decimal.NewNullDecimal(dec("30")),
		IsOverride:       true,
	}

	ClearOverride(detail)
	if detail.IsOverride {
		t.Fatal("override flag should be cleared")
	}
	if detail.ManualAdjustment.Valid {
		t.Fatal("manual adjustment should be cleared")
	}
	if !detail.CommissionAmount.Equal(dec("120")) {
		t.Fatalf("expected restored amount 120, got %s", detail.CommissionAmount)
	}
}

func TestRecalculateDetail_UnchangedWhenAmountsMatch(t *testing.T) {
	detail := &models.CommissionDetail{
		SONumber:         "SO-100",
		CommissionRate:   dec("8"),
		CommissionAmount: dec("80"),
		OrderRevenue:     dec("1000"),
	}
	lines := []*models.LineItem{
		{ProductNumber: "A", TotalRevenue: dec("1000")},
	}

	result := RecalculateDetail(detail, lines, SpiffLookup{})
	if result.Changed {
		t.Fatalf("no change expected, got %+v", result)
	}
}
