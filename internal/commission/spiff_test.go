package commission

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"commission-service/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewSpiffLookup_ActivityWindow(t *testing.T) {
	periodStart := date(2025, time.June, 1)
	periodEnd := date(2025, time.June, 30)

	spiffs := []models.Spiff{
		{ProductNumber: "OPEN-ENDED", StartDate: date(2025, time.January, 1)},
		{ProductNumber: "ENDED-BEFORE", StartDate: date(2025, time.January, 1),
			EndDate: sql.NullTime{Time: date(2025, time.May, 31), Valid: true}},
		{ProductNumber: "STARTS-AFTER", StartDate: date(2025, time.July, 1)},
		{ProductNumber: "ENDS-MID-PERIOD", StartDate: date(2025, time.January, 1),
			EndDate: sql.NullTime{Time: date(2025, time.June, 10), Valid: true}},
	}

	lookup := NewSpiffLookup(spiffs, periodStart, periodEnd)

	if _, ok := lookup["OPEN-ENDED"]; !ok {
		t.Fatal("open-ended spiff should be active")
	}
	if _, ok := lookup["ENDED-BEFORE"]; ok {
		t.Fatal("spiff ended before the period should be inactive")
	}
	if _, ok := lookup["STARTS-AFTER"]; ok {
		t.Fatal("spiff starting after the period should be inactive")
	}
	if _, ok := lookup["ENDS-MID-PERIOD"]; !ok {
		t.Fatal("spiff overlapping the period start should be active")
	}
}

func TestNewSpiffLookup_LatestStartWins(t *testing.T) {
	periodStart := date(2025, time.June, 1)
	periodEnd := date(2025, time.June, 30)

	spiffs := []models.Spiff{
		{ProductNumber: "WIDGET", IncentiveValue: dec("1"), StartDate: date(2025, time.January, 1)},
		{ProductNumber: "WIDGET", IncentiveValue: dec("2"), StartDate: date(2025, time.May, 1)},
	}

	lookup := NewSpiffLookup(spiffs, periodStart, periodEnd)
	if !lookup["WIDGET"].IncentiveValue.Equal(dec("2")) {
		t.Fatalf("expected latest-starting spiff, got value %s", lookup["WIDGET"].IncentiveValue)
	}
}

func TestLineCommission_FlatSpiffPrecedesRate(t *testing.T) {
	// $2/unit flat spiff, qty 10, 8% rate on $1000 → $20, not $80.
	lookup := SpiffLookup{
		"WIDGET": {ProductNumber: "WIDGET", IncentiveType: "flat", IncentiveValue: dec("2")},
	}
	line := &models.LineItem{
		ProductNumber: "WIDGET",
		Quantity:      dec("10"),
		TotalRevenue:  dec("1000"),
	}

	amount, hasSpiff := LineCommission(line, lookup, dec("8"))
	if !amount.Equal(dec("20")) {
		t.Fatalf("expected $20 flat spiff commission, got %s", amount)
	}
	if !hasSpiff {
		t.Fatal("expected spiff flag set")
	}
}

func TestLineCommission_PercentageSpiff(t *testing.T) {
	lookup := SpiffLookup{
		"WIDGET": {ProductNumber: "WIDGET", IncentiveType: "percentage", IncentiveValue: dec("12")},
	}
	line := &models.LineItem{ProductNumber: "WIDGET", TotalRevenue: dec("500")}

	amount, hasSpiff := LineCommission(line, lookup, dec("8"))
	if !amount.Equal(dec("60")) {
		t.Fatalf("expected $60 percentage spiff commission, got %s", amount)
	}
	if !hasSpiff {
		t.Fatal("expected spiff flag set")
	}
}

func TestLineCommission_IncentiveTypeLabelVariants(t *testing.T) {
	cases := []struct {
		label    string
		expected string
	}{
		{"flat", "20"},
		{"Flat $", "20"},
		{"flat-rate", "20"},
		{"FLAT", "20"},
		{"percentage", "120"},
		{"Percent %", "120"},
	}

	line := &models.LineItem{
		ProductNumber: "WIDGET",
		Quantity:      dec("10"),
		TotalRevenue:  dec("6000"),
	}
	for _, tc := range cases {
		lookup := SpiffLookup{
			"WIDGET": {ProductNumber: "WIDGET", IncentiveType: tc.label, IncentiveValue: dec("2")},
		}
		amount, _ := LineCommission(line, lookup, dec("8"))
		if !amount.Equal(dec(tc.expected)) {
			t.Fatalf("label %q: expected %s, got %s", tc.label, tc.expected, amount)
		}
	}
}

func TestLineCommission_NoSpiffUsesOrderRate(t *testing.T) {
	line := &models.LineItem{ProductNumber: "WIDGET", TotalRevenue: dec("1000")}

	amount, hasSpiff := LineCommission(line, SpiffLookup{}, dec("8"))
	if !amount.Equal(dec("80")) {
		t.Fatalf("expected $80 standard commission, got %s", amount)
	}
	if hasSpiff {
		t.Fatal("spiff flag should not be set")
	}
}

func TestLineCommission_ShippingAndCCExcluded(t *testing.T) {
	lookup := SpiffLookup{
		"SHIPPING-STD": {ProductNumber: "SHIPPING-STD", IncentiveType: "flat", IncentiveValue: dec("5")},
	}

	cases := []*models.LineItem{
		{ProductNumber: "SHIPPING-STD", Quantity: dec("1"), TotalRevenue: dec("45")},
		{ProductNumber: "MISC", Description: "Shipping and handling", TotalRevenue: dec("45")},
		{ProductNumber: "FEE", Description: "CC Processing Fee", TotalRevenue: dec("30")},
	}

	for _, line := range cases {
		amount, hasSpiff := LineCommission(line, lookup, dec("8"))
		if !amount.IsZero() {
			t.Fatalf("excluded product %q/%q should earn zero, got %s",
				line.ProductNumber, line.Description, amount)
		}
		if hasSpiff {
			t.Fatal("excluded product must not report a spiff")
		}
	}
}
