package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is keyed by the external ERP account id, stable across imports.
// Imports merge into an existing customer; they never fully overwrite it.
type Customer struct {
	CustomerID      string       `db:"customer_id" json:"customer_id"`
	Name            string       `db:"name" json:"name"`
	AccountType     string       `db:"account_type" json:"account_type"`
	SalesRep        string       `db:"sales_rep" json:"sales_rep"`
	RepLocked       bool         `db:"rep_locked" json:"rep_locked"`
	LastOrderDate   sql.NullTime `db:"last_order_date" json:"last_order_date"`
	LastOrderNumber string       `db:"last_order_number" json:"last_order_number"`
	CreatedAt       time.Time    `db:"created_at" json:"-"`
	UpdatedAt       time.Time    `db:"updated_at" json:"-"`
}

// Order is keyed by the human-meaningful sales-order number, not the
// internal ERP order id.
type Order struct {
	SONumber         string    `db:"so_number" json:"so_number"`
	SalesOrderID     string    `db:"sales_order_id" json:"sales_order_id"`
	CustomerID       string    `db:"customer_id" json:"customer_id"`
	CommissionMonth  string    `db:"commission_month" json:"commission_month"`
	CommissionYear   int       `db:"commission_year" json:"commission_year"`
	CommissionDate   time.Time `db:"commission_date" json:"commission_date"`
	DateMethod       string    `db:"date_method" json:"date_method"`
	SalesPerson      string    `db:"sales_person" json:"sales_person"`
	SalesRep         string    `db:"sales_rep" json:"sales_rep"`
	RepMismatch      bool      `db:"rep_mismatch" json:"rep_mismatch"`
	ManuallyLinked   bool      `db:"manually_linked" json:"manually_linked"`
	ManualLinkReason string    `db:"manual_link_reason" json:"manual_link_reason,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"-"`
	UpdatedAt        time.Time `db:"updated_at" json:"-"`
}

// LineItem is keyed by a composite of the internal sales-order id and the
// line-item id. Raw exports reuse line-item ids across orders, so the
// natural key alone cannot be unique.
type LineItem struct {
	ItemKey         string          `db:"item_key" json:"item_key"`
	SONumber        string          `db:"so_number" json:"so_number"`
	LineItemID      string          `db:"line_item_id" json:"line_item_id"`
	ProductNumber   string          `db:"product_number" json:"product_number"`
	Description     string          `db:"description" json:"description"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalRevenue    decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	CommissionMonth string          `db:"commission_month" json:"commission_month"`
	CommissionYear  int             `db:"commission_year" json:"commission_year"`
	CommissionDate  time.Time       `db:"commission_date" json:"commission_date"`
	DateMethod      string          `db:"date_method" json:"date_method"`
	CreatedAt       time.Time       `db:"created_at" json:"-"`
	UpdatedAt       time.Time       `db:"updated_at" json:"-"`
}

// LineItemKey builds the composite persistence key for a line item.
func LineItemKey(salesOrderID, lineItemID string) string {
	return salesOrderID + "_" + lineItemID
}

// Spiff is a time-bounded per-product incentive that replaces the standard
// percentage commission while active.
type Spiff struct {
	ID             int64           `db:"id" json:"id"`
	ProductNumber  string          `db:"product_number" json:"product_number"`
	IncentiveType  string          `db:"incentive_type" json:"incentive_type"`
	IncentiveValue decimal.Decimal `db:"incentive_value" json:"incentive_value"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	EndDate        sql.NullTime    `db:"end_date" json:"end_date"`
	CreatedAt      time.Time       `db:"created_at" json:"-"`
	UpdatedAt      time.Time       `db:"updated_at" json:"-"`
}

// ActiveFor reports whether the spiff applies to a commission period.
func (s *Spiff) ActiveFor(periodStart, periodEnd time.Time) bool {
	if s.StartDate.After(periodEnd) {
		return false
	}
	if s.EndDate.Valid && s.EndDate.Time.Before(periodStart) {
		return false
	}
	return true
}

// CommissionDetail is one commission row per order per rep. When
// IsOverride is set the commission amount is frozen: recalculation may
// refresh auxiliary flags but must not touch the financial figure.
type CommissionDetail struct {
	ID                   int64               `db:"id" json:"id"`
	SONumber             string              `db:"so_number" json:"so_number"`
	RepID                string              `db:"rep_id" json:"rep_id"`
	CommissionMonth      string              `db:"commission_month" json:"commission_month"`
	OrderRevenue         decimal.Decimal     `db:"order_revenue" json:"order_revenue"`
	CommissionRate       decimal.Decimal     `db:"commission_rate" json:"commission_rate"`
	CommissionAmount     decimal.Decimal     `db:"commission_amount" json:"commission_amount"`
	ManualAdjustment     decimal.NullDecimal `db:"manual_adjustment" json:"manual_adjustment"`
	ManualAdjustmentNote string              `db:"manual_adjustment_note" json:"manual_adjustment_note,omitempty"`
	IsOverride           bool                `db:"is_override" json:"is_override"`
	HasSpiff             bool                `db:"has_spiff" json:"has_spiff"`
	CreatedAt            time.Time           `db:"created_at" json:"-"`
	UpdatedAt            time.Time           `db:"updated_at" json:"-"`
}

// OriginalAmount returns the pre-adjustment commission amount. The stored
// amount is always original + adjustment, so the original stays derivable
// for audit display.
func (d *CommissionDetail) OriginalAmount() decimal.Decimal {
	if d.ManualAdjustment.Valid {
		return d.CommissionAmount.Sub(d.ManualAdjustment.Decimal)
	}
	return d.CommissionAmount
}

// ImportRun tracks one upload through its processing lifecycle. The row
// doubles as the progress checkpoint polled by callers.
type ImportRun struct {
	ID           string       `db:"id" json:"import_id"`
	FileName     string       `db:"file_name" json:"file_name"`
	FilePath     string       `db:"file_path" json:"-"`
	Status       string       `db:"status" json:"status"`
	TotalRows    int          `db:"total_rows" json:"total_rows"`
	CurrentRow   int          `db:"current_row" json:"current_row"`
	ErrorMessage string       `db:"error_message" json:"error_message,omitempty"`
	Stats        ImportStats  `json:"stats"`
	StartedAt    sql.NullTime `db:"started_at" json:"-"`
	CompletedAt  sql.NullTime `db:"completed_at" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"-"`
	UpdatedAt    time.Time    `db:"updated_at" json:"-"`
}

// ImportStats is the running tally reported with import progress.
type ImportStats struct {
	Processed        int `db:"processed" json:"processed"`
	CustomersCreated int `db:"customers_created" json:"customersCreated"`
	OrdersCreated    int `db:"orders_created" json:"ordersCreated"`
	OrdersUpdated    int `db:"orders_updated" json:"ordersUpdated"`
	OrdersUnchanged  int `db:"orders_unchanged" json:"ordersUnchanged"`
	ItemsCreated     int `db:"items_created" json:"itemsCreated"`
	Skipped          int `db:"skipped" json:"skipped"`
}

// CustomerSalesSummary is the derived per-customer rollup rebuilt
// best-effort after each import.
type CustomerSalesSummary struct {
	CustomerID      string          `db:"customer_id" json:"customer_id"`
	OrderCount      int             `db:"order_count" json:"order_count"`
	TotalRevenue    decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	LastOrderDate   sql.NullTime    `db:"last_order_date" json:"last_order_date"`
	LastOrderNumber string          `db:"last_order_number" json:"last_order_number"`
	UpdatedAt       time.Time       `db:"updated_at" json:"-"`
}

// RepMonthSummary is the derived per-rep monthly rollup rebuilt
// best-effort after adjustments and recalculations.
type RepMonthSummary struct {
	RepID           string          `db:"rep_id" json:"rep_id"`
	CommissionYear  int             `db:"commission_year" json:"commission_year"`
	CommissionMonth int             `db:"commission_month" json:"commission_month"`
	OrderCount      int             `db:"order_count" json:"order_count"`
	TotalRevenue    decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	TotalCommission decimal.Decimal `db:"total_commission" json:"total_commission"`
	UpdatedAt       time.Time       `db:"updated_at" json:"-"`
}

// Account type constants
const (
	AccountTypeRetail      = "Retail"
	AccountTypeWholesale   = "Wholesale"
	AccountTypeDistributor = "Distributor"
)

// Import run status constants
const (
	ImportStatusPending    = "pending"
	ImportStatusProcessing = "processing"
	ImportStatusComplete   = "complete"
	ImportStatusError      = "error"
)

// Date resolution method constants
const (
	DateMethodIssued    = "issued_date"
	DateMethodYearMonth = "year_month_fallback"
	DateMethodFailed    = "failed"
)

// Spiff incentive type constants (canonical forms; raw labels are
// normalized before comparison)
const (
	IncentiveFlat       = "flat"
	IncentivePercentage = "percentage"
)
