package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"commission-service/internal/models"
)

// Store is the persistence surface the reconciler writes through. Reads
// are per-key; writes are committed in bounded batches.
type Store interface {
	FindCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	FindOrder(ctx context.Context, soNumber string) (*models.Order, error)
	Flush(ctx context.Context, batch *Batch) error
}

// Batch accumulates pending upserts until the bounded write limit is
// reached and the whole set is committed in one transaction.
type Batch struct {
	Customers []*models.Customer
	Orders    []*models.Order
	LineItems []*models.LineItem
}

func (b *Batch) Size() int {
	return len(b.Customers) + len(b.Orders) + len(b.LineItems)
}

func (b *Batch) reset() {
	b.Customers = b.Customers[:0]
	b.Orders = b.Orders[:0]
	b.LineItems = b.LineItems[:0]
}

// Progress is the checkpoint reported at every batch boundary so a
// caller can poll a long-running import.
type Progress struct {
	CurrentRow int
	Percentage float64
	Stats      models.ImportStats
}

type ProgressFunc func(Progress)

// Reconciler converts normalized import rows into Customer, Order, and
// LineItem upserts. Rows are processed strictly in file order: the first
// row for an order writes its header, subsequent rows attach line items.
type Reconciler struct {
	store     Store
	logger    *logrus.Logger
	batchSize int
	dateOpts  ResolveOptions
}

func NewReconciler(store Store, logger *logrus.Logger, batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = 450
	}
	return &Reconciler{
		store:     store,
		logger:    logger,
		batchSize: batchSize,
	}
}

// SetResolveOptions overrides date-resolution behavior, used by stricter
// import paths that reject future issued dates.
func (r *Reconciler) SetResolveOptions(opts ResolveOptions) {
	r.dateOpts = opts
}

// Run processes every row of one import. Row-level failures are counted
// and logged but never abort the run; only storage flush errors do.
// Re-running the same file converges to the same end state, with
// manually linked orders the one deliberate exception to latest-wins.
func (r *Reconciler) Run(ctx context.Context, rows []Row, progress ProgressFunc) (models.ImportStats, error) {
	var stats models.ImportStats
	batch := &Batch{}

	seenCustomers := make(map[string]bool)
	seenOrders := make(map[string]bool)

	total := len(rows)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rowNum := i + 1

		soNumber := row[FieldSONumber]
		salesOrderID := row[FieldSalesOrderID]
		lineItemID := row[FieldSOItemID]
		customerID := row[FieldAccountID]
		customerName := row[FieldCustomerName]

		if soNumber == "" || salesOrderID == "" || lineItemID == "" || customerID == "" || customerName == "" {
			stats.Skipped++
			r.logger.WithFields(logrus.Fields{
				"row":       rowNum,
				"so_number": soNumber,
				"so_id":     salesOrderID,
				"item_id":   lineItemID,
				"account":   customerID,
			}).Warn("skipping row with missing identifiers")
			continue
		}
		stats.Processed++

		if !seenCustomers[customerID] {
			seenCustomers[customerID] = true
			customer, created, err := r.buildCustomer(ctx, customerID, customerName, row)
			if err != nil {
				return stats, err
			}
			if created {
				stats.CustomersCreated++
			}
			batch.Customers = append(batch.Customers, customer)
		}

		if !seenOrders[soNumber] {
			seenOrders[soNumber] = true
			existing, err := r.store.FindOrder(ctx, soNumber)
			if err != nil {
				return stats, fmt.Errorf("lookup order %s: %w", soNumber, err)
			}
			switch {
			case existing != nil && existing.ManuallyLinked:
				// Admin correction: never overwritten by an import.
				stats.OrdersUnchanged++
				r.logger.WithFields(logrus.Fields{
					"row":       rowNum,
					"so_number": soNumber,
				}).Info("order is manually linked, leaving untouched")
			default:
				res := ResolveRowDate(row, r.dateOpts)
				if res.Method == models.DateMethodFailed {
					stats.Skipped++
					r.logger.WithFields(logrus.Fields{
						"row":         rowNum,
						"so_number":   soNumber,
						"issued_date": row[FieldIssuedDate],
						"year_month":  row[FieldYearMonth],
					}).Warn("skipping order write, date resolution failed")
				} else {
					order := r.buildOrder(soNumber, salesOrderID, customerID, row, res)
					if existing == nil {
						stats.OrdersCreated++
					} else {
						stats.OrdersUpdated++
					}
					batch.Orders = append(batch.Orders, order)
				}
			}
		}

		itemRes := ResolveRowDate(row, r.dateOpts)
		if itemRes.Method == models.DateMethodFailed {
			stats.Skipped++
			r.logger.WithFields(logrus.Fields{
				"row":         rowNum,
				"item_key":    models.LineItemKey(salesOrderID, lineItemID),
				"issued_date": row[FieldIssuedDate],
				"year_month":  row[FieldYearMonth],
			}).Warn("skipping line item, date resolution failed")
		} else {
			batch.LineItems = append(batch.LineItems, buildLineItem(soNumber, salesOrderID, lineItemID, row, itemRes))
			stats.ItemsCreated++
		}

		if batch.Size() >= r.batchSize {
			if err := r.store.Flush(ctx, batch); err != nil {
				return stats, fmt.Errorf("flush batch at row %d: %w", rowNum, err)
			}
			batch.reset()
			if progress != nil {
				progress(Progress{
					CurrentRow: rowNum,
					Percentage: percentage(rowNum, total),
					Stats:      stats,
				})
			}
		}
	}

	if batch.Size() > 0 {
		if err := r.store.Flush(ctx, batch); err != nil {
			return stats, fmt.Errorf("flush final batch: %w", err)
		}
	}
	if progress != nil {
		progress(Progress{
			CurrentRow: total,
			Percentage: percentage(total, total),
			Stats:      stats,
		})
	}

	return stats, nil
}

func (r *Reconciler) buildCustomer(ctx context.Context, customerID, customerName string, row Row) (*models.Customer, bool, error) {
	existing, err := r.store.FindCustomer(ctx, customerID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup customer %s: %w", customerID, err)
	}

	if existing == nil {
		accountType := row[FieldAccountType]
		switch accountType {
		case models.AccountTypeRetail, models.AccountTypeWholesale, models.AccountTypeDistributor:
		default:
			// Never invent a classification from a free-form cell.
			accountType = models.AccountTypeRetail
		}
		return &models.Customer{
			CustomerID:  customerID,
			Name:        customerName,
			AccountType: accountType,
			SalesRep:    row[FieldSalesPerson],
		}, true, nil
	}

	merged := *existing
	if customerName != "" {
		merged.Name = customerName
	}
	if rep := row[FieldSalesPerson]; rep != "" && !existing.RepLocked {
		merged.SalesRep = rep
	}
	return &merged, false, nil
}

func (r *Reconciler) buildOrder(soNumber, salesOrderID, customerID string, row Row, res Resolution) *models.Order {
	salesPerson := row[FieldSalesPerson]
	salesRep := row[FieldSalesRep]
	mismatch := salesRep != "" && salesRep != salesPerson
	if mismatch {
		// Divergence between the commission-bearing and reporting rep
		// fields is a data-quality signal, surfaced rather than
		// silently reconciled.
		r.logger.WithFields(logrus.Fields{
			"so_number":    soNumber,
			"sales_person": salesPerson,
			"sales_rep":    salesRep,
		}).Warn("sales person and sales rep diverge")
	}
	return &models.Order{
		SONumber:        soNumber,
		SalesOrderID:    salesOrderID,
		CustomerID:      customerID,
		CommissionMonth: res.Month,
		CommissionYear:  res.Year,
		CommissionDate:  res.Date,
		DateMethod:      res.Method,
		SalesPerson:     salesPerson,
		SalesRep:        salesRep,
		RepMismatch:     mismatch,
	}
}

func buildLineItem(soNumber, salesOrderID, lineItemID string, row Row, res Resolution) *models.LineItem {
	quantity := parseAmount(row[FieldQuantity])
	unitPrice := parseAmount(row[FieldUnitPrice])
	total := parseAmount(row[FieldTotalPrice])
	if total.IsZero() {
		total = quantity.Mul(unitPrice)
	}
	return &models.LineItem{
		ItemKey:         models.LineItemKey(salesOrderID, lineItemID),
		SONumber:        soNumber,
		LineItemID:      lineItemID,
		ProductNumber:   row[FieldProductNumber],
		Description:     row[FieldProductDesc],
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		TotalRevenue:    total,
		CommissionMonth: res.Month,
		CommissionYear:  res.Year,
		CommissionDate:  res.Date,
		DateMethod:      res.Method,
	}
}

// parseAmount tolerates currency symbols and thousands separators, the
// way export tools format money columns.
func parseAmount(raw string) decimal.Decimal {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func percentage(current, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(current) / float64(total) * 100
}
