package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// SummaryRepository rebuilds the derived rollups. Both rebuilds are
// fire-and-forget callers' responsibility: failures here are logged by
// the caller and never fail the primary operation.
type SummaryRepository interface {
	RebuildCustomerSummaries(ctx context.Context) error
	RebuildRepMonthSummary(ctx context.Context, repID string, year, month int) error
}

type summaryRepository struct {
	db *sql.DB
}

func NewSummaryRepository(db *sql.DB) SummaryRepository {
	return &summaryRepository{db: db}
}

// RebuildCustomerSummaries recomputes every customer's rollup from the
// orders and line items on record, and refreshes the derived last-order
// fields on the customer itself.
func (r *summaryRepository) RebuildCustomerSummaries(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	summaryQuery := `
		INSERT INTO customer_sales_summaries (
			customer_id, order_count, total_revenue, last_order_date, last_order_number
		)
		SELECT o.customer_id,
		       COUNT(DISTINCT o.so_number),
		       COALESCE(SUM(li.total_revenue), 0),
		       MAX(o.commission_date),
		       SUBSTRING_INDEX(GROUP_CONCAT(o.so_number ORDER BY o.commission_date DESC), ',', 1)
		FROM orders o
		LEFT JOIN line_items li ON li.so_number = o.so_number
		GROUP BY o.customer_id
		ON DUPLICATE KEY UPDATE
			order_count = VALUES(order_count),
			total_revenue = VALUES(total_revenue),
			last_order_date = VALUES(last_order_date),
			last_order_number = VALUES(last_order_number),
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, summaryQuery); err != nil {
		return err
	}

	customerQuery := `
		UPDATE customers c
		JOIN customer_sales_summaries s ON s.customer_id = c.customer_id
		SET c.last_order_date = s.last_order_date,
			c.last_order_number = s.last_order_number,
			c.updated_at = CURRENT_TIMESTAMP
		WHERE COALESCE(c.last_order_date, '1000-01-01') <> COALESCE(s.last_order_date, '1000-01-01')
		   OR c.last_order_number <> s.last_order_number
	`
	if _, err := tx.ExecContext(ctx, customerQuery); err != nil {
		return err
	}

	return tx.Commit()
}

// RebuildRepMonthSummary recomputes one rep's monthly rollup from its
// commission details.
func (r *summaryRepository) RebuildRepMonthSummary(ctx context.Context, repID string, year, month int) error {
	query := `
		INSERT INTO rep_month_summaries (
			rep_id, commission_year, commission_month,
			order_count, total_revenue, total_commission
		)
		SELECT ?, ?, ?,
		       COUNT(*),
		       COALESCE(SUM(order_revenue), 0),
		       COALESCE(SUM(commission_amount), 0)
		FROM commission_details
		WHERE rep_id = ? AND commission_month = ?
		ON DUPLICATE KEY UPDATE
			order_count = VALUES(order_count),
			total_revenue = VALUES(total_revenue),
			total_commission = VALUES(total_commission),
			updated_at = CURRENT_TIMESTAMP
	`
	monthKey := fmt.Sprintf("%04d-%02d", year, month)
	_, err := r.db.ExecContext(ctx, query, repID, year, month, repID, monthKey)
	return err
}
