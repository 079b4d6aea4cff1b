package repositories

import (
	"context"
	"database/sql"

	"commission-service/internal/models"
)

type OrderRepository interface {
	UpsertOrder(ctx context.Context, tx *sql.Tx, o *models.Order) error
	GetOrder(ctx context.Context, soNumber string) (*models.Order, error)
	ListOrdersByMonth(ctx context.Context, month string) ([]*models.Order, error)
	MarkManuallyLinked(ctx context.Context, soNumber, reason string) error
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// UpsertOrder merge-writes an order by sales-order number. The manually
// linked guard is enforced in the reconciler's read path, and repeated
// here so a racing import cannot clobber an admin correction either.
func (r *orderRepository) UpsertOrder(ctx context.Context, tx *sql.Tx, o *models.Order) error {
	query := `
		INSERT INTO orders (
			so_number, sales_order_id, customer_id, commission_month,
			commission_year, commission_date, date_method,
			sales_person, sales_rep, rep_mismatch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			sales_order_id = IF(manually_linked, sales_order_id, VALUES(sales_order_id)),
			customer_id = IF(manually_linked, customer_id, VALUES(customer_id)),
			commission_month = IF(manually_linked, commission_month, VALUES(commission_month)),
			commission_year = IF(manually_linked, commission_year, VALUES(commission_year)),
			commission_date = IF(manually_linked, commission_date, VALUES(commission_date)),
			date_method = IF(manually_linked, date_method, VALUES(date_method)),
			sales_person = IF(manually_linked, sales_person, VALUES(sales_person)),
			sales_rep = IF(manually_linked, sales_rep, VALUES(sales_rep)),
			rep_mismatch = IF(manually_linked, rep_mismatch, VALUES(rep_mismatch)),
			updated_at = IF(manually_linked, updated_at, CURRENT_TIMESTAMP)
	`
	_, err := tx.ExecContext(ctx, query,
		o.SONumber,
		o.SalesOrderID,
		o.CustomerID,
		o.CommissionMonth,
		o.CommissionYear,
		o.CommissionDate,
		o.DateMethod,
		o.SalesPerson,
		o.SalesRep,
		o.RepMismatch,
	)
	return err
}

func (r *orderRepository) GetOrder(ctx context.Context, soNumber string) (*models.Order, error) {
	o := &models.Order{}
	query := `
		SELECT so_number, sales_order_id, customer_id, commission_month,
		       commission_year, commission_date, date_method,
		       sales_person, sales_rep, rep_mismatch,
		       manually_linked, manual_link_reason, created_at, updated_at
		FROM orders
		WHERE so_number = ?
	`
	err := r.db.QueryRowContext(ctx, query, soNumber).Scan(
		&o.SONumber,
		&o.SalesOrderID,
		&o.CustomerID,
		&o.CommissionMonth,
		&o.CommissionYear,
		&o.CommissionDate,
		&o.DateMethod,
		&o.SalesPerson,
		&o.SalesRep,
		&o.RepMismatch,
		&o.ManuallyLinked,
		&o.ManualLinkReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrdersByMonth returns every order attributed to a commission
// month, the population the recalculator seeds commission details from.
func (r *orderRepository) ListOrdersByMonth(ctx context.Context, month string) ([]*models.Order, error) {
	query := `
		SELECT so_number, sales_order_id, customer_id, commission_month,
		       commission_year, commission_date, date_method,
		       sales_person, sales_rep, rep_mismatch,
		       manually_linked, manual_link_reason, created_at, updated_at
		FROM orders
		WHERE commission_month = ?
		ORDER BY so_number
	`
	rows, err := r.db.QueryContext(ctx, query, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o := &models.Order{}
		err := rows.Scan(
			&o.SONumber,
			&o.SalesOrderID,
			&o.CustomerID,
			&o.CommissionMonth,
			&o.CommissionYear,
			&o.CommissionDate,
			&o.DateMethod,
			&o.SalesPerson,
			&o.SalesRep,
			&o.RepMismatch,
			&o.ManuallyLinked,
			&o.ManualLinkReason,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkManuallyLinked flags an order as an admin correction so later
// imports skip it.
func (r *orderRepository) MarkManuallyLinked(ctx context.Context, soNumber, reason string) error {
	query := `
		UPDATE orders
		SET manually_linked = TRUE,
			manual_link_reason = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE so_number = ?
	`
	result, err := r.db.ExecContext(ctx, query, reason, soNumber)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
