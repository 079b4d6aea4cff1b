package repositories

import (
	"context"
	"database/sql"

	"commission-service/internal/models"
)

type CustomerRepository interface {
	UpsertCustomer(ctx context.Context, tx *sql.Tx, c *models.Customer) error
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
}

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// UpsertCustomer merges into an existing customer, never blanking a
// populated field. Account type is set on first insert only, and a
// rep-locked customer keeps its rep assignment.
func (r *customerRepository) UpsertCustomer(ctx context.Context, tx *sql.Tx, c *models.Customer) error {
	query := `
		INSERT INTO customers (
			customer_id, name, account_type, sales_rep
		) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = IF(VALUES(name) = '', name, VALUES(name)),
			sales_rep = IF(rep_locked, sales_rep,
				IF(VALUES(sales_rep) = '', sales_rep, VALUES(sales_rep))),
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := tx.ExecContext(ctx, query,
		c.CustomerID,
		c.Name,
		c.AccountType,
		c.SalesRep,
	)
	return err
}

func (r *customerRepository) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	c := &models.Customer{}
	query := `
		SELECT customer_id, name, account_type, sales_rep, rep_locked,
		       last_order_date, last_order_number, created_at, updated_at
		FROM customers
		WHERE customer_id = ?
	`
	err := r.db.QueryRowContext(ctx, query, customerID).Scan(
		&c.CustomerID,
		&c.Name,
		&c.AccountType,
		&c.SalesRep,
		&c.RepLocked,
		&c.LastOrderDate,
		&c.LastOrderNumber,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
