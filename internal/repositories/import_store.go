package repositories

import (
	"context"
	"database/sql"

	"commission-service/internal/importer"
	"commission-service/internal/models"
)

// ImportStore backs the reconciler with MySQL. Each Flush commits one
// accumulated batch in a single transaction, which keeps a crashed import
// to a clean committed prefix that a re-run converges over.
type ImportStore struct {
	db        *sql.DB
	customers CustomerRepository
	orders    OrderRepository
	lineItems LineItemRepository
}

func NewImportStore(db *sql.DB, customers CustomerRepository, orders OrderRepository, lineItems LineItemRepository) *ImportStore {
	return &ImportStore{
		db:        db,
		customers: customers,
		orders:    orders,
		lineItems: lineItems,
	}
}

func (s *ImportStore) FindCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	return s.customers.GetCustomer(ctx, customerID)
}

func (s *ImportStore) FindOrder(ctx context.Context, soNumber string) (*models.Order, error) {
	return s.orders.GetOrder(ctx, soNumber)
}

func (s *ImportStore) Flush(ctx context.Context, batch *importer.Batch) error {
	if batch.Size() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range batch.Customers {
		if err := s.customers.UpsertCustomer(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, o := range batch.Orders {
		if err := s.orders.UpsertOrder(ctx, tx, o); err != nil {
			return err
		}
	}
	for _, li := range batch.LineItems {
		if err := s.lineItems.UpsertLineItem(ctx, tx, li); err != nil {
			return err
		}
	}

	return tx.Commit()
}
