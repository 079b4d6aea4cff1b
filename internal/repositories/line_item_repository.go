package repositories

import (
	"context"
	"database/sql"

	"commission-service/internal/models"
)

type LineItemRepository interface {
	UpsertLineItem(ctx context.Context, tx *sql.Tx, li *models.LineItem) error
	GetLineItemsBySONumber(ctx context.Context, soNumber string) ([]*models.LineItem, error)
}

type lineItemRepository struct {
	db *sql.DB
}

func NewLineItemRepository(db *sql.DB) LineItemRepository {
	return &lineItemRepository{db: db}
}

// UpsertLineItem is a full overwrite by composite key. Every composite
// key is unique per import row, so replace-on-conflict is safe where
// merge would not be.
func (r *lineItemRepository) UpsertLineItem(ctx context.Context, tx *sql.Tx, li *models.LineItem) error {
	query := `
		INSERT INTO line_items (
			item_key, so_number, line_item_id, product_number, description,
			quantity, unit_price, total_revenue,
			commission_month, commission_year, commission_date, date_method
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			so_number = VALUES(so_number),
			line_item_id = VALUES(line_item_id),
			product_number = VALUES(product_number),
			description = VALUES(description),
			quantity = VALUES(quantity),
			unit_price = VALUES(unit_price),
			total_revenue = VALUES(total_revenue),
			commission_month = VALUES(commission_month),
			commission_year = VALUES(commission_year),
			commission_date = VALUES(commission_date),
			date_method = VALUES(date_method),
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := tx.ExecContext(ctx, query,
		li.ItemKey,
		li.SONumber,
		li.LineItemID,
		li.ProductNumber,
		li.Description,
		li.Quantity,
		li.UnitPrice,
		li.TotalRevenue,
		li.CommissionMonth,
		li.CommissionYear,
		li.CommissionDate,
		li.DateMethod,
	)
	return err
}

func (r *lineItemRepository) GetLineItemsBySONumber(ctx context.Context, soNumber string) ([]*models.LineItem, error) {
	query := `
		SELECT item_key, so_number, line_item_id, product_number, description,
		       quantity, unit_price, total_revenue,
		       commission_month, commission_year, commission_date, date_method,
		       created_at, updated_at
		FROM line_items
		WHERE so_number = ?
		ORDER BY item_key
	`
	rows, err := r.db.QueryContext(ctx, query, soNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.LineItem
	for rows.Next() {
		li := &models.LineItem{}
		err := rows.Scan(
			&li.ItemKey,
			&li.SONumber,
			&li.LineItemID,
			&li.ProductNumber,
			&li.Description,
			&li.Quantity,
			&li.UnitPrice,
			&li.TotalRevenue,
			&li.CommissionMonth,
			&li.CommissionYear,
			&li.CommissionDate,
			&li.DateMethod,
			&li.CreatedAt,
			&li.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
