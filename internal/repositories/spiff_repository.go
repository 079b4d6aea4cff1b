package repositories

import (
	"context"
	"database/sql"
	"time"

	"commission-service/internal/models"
)

type SpiffRepository interface {
	InsertSpiff(ctx context.Context, s *models.Spiff) error
	ListSpiffs(ctx context.Context) ([]models.Spiff, error)
	ListActiveSpiffs(ctx context.Context, periodStart, periodEnd time.Time) ([]models.Spiff, error)
}

type spiffRepository struct {
	db *sql.DB
}

func NewSpiffRepository(db *sql.DB) SpiffRepository {
	return &spiffRepository{db: db}
}

func (r *spiffRepository) InsertSpiff(ctx context.Context, s *models.Spiff) error {
	query := `
		INSERT INTO spiffs (
			product_number, incentive_type, incentive_value, start_date, end_date
		) VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		s.ProductNumber,
		s.IncentiveType,
		s.IncentiveValue,
		s.StartDate,
		s.EndDate,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *spiffRepository) ListSpiffs(ctx context.Context) ([]models.Spiff, error) {
	query := `
		SELECT id, product_number, incentive_type, incentive_value,
		       start_date, end_date, created_at, updated_at
		FROM spiffs
		ORDER BY product_number, start_date
	`
	return r.querySpiffs(ctx, query)
}

// ListActiveSpiffs returns spiffs active for the inclusive period:
// started on or before the period end and not ended before the period
// start.
func (r *spiffRepository) ListActiveSpiffs(ctx context.Context, periodStart, periodEnd time.Time) ([]models.Spiff, error) {
	query := `
		SELECT id, product_number, incentive_type, incentive_value,
		       start_date, end_date, created_at, updated_at
		FROM spiffs
		WHERE start_date <= ?
		AND (end_date IS NULL OR end_date >= ?)
		ORDER BY product_number, start_date
	`
	return r.querySpiffs(ctx, query, periodEnd, periodStart)
}

func (r *spiffRepository) querySpiffs(ctx context.Context, query string, args ...interface{}) ([]models.Spiff, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spiffs []models.Spiff
	for rows.Next() {
		var s models.Spiff
		err := rows.Scan(
			&s.ID,
			&s.ProductNumber,
			&s.IncentiveType,
			&s.IncentiveValue,
			&s.StartDate,
			&s.EndDate,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		spiffs = append(spiffs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return spiffs, nil
}
