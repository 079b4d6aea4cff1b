package repositories

import (
	"context"
	"database/sql"
	"errors"

	"commission-service/internal/models"
)

var ErrDetailNotFound = errors.New("commission detail not found")

type CommissionRepository interface {
	GetDetailByID(ctx context.Context, id int64) (*models.CommissionDetail, error)
	ListDetailsByMonth(ctx context.Context, month string) ([]*models.CommissionDetail, error)
	UpdateDetailAmounts(ctx context.Context, d *models.CommissionDetail) error
	UpdateDetailFlags(ctx context.Context, d *models.CommissionDetail) error
	UpdateDetailAdjustment(ctx context.Context, d *models.CommissionDetail) error
	UpsertDetail(ctx context.Context, d *models.CommissionDetail) error
}

type commissionRepository struct {
	db *sql.DB
}

func NewCommissionRepository(db *sql.DB) CommissionRepository {
	return &commissionRepository{db: db}
}

const detailColumns = `
	id, so_number, rep_id, commission_month, order_revenue,
	commission_rate, commission_amount, manual_adjustment,
	manual_adjustment_note, is_override, has_spiff, created_at, updated_at
`

func scanDetail(row interface {
	Scan(dest ...interface{}) error
}) (*models.CommissionDetail, error) {
	d := &models.CommissionDetail{}
	var note sql.NullString
	err := row.Scan(
		&d.ID,
		&d.SONumber,
		&d.RepID,
		&d.CommissionMonth,
		&d.OrderRevenue,
		&d.CommissionRate,
		&d.CommissionAmount,
		&d.ManualAdjustment,
		&note,
		&d.IsOverride,
		&d.HasSpiff,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ManualAdjustmentNote = note.String
	return d, nil
}

func (r *commissionRepository) GetDetailByID(ctx context.Context, id int64) (*models.CommissionDetail, error) {
	query := `SELECT ` + detailColumns + ` FROM commission_details WHERE id = ?`
	d, err := scanDetail(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrDetailNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *commissionRepository) ListDetailsByMonth(ctx context.Context, month string) ([]*models.CommissionDetail, error) {
	query := `SELECT ` + detailColumns + ` FROM commission_details WHERE commission_month = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []*models.CommissionDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// UpdateDetailAmounts writes the recomputed figures. The override guard
// is enforced in the recalculator before this is called; the WHERE clause
// repeats it so a stale in-memory detail cannot clobber a fresh override.
func (r *commissionRepository) UpdateDetailAmounts(ctx context.Context, d *models.CommissionDetail) error {
	query := `
		UPDATE commission_details
		SET order_revenue = ?,
			commission_amount = ?,
			has_spiff = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_override = FALSE
	`
	_, err := r.db.ExecContext(ctx, query,
		d.OrderRevenue,
		d.CommissionAmount,
		d.HasSpiff,
		d.ID,
	)
	return err
}

// UpdateDetailFlags refreshes auxiliary flags only, used for overridden
// details whose commission amount is frozen.
func (r *commissionRepository) UpdateDetailFlags(ctx context.Context, d *models.CommissionDetail) error {
	query := `
		UPDATE commission_details
		SET has_spiff = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, d.HasSpiff, d.ID)
	return err
}

func (r *commissionRepository) UpdateDetailAdjustment(ctx context.Context, d *models.CommissionDetail) error {
	query := `
		UPDATE commission_details
		SET commission_amount = ?,
			manual_adjustment = ?,
			manual_adjustment_note = ?,
			is_override = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		d.CommissionAmount,
		d.ManualAdjustment,
		d.ManualAdjustmentNote,
		d.IsOverride,
		d.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDetailNotFound
	}
	return nil
}

// UpsertDetail creates or refreshes the per-order per-rep commission row.
// An overridden row keeps its frozen amount.
func (r *commissionRepository) UpsertDetail(ctx context.Context, d *models.CommissionDetail) error {
	query := `
		INSERT INTO commission_details (
			so_number, rep_id, commission_month, order_revenue,
			commission_rate, commission_amount, has_spiff
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			commission_month = VALUES(commission_month),
			order_revenue = IF(is_override, order_revenue, VALUES(order_revenue)),
			commission_rate = IF(is_override, commission_rate, VALUES(commission_rate)),
			commission_amount = IF(is_override, commission_amount, VALUES(commission_amount)),
			has_spiff = VALUES(has_spiff),
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query,
		d.SONumber,
		d.RepID,
		d.CommissionMonth,
		d.OrderRevenue,
		d.CommissionRate,
		d.CommissionAmount,
		d.HasSpiff,
	)
	return err
}
