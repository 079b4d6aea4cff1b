package repositories

import (
	"context"
	"database/sql"
	"errors"

	"commission-service/internal/models"
)

var ErrImportNotFound = errors.New("import run not found")

type ImportRunRepository interface {
	InsertRun(ctx context.Context, run *models.ImportRun) error
	GetRun(ctx context.Context, id string) (*models.ImportRun, error)
	UpdateStatus(ctx context.Context, id, status, errorMessage string) error
	UpdateProgress(ctx context.Context, id string, currentRow int, stats models.ImportStats) error
	FinalizeRun(ctx context.Context, id, status string, currentRow int, stats models.ImportStats, errorMessage string) error
	ResetStalledRuns(ctx context.Context) (int64, error)
}

type importRunRepository struct {
	db *sql.DB
}

func NewImportRunRepository(db *sql.DB) ImportRunRepository {
	return &importRunRepository{db: db}
}

func (r *importRunRepository) InsertRun(ctx context.Context, run *models.ImportRun) error {
	query := `
		INSERT INTO import_runs (id, file_name, file_path, status, total_rows)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.FileName,
		run.FilePath,
		run.Status,
		run.TotalRows,
	)
	return err
}

func (r *importRunRepository) GetRun(ctx context.Context, id string) (*models.ImportRun, error) {
	run := &models.ImportRun{}
	var errMsg sql.NullString
	query := `
		SELECT id, file_name, file_path, status, total_rows, current_row,
		       error_message,
		       processed, customers_created, orders_created, orders_updated,
		       orders_unchanged, items_created, skipped,
		       started_at, completed_at, created_at, updated_at
		FROM import_runs
		WHERE id = ?
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.FileName,
		&run.FilePath,
		&run.Status,
		&run.TotalRows,
		&run.CurrentRow,
		&errMsg,
		&run.Stats.Processed,
		&run.Stats.CustomersCreated,
		&run.Stats.OrdersCreated,
		&run.Stats.OrdersUpdated,
		&run.Stats.OrdersUnchanged,
		&run.Stats.ItemsCreated,
		&run.Stats.Skipped,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, err
	}
	run.ErrorMessage = errMsg.String
	return run, nil
}

func (r *importRunRepository) UpdateStatus(ctx context.Context, id, status, errorMessage string) error {
	query := `
		UPDATE import_runs
		SET status = ?,
			error_message = NULLIF(?, ''),
			started_at = IF(? = 'processing', CURRENT_TIMESTAMP, started_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, errorMessage, status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrImportNotFound
	}
	return nil
}

// UpdateProgress writes the batch-boundary checkpoint polled by callers.
func (r *importRunRepository) UpdateProgress(ctx context.Context, id string, currentRow int, stats models.ImportStats) error {
	query := `
		UPDATE import_runs
		SET current_row = ?,
			processed = ?, customers_created = ?, orders_created = ?,
			orders_updated = ?, orders_unchanged = ?, items_created = ?,
			skipped = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		currentRow,
		stats.Processed,
		stats.CustomersCreated,
		stats.OrdersCreated,
		stats.OrdersUpdated,
		stats.OrdersUnchanged,
		stats.ItemsCreated,
		stats.Skipped,
		id,
	)
	return err
}

// FinalizeRun records the terminal status together with the final stats,
// so the response always carries stats even on partial failure.
func (r *importRunRepository) FinalizeRun(ctx context.Context, id, status string, currentRow int, stats models.ImportStats, errorMessage string) error {
	query := `
		UPDATE import_runs
		SET status = ?,
			current_row = ?,
			processed = ?, customers_created = ?, orders_created = ?,
			orders_updated = ?, orders_unchanged = ?, items_created = ?,
			skipped = ?,
			error_message = NULLIF(?, ''),
			completed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		status,
		currentRow,
		stats.Processed,
		stats.CustomersCreated,
		stats.OrdersCreated,
		stats.OrdersUpdated,
		stats.OrdersUnchanged,
		stats.ItemsCreated,
		stats.Skipped,
		errorMessage,
		id,
	)
	return err
}

// ResetStalledRuns fails every run still marked processing. Processing
// happens inside this process, so after a restart such a run can only be
// a crash leftover; without the reset its id would stay unprocessable
// and its progress endpoint would report processing forever.
func (r *importRunRepository) ResetStalledRuns(ctx context.Context) (int64, error) {
	query := `
		UPDATE import_runs
		SET status = ?,
			error_message = 'processing interrupted by service restart, re-run the import',
			completed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE status = ?
	`
	result, err := r.db.ExecContext(ctx, query, models.ImportStatusError, models.ImportStatusProcessing)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
