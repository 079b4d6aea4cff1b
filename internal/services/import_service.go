package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"commission-service/internal/config"
	"commission-service/internal/importer"
	"commission-service/internal/models"
	"commission-service/internal/repositories"
)

var ErrImportInProgress = errors.New("import is already being processed")

// ImportService owns the import-run lifecycle: register an upload,
// process it asynchronously, report progress. Processing is decoupled
// from the triggering request; the caller polls the checkpoint row.
type ImportService struct {
	cfg       *config.Config
	logger    *logrus.Logger
	runs      repositories.ImportRunRepository
	store     importer.Store
	summaries repositories.SummaryRepository

	mu     sync.Mutex
	active map[string]bool
}

func NewImportService(
	cfg *config.Config,
	logger *logrus.Logger,
	runs repositories.ImportRunRepository,
	store importer.Store,
	summaries repositories.SummaryRepository,
) *ImportService {
	return &ImportService{
		cfg:       cfg,
		logger:    logger,
		runs:      runs,
		store:     store,
		summaries: summaries,
		active:    make(map[string]bool),
	}
}

// RecoverStalledRuns fails any run left in processing by a crash, called
// once at startup before requests are served. Re-running a recovered
// import converges idempotently.
func (s *ImportService) RecoverStalledRuns(ctx context.Context) error {
	reset, err := s.runs.ResetStalledRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset stalled import runs: %w", err)
	}
	if reset > 0 {
		s.logger.WithField("runs", reset).Warn("reset import runs interrupted by a previous shutdown")
	}
	return nil
}

// CreateImport saves the uploaded file and registers a pending run with
// its row count. Processing does not start until requested.
func (s *ImportService) CreateImport(ctx context.Context, fileName string, file io.Reader) (*models.ImportRun, error) {
	if err := os.MkdirAll(s.cfg.Import.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	id := uuid.New().String()
	storedPath := filepath.Join(s.cfg.Import.UploadDir, id+filepath.Ext(fileName))

	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	_, err = io.Copy(dst, file)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	f, err := os.Open(storedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored upload: %w", err)
	}
	totalRows, err := importer.CountRows(f, fileName)
	f.Close()
	if err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("unreadable import file: %w", err)
	}

	run := &models.ImportRun{
		ID:        id,
		FileName:  fileName,
		FilePath:  storedPath,
		Status:    models.ImportStatusPending,
		TotalRows: totalRows,
	}
	if err := s.runs.InsertRun(ctx, run); err != nil {
		os.Remove(storedPath)
		return nil, err
	}
	return run, nil
}

// StartProcessing kicks off asynchronous row processing for a registered
// run and returns immediately. A run already being processed is rejected;
// a completed run may be re-processed, which converges idempotently.
func (s *ImportService) StartProcessing(ctx context.Context, id string) error {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.active[id] || run.Status == models.ImportStatusProcessing {
		s.mu.Unlock()
		return ErrImportInProgress
	}
	s.active[id] = true
	s.mu.Unlock()

	if err := s.runs.UpdateStatus(ctx, id, models.ImportStatusProcessing, ""); err != nil {
		s.release(id)
		return err
	}

	go s.process(run)
	return nil
}

func (s *ImportService) release(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// process runs outside any request lifetime. Fatal conditions mark the
// run failed before a single row is touched; row-level problems are
// counted by the reconciler and never abort the run.
func (s *ImportService) process(run *models.ImportRun) {
	defer s.release(run.ID)

	ctx := context.Background()
	log := s.logger.WithFields(logrus.Fields{
		"import_id": run.ID,
		"file":      run.FileName,
	})

	f, err := os.Open(run.FilePath)
	if err != nil {
		s.fail(ctx, run, fmt.Sprintf("import file unavailable: %v", err))
		return
	}
	rows, err := importer.ParseFile(f, run.FileName, s.logger)
	f.Close()
	if err != nil {
		s.fail(ctx, run, err.Error())
		return
	}

	reconciler := importer.NewReconciler(s.store, s.logger, s.cfg.Import.BatchSize)
	if s.cfg.Import.StrictDates {
		reconciler.SetResolveOptions(importer.ResolveOptions{Strict: true})
	}

	var lastProgress importer.Progress
	stats, err := reconciler.Run(ctx, rows, func(p importer.Progress) {
		lastProgress = p
		if err := s.runs.UpdateProgress(ctx, run.ID, p.CurrentRow, p.Stats); err != nil {
			log.WithError(err).Warn("failed to checkpoint import progress")
		}
	})
	if err != nil {
		// Stats survive even a partial failure.
		finErr := s.runs.FinalizeRun(ctx, run.ID, models.ImportStatusError,
			lastProgress.CurrentRow, stats, err.Error())
		if finErr != nil {
			log.WithError(finErr).Error("failed to finalize errored import run")
		}
		log.WithError(err).Error("import processing failed")
		return
	}

	if err := s.runs.FinalizeRun(ctx, run.ID, models.ImportStatusComplete,
		len(rows), stats, ""); err != nil {
		log.WithError(err).Error("failed to finalize import run")
		return
	}

	log.WithFields(logrus.Fields{
		"processed":         stats.Processed,
		"customers_created": stats.CustomersCreated,
		"orders_created":    stats.OrdersCreated,
		"orders_updated":    stats.OrdersUpdated,
		"orders_unchanged":  stats.OrdersUnchanged,
		"items_created":     stats.ItemsCreated,
		"skipped":           stats.Skipped,
	}).Info("import complete")

	// Downstream rollup is best effort: a failure is logged, never
	// surfaced as an import failure.
	go func() {
		rebuildCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.summaries.RebuildCustomerSummaries(rebuildCtx); err != nil {
			log.WithError(err).Warn("customer summary rebuild failed")
		}
	}()
}

func (s *ImportService) fail(ctx context.Context, run *models.ImportRun, message string) {
	if err := s.runs.FinalizeRun(ctx, run.ID, models.ImportStatusError, 0, models.ImportStats{}, message); err != nil {
		s.logger.WithError(err).WithField("import_id", run.ID).Error("failed to record import failure")
	}
	s.logger.WithFields(logrus.Fields{
		"import_id": run.ID,
		"reason":    message,
	}).Error("import failed before row processing")
}

// Progress returns the current checkpoint for a run.
func (s *ImportService) Progress(ctx context.Context, id string) (*models.ImportRun, error) {
	return s.runs.GetRun(ctx, id)
}
