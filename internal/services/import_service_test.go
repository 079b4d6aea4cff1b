package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"commission-service/internal/config"
	"commission-service/internal/models"
	"commission-service/internal/repositories"
)

type fakeRunRepo struct {
	mu        sync.Mutex
	runs      map[string]*models.ImportRun
	finalized chan string
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{
		runs:      make(map[string]*models.ImportRun),
		finalized: make(chan string, 4),
	}
}

func (r *fakeRunRepo) InsertRun(_ context.Context, run *models.ImportRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *fakeRunRepo) GetRun(_ context.Context, id string) (*models.ImportRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, repositories.ErrImportNotFound
	}
	copied := *run
	return &copied, nil
}

func (r *fakeRunRepo) UpdateStatus(_ context.Context, id, status, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return repositories.ErrImportNotFound
	}
	run.Status = status
	run.ErrorMessage = errorMessage
	return nil
}

func (r *fakeRunRepo) UpdateProgress(_ context.Context, id string, currentRow int, stats models.ImportStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.CurrentRow = currentRow
		run.Stats = stats
	}
	return nil
}

func (r *fakeRunRepo) FinalizeRun(_ context.Context, id, status string, currentRow int, stats models.ImportStats, errorMessage string) error {
	r.mu.Lock()
	if run, ok := r.runs[id]; ok {
		run.Status = status
		run.CurrentRow = currentRow
		run.Stats = stats
		run.ErrorMessage = errorMessage
	}
	r.mu.Unlock()
	r.finalized <- id
	return nil
}

func (r *fakeRunRepo) ResetStalledRuns(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reset int64
	for _, run := range r.runs {
		if run.Status == models.ImportStatusProcessing {
			run.Status = models.ImportStatusError
			run.ErrorMessage = "processing interrupted by service restart, re-run the import"
			reset++
		}
	}
	return reset, nil
}

func (r *fakeRunRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id].Status
}

func TestRecoverStalledRuns_UnblocksCrashedRun(t *testing.T) {
	repo := newFakeRunRepo()
	stuck := &models.ImportRun{
		ID:       "run-1",
		FileName: "export.csv",
		FilePath: filepath.Join(t.TempDir(), "missing.csv"),
		Status:   models.ImportStatusProcessing,
	}
	if err := repo.InsertRun(context.Background(), stuck); err != nil {
		t.Fatalf("InsertRun error: %v", err)
	}

	cfg := &config.Config{Import: config.ImportConfig{
		UploadDir: t.TempDir(),
		BatchSize: 4,
	}}
	svc := NewImportService(cfg, discardLogger(), repo, nil, &fakeSummaryRepo{})

	// A run stranded in processing by a crash is rejected outright.
	if err := svc.StartProcessing(context.Background(), "run-1"); !errors.Is(err, ErrImportInProgress) {
		t.Fatalf("expected ErrImportInProgress, got %v", err)
	}

	if err := svc.RecoverStalledRuns(context.Background()); err != nil {
		t.Fatalf("RecoverStalledRuns error: %v", err)
	}
	if got := repo.status("run-1"); got != models.ImportStatusError {
		t.Fatalf("stalled run should be failed, got %q", got)
	}

	// After recovery the run id is processable again.
	if err := svc.StartProcessing(context.Background(), "run-1"); err != nil {
		t.Fatalf("recovered run rejected: %v", err)
	}
	select {
	case <-repo.finalized:
	case <-time.After(5 * time.Second):
		t.Fatal("processing never finalized the run")
	}
	// The stored file is gone, so the retry itself fails, but cleanly.
	if got := repo.status("run-1"); got != models.ImportStatusError {
		t.Fatalf("expected terminal status, got %q", got)
	}
}

func TestRecoverStalledRuns_LeavesHealthyRunsAlone(t *testing.T) {
	repo := newFakeRunRepo()
	done := &models.ImportRun{ID: "run-2", Status: models.ImportStatusComplete}
	if err := repo.InsertRun(context.Background(), done); err != nil {
		t.Fatalf("InsertRun error: %v", err)
	}

	cfg := &config.Config{Import: config.ImportConfig{UploadDir: t.TempDir(), BatchSize: 4}}
	svc := NewImportService(cfg, discardLogger(), repo, nil, &fakeSummaryRepo{})

	if err := svc.RecoverStalledRuns(context.Background()); err != nil {
		t.Fatalf("RecoverStalledRuns error: %v", err)
	}
	if got := repo.status("run-2"); got != models.ImportStatusComplete {
		t.Fatalf("completed run must not be touched, got %q", got)
	}
}
