package repository

import (
	"context"
	"time"

	"github.com/timmy/docloader/internal/domain"
	"gorm.io/gorm"
)

// RunRepository stores pipeline runs and their submitted batches.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// StartRun inserts a run record in the running state.
func (r *RunRepository) StartRun(ctx context.Context, run *domain.PipelineRun) error {
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// FinishRun stores the final counters and status of a run.
func (r *RunRepository) FinishRun(ctx context.Context, run *domain.PipelineRun) error {
	now := time.Now()
	run.CompletedAt = &now
	return r.db.WithContext(ctx).Save(run).Error
}

// RecordBatch appends one submitted batch to the ledger.
func (r *RunRepository) RecordBatch(ctx context.Context, record *domain.BatchRecord) error {
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
func (r *RunRepository) ListRuns(ctx context.Context, limit, offset int) ([]domain.PipelineRun, error) {
	var runs []domain.PipelineRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ListBatches returns the batches of one run in submission order.
func (r *RunRepository) ListBatches(ctx context.Context, runID string) ([]domain.BatchRecord, error) {
	var batches []domain.BatchRecord
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}
