package pipeline

import (
	"context"

	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/loader"
	"github.com/timmy/docloader/internal/logger"
)

// RunLedger persists run and batch records.
type RunLedger interface {
	StartRun(ctx context.Context, run *domain.PipelineRun) error
	FinishRun(ctx context.Context, run *domain.PipelineRun) error
	RecordBatch(ctx context.Context, record *domain.BatchRecord) error
}

// NopLedger discards everything. Used when the database is disabled.
type NopLedger struct{}

func (NopLedger) StartRun(context.Context, *domain.PipelineRun) error    { return nil }
func (NopLedger) FinishRun(context.Context, *domain.PipelineRun) error   { return nil }
func (NopLedger) RecordBatch(context.Context, *domain.BatchRecord) error { return nil }

// recordingSubmitter forwards batches to the index and notes each accepted
// one in the tracker and the ledger.
type recordingSubmitter struct {
	next    loader.Submitter
	ledger  RunLedger
	tracker *Tracker
	runID   string
}

func (s *recordingSubmitter) Submit(ctx context.Context, batch *domain.Batch) error {
	s.tracker.Loading(batch.DocumentType, batch.First, batch.Last)

	if err := s.next.Submit(ctx, batch); err != nil {
		return err
	}

	record := &domain.BatchRecord{
		RunID:        s.runID,
		DocumentType: batch.DocumentType,
		First:        batch.First,
		Last:         batch.Last,
		Documents:    batch.Len(),
		Bytes:        batch.Size(),
	}
	// The batch is already committed to the index; a ledger failure must not fail the run.
	if err := s.ledger.RecordBatch(ctx, record); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record batch")
	}
	return nil
}
