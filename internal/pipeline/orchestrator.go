// Package pipeline drives the fetch and load phases over the configured
// document types, one type, link and batch at a time.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/fetcher"
	"github.com/timmy/docloader/internal/loader"
	"github.com/timmy/docloader/internal/logger"
)

// Orchestrator runs whole-pipeline fetch and load operations.
type Orchestrator struct {
	documentTypes []config.DocumentTypeConfig
	fetcher       *fetcher.Fetcher
	loader        *loader.Loader
	submitter     loader.Submitter
	ledger        RunLedger
	tracker       *Tracker
}

// Options groups the orchestrator's collaborators. Fetcher may be nil for a
// load-only process and Submitter may be nil for a fetch-only one.
type Options struct {
	Fetcher   *fetcher.Fetcher
	Loader    *loader.Loader
	Submitter loader.Submitter
	Ledger    RunLedger
	Tracker   *Tracker
}

// New creates an orchestrator for the given document types.
func New(documentTypes []config.DocumentTypeConfig, opts Options) *Orchestrator {
	if opts.Ledger == nil {
		opts.Ledger = NopLedger{}
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker()
	}
	return &Orchestrator{
		documentTypes: documentTypes,
		fetcher:       opts.Fetcher,
		loader:        opts.Loader,
		submitter:     opts.Submitter,
		ledger:        opts.Ledger,
		tracker:       opts.Tracker,
	}
}

// Tracker exposes the run state.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Status returns a snapshot of the run state.
func (o *Orchestrator) Status() State {
	return o.tracker.Snapshot()
}

// begin claims the tracker, opens a ledger record and returns a context
// carrying the run's logger fields.
func (o *Orchestrator) begin(ctx context.Context, phase domain.RunPhase) (context.Context, *domain.PipelineRun, error) {
	runID := uuid.New().String()
	if err := o.tracker.Begin(phase, runID); err != nil {
		return ctx, nil, err
	}

	ctx = logger.SetRunID(ctx, runID)
	ctx = logger.SetComponent(ctx, string(phase))

	run := &domain.PipelineRun{
		ID:            runID,
		Phase:         phase,
		Status:        domain.RunStatusRunning,
		DocumentTypes: len(o.documentTypes),
		StartedAt:     time.Now(),
	}
	if err := o.ledger.StartRun(ctx, run); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record run start")
	}
	return ctx, run, nil
}

func (o *Orchestrator) finish(ctx context.Context, run *domain.PipelineRun, err error) {
	o.tracker.Finish(err)

	run.Status = domain.RunStatusCompleted
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.ErrorLog = err.Error()
	}
	if lerr := o.ledger.FinishRun(ctx, run); lerr != nil {
		logger.FromContext(ctx).WithError(lerr).Warn("Failed to record run result")
	}

	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldStatus:     string(run.Status),
		logger.FieldDurationMs: time.Since(run.StartedAt).Milliseconds(),
	})
	if err != nil {
		log.WithError(err).Error("Run failed")
		return
	}
	log.Info("Run completed")
}

// FetchAll downloads and extracts every configured link of every document
// type, in configured order. The first error stops the run.
func (o *Orchestrator) FetchAll(ctx context.Context) (summaries []domain.FetchSummary, err error) {
	ctx, run, err := o.begin(ctx, domain.RunPhaseFetch)
	if err != nil {
		return nil, err
	}
	defer func() { o.finish(ctx, run, err) }()

	for _, dt := range o.documentTypes {
		summary, ferr := o.fetchAndExtract(ctx, dt)
		summaries = append(summaries, *summary)
		run.Links += summary.Links
		run.Files += summary.Files
		if ferr != nil {
			return summaries, ferr
		}
	}
	return summaries, nil
}

// fetchAndExtract replaces one type's folder with the contents of its archives.
func (o *Orchestrator) fetchAndExtract(ctx context.Context, dt config.DocumentTypeConfig) (*domain.FetchSummary, error) {
	ctx = logger.SetDocumentType(ctx, dt.Name)
	log := logger.FromContext(ctx)
	summary := &domain.FetchSummary{DocumentType: dt.Name}

	dir, err := o.fetcher.ResetFolder(dt)
	if err != nil {
		return summary, err
	}
	log.WithField("folder", dir).Info("Folder reset")

	for _, job := range o.fetcher.Jobs(dt) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		o.tracker.Fetching(dt.Name, job.Link)
		log.WithField(logger.FieldLink, job.Link).Infof("Fetching %s for %s", job.Link, dt.Name)

		files, err := o.fetcher.Fetch(ctx, job, dt.FileSuffix, dir)
		if err != nil {
			return summary, err
		}
		summary.Links++
		summary.Files += files
		log.WithFields(logger.Fields{
			logger.FieldLink:  job.Link,
			logger.FieldCount: files,
		}).Info("Archive extracted")
	}
	return summary, nil
}

// LoadAll loads every document type in configured order. Types with loading
// disabled are skipped. The first error stops the run.
func (o *Orchestrator) LoadAll(ctx context.Context) (summaries []domain.LoadSummary, err error) {
	ctx, run, err := o.begin(ctx, domain.RunPhaseLoad)
	if err != nil {
		return nil, err
	}
	defer func() { o.finish(ctx, run, err) }()

	submitter := &recordingSubmitter{
		next:    o.submitter,
		ledger:  o.ledger,
		tracker: o.tracker,
		runID:   run.ID,
	}

	for _, dt := range o.documentTypes {
		tctx := logger.SetDocumentType(ctx, dt.Name)
		log := logger.FromContext(tctx)

		// LoadDocuments always returns a summary, partial on error.
		summary, lerr := o.loader.LoadDocuments(tctx, dt, submitter)
		summaries = append(summaries, *summary)
		run.Documents += summary.Documents
		run.Batches += summary.Batches
		if lerr != nil {
			return summaries, lerr
		}
		if summary.Skipped {
			log.Info("Loading disabled, skipped")
			continue
		}
		log.WithField(logger.FieldCount, summary.Documents).Info("Document type loaded")
	}
	return summaries, nil
}
