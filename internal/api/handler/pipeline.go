package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/logger"
	"github.com/timmy/docloader/internal/pipeline"
	"gorm.io/gorm"
)

// PipelineRunner runs the two pipeline phases.
type PipelineRunner interface {
	FetchAll(ctx context.Context) ([]domain.FetchSummary, error)
	LoadAll(ctx context.Context) ([]domain.LoadSummary, error)
	Status() pipeline.State
}

// RunStore reads the run ledger.
type RunStore interface {
	ListRuns(ctx context.Context, limit, offset int) ([]domain.PipelineRun, error)
	GetRun(ctx context.Context, id string) (*domain.PipelineRun, error)
	ListBatches(ctx context.Context, runID string) ([]domain.BatchRecord, error)
}

// PipelineHandler exposes run state and run triggers.
type PipelineHandler struct {
	runner PipelineRunner
	runs   RunStore
}

// NewPipelineHandler creates a new pipeline handler.
// Parameters:
//   - runner: pipeline orchestrator.
//   - runs: run ledger; nil when the database is disabled.
// Returns:
//   - *PipelineHandler: initialized handler.
func NewPipelineHandler(runner PipelineRunner, runs RunStore) *PipelineHandler {
	return &PipelineHandler{runner: runner, runs: runs}
}

// FetchResponse is returned by a completed fetch run.
type FetchResponse struct {
	Message   string                `json:"message"`
	Summaries []domain.FetchSummary `json:"summaries"`
}

// LoadResponse is returned by a completed load run.
type LoadResponse struct {
	Message   string               `json:"message"`
	Summaries []domain.LoadSummary `json:"summaries"`
}

// Status handles GET /api/v1/status.
func (h *PipelineHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status())
}

// TriggerFetch handles POST /api/v1/fetch. The run completes before the
// response is written.
func (h *PipelineHandler) TriggerFetch(c *gin.Context) {
	ctx := c.Request.Context()
	logger.CtxInfo(ctx, "Received fetch request: client_ip=%s", c.ClientIP())

	start := time.Now()
	// The run outlives a dropped client connection
	summaries, err := h.runner.FetchAll(context.WithoutCancel(ctx))
	if err != nil {
		h.fail(c, "Fetch", err)
		return
	}

	logger.FromContext(ctx).WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).
		Info("Fetch request completed")
	c.JSON(http.StatusOK, FetchResponse{Message: "Fetch completed", Summaries: summaries})
}

// TriggerLoad handles POST /api/v1/load.
func (h *PipelineHandler) TriggerLoad(c *gin.Context) {
	ctx := c.Request.Context()
	logger.CtxInfo(ctx, "Received load request: client_ip=%s", c.ClientIP())

	start := time.Now()
	summaries, err := h.runner.LoadAll(context.WithoutCancel(ctx))
	if err != nil {
		h.fail(c, "Load", err)
		return
	}

	logger.FromContext(ctx).WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).
		Info("Load request completed")
	c.JSON(http.StatusOK, LoadResponse{Message: "Load completed", Summaries: summaries})
}

// fail maps a run error to a response.
func (h *PipelineHandler) fail(c *gin.Context, op string, err error) {
	ctx := c.Request.Context()

	if errors.Is(err, domain.ErrPipelineBusy) {
		logger.CtxWarn(ctx, "%s request rejected: run in progress, client_ip=%s", op, c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldStatus: transportErr.StatusCode,
			logger.FieldURL:    transportErr.URL,
		}).Errorf("%s run failed: remote call rejected", op)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"status": transportErr.StatusCode,
			"url":    transportErr.URL,
			"body":   transportErr.Body,
		})
		return
	}

	logger.CtxError(ctx, "%s run failed: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// ListRuns handles GET /api/v1/runs.
func (h *PipelineHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

// ListBatches handles GET /api/v1/runs/:id/batches.
func (h *PipelineHandler) ListBatches(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger disabled"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	run, err := h.runs.GetRun(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	batches, err := h.runs.ListBatches(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":     run,
		"batches": batches,
	})
}
