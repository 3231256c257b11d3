package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/docloader/internal/api/handler"
	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/logger"
	"github.com/timmy/docloader/internal/pipeline"
	"gorm.io/gorm"
)

type fakeRunner struct {
	fetchErr error
	loadErr  error
	state    pipeline.State
	loads    int
}

func (f *fakeRunner) FetchAll(ctx context.Context) ([]domain.FetchSummary, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return []domain.FetchSummary{{DocumentType: "motion", Links: 2, Files: 6}}, nil
}

func (f *fakeRunner) LoadAll(ctx context.Context) ([]domain.LoadSummary, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return []domain.LoadSummary{{DocumentType: "motion", Documents: 5, Batches: 3}}, nil
}

func (f *fakeRunner) Status() pipeline.State {
	return f.state
}

type fakeStore struct {
	runs    []domain.PipelineRun
	batches map[string][]domain.BatchRecord
}

func (s *fakeStore) ListRuns(ctx context.Context, limit, offset int) ([]domain.PipelineRun, error) {
	if offset >= len(s.runs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.runs) {
		end = len(s.runs)
	}
	return s.runs[offset:end], nil
}

func (s *fakeStore) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) ListBatches(ctx context.Context, runID string) ([]domain.BatchRecord, error) {
	return s.batches[runID], nil
}

func doRequest(t *testing.T, runner *fakeRunner, store *fakeStore, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	// A nil *fakeStore must stay a nil interface.
	var runs handler.RunStore
	if store != nil {
		runs = store
	}
	r := SetupRouter(runner, runs, logger.GetDefault(), "test")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealth(t *testing.T) {
	w, body := doRequest(t, &fakeRunner{}, nil, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStatus(t *testing.T) {
	runner := &fakeRunner{state: pipeline.State{Name: pipeline.StateLoading, DocumentType: "motion", First: 3, Last: 4}}
	w, body := doRequest(t, runner, nil, http.MethodGet, "/api/v1/status")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "loading", body["state"])
	assert.Equal(t, "motion", body["document_type"])
	assert.EqualValues(t, 3, body["first"])
}

func TestTriggerLoad(t *testing.T) {
	runner := &fakeRunner{}
	w, body := doRequest(t, runner, nil, http.MethodPost, "/api/v1/load")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, runner.loads)
	require.Len(t, body["summaries"], 1)
}

func TestTriggerFetch_Busy(t *testing.T) {
	runner := &fakeRunner{fetchErr: domain.ErrPipelineBusy}
	w, _ := doRequest(t, runner, nil, http.MethodPost, "/api/v1/fetch")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTriggerLoad_TransportFailure(t *testing.T) {
	runner := &fakeRunner{loadErr: fmt.Errorf("load motion: %w", &domain.TransportError{
		Op: http.MethodPost, URL: "http://es:9200/_bulk", StatusCode: 400, Body: "bad mapping",
	})}
	w, body := doRequest(t, runner, nil, http.MethodPost, "/api/v1/load")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.EqualValues(t, 400, body["status"])
	assert.Equal(t, "http://es:9200/_bulk", body["url"])
	assert.Equal(t, "bad mapping", body["body"])
}

func TestListRuns_LedgerDisabled(t *testing.T) {
	w, _ := doRequest(t, &fakeRunner{}, nil, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListRuns(t *testing.T) {
	store := &fakeStore{runs: []domain.PipelineRun{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	w, body := doRequest(t, &fakeRunner{}, store, http.MethodGet, "/api/v1/runs?limit=2&offset=1")

	assert.Equal(t, http.StatusOK, w.Code)
	runs := body["runs"].([]interface{})
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].(map[string]interface{})["id"])
}

func TestListBatches(t *testing.T) {
	store := &fakeStore{
		runs:    []domain.PipelineRun{{ID: "run-1", Phase: domain.RunPhaseLoad}},
		batches: map[string][]domain.BatchRecord{"run-1": {{RunID: "run-1", First: 1, Last: 2}}},
	}

	w, body := doRequest(t, &fakeRunner{}, store, http.MethodGet, "/api/v1/runs/run-1/batches")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["batches"], 1)

	w, _ = doRequest(t, &fakeRunner{}, store, http.MethodGet, "/api/v1/runs/missing/batches")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
