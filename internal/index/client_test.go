package index

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/docloader/internal/credentials"
	"github.com/timmy/docloader/internal/domain"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	user        string
	pass        string
	body        string
}

type fakeIndex struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeIndex(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeIndex, *httptest.Server) {
	t.Helper()
	fi := &fakeIndex{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		fi.mu.Lock()
		fi.requests = append(fi.requests, recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			user:        user,
			pass:        pass,
			body:        string(body),
		})
		fi.mu.Unlock()
		fi.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return fi, srv
}

func batchOf(t *testing.T, n int) *domain.Batch {
	t.Helper()
	b := domain.NewBatch("motion", 1)
	for i := 0; i < n; i++ {
		require.NoError(t, b.Append(domain.BulkAction{
			Meta: domain.ActionMeta{Index: "riksdagen", Type: "motion"},
			Body: map[string]interface{}{"n": i},
		}))
	}
	return b
}

func TestSubmit_PostsNDJSONWithCredentials(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"took": 3, "errors": false, "items": []}`))
	})
	client := NewClient(&Config{
		BaseURL:     srv.URL,
		IndexName:   "riksdagen",
		Credentials: credentials.Credentials{Username: "elastic", Password: "secret"},
	})

	batch := batchOf(t, 2)
	require.NoError(t, client.Submit(context.Background(), batch))

	require.Len(t, fi.requests, 1)
	req := fi.requests[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/_bulk", req.path)
	assert.Equal(t, "application/x-ndjson", req.contentType)
	assert.Equal(t, "elastic", req.user)
	assert.Equal(t, "secret", req.pass)
	assert.Equal(t, string(batch.Payload()), req.body)
}

func TestSubmit_Non200IsTransportError(t *testing.T) {
	_, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "mapper_parsing_exception"}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	err := client.Submit(context.Background(), batchOf(t, 1))

	var transportErr *domain.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusBadRequest, transportErr.StatusCode)
	assert.Contains(t, transportErr.Body, "mapper_parsing_exception")
	assert.Equal(t, srv.URL+"/_bulk", transportErr.URL)
}

func TestBulk_CountsItemErrors(t *testing.T) {
	_, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": true, "items": [
			{"index": {"status": 201}},
			{"index": {"status": 400, "error": {"type": "mapper_parsing_exception"}}}
		]}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	result, err := client.Bulk(context.Background(), batchOf(t, 2).Payload())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Items)
	assert.Equal(t, 1, result.FailedItems)

	// Item errors do not fail the submission.
	assert.NoError(t, client.Submit(context.Background(), batchOf(t, 2)))
}

func TestNewClient_NoCredentials(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL + "/", IndexName: "riksdagen"})

	_, err := client.ClusterInfo(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fi.requests[0].user)
	assert.Equal(t, "/", fi.requests[0].path)
}

func TestCreateIndex(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"acknowledged": true}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	settings := map[string]interface{}{"number_of_shards": 1}
	mappings := map[string]interface{}{"motion": map[string]interface{}{"properties": map[string]interface{}{}}}
	require.NoError(t, client.CreateIndex(context.Background(), settings, mappings))

	req := fi.requests[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/riksdagen", req.path)
	assert.JSONEq(t, `{"settings": {"number_of_shards": 1}, "mappings": {"motion": {"properties": {}}}}`, req.body)
}

func TestRemoveIndex_ClearsCacheThenDeletes(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"acknowledged": true}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	require.NoError(t, client.RemoveIndex(context.Background(), "old-index"))

	require.Len(t, fi.requests, 2)
	assert.Equal(t, http.MethodPost, fi.requests[0].method)
	assert.Equal(t, "/old-index/_cache/clear", fi.requests[0].path)
	assert.Equal(t, http.MethodDelete, fi.requests[1].method)
	assert.Equal(t, "/old-index", fi.requests[1].path)
}

func TestRemoveIndex_StopsWhenCacheClearFails(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	assert.Error(t, client.RemoveIndex(context.Background(), "missing"))
	assert.Len(t, fi.requests, 1)
}

func TestCountByType(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"aggregations": {"count_by_type": {"buckets": [
			{"key": "vote", "doc_count": 12},
			{"key": "motion", "doc_count": 40}
		]}}}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	counts, err := client.CountByType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []TypeCount{{Type: "motion", Count: 40}, {Type: "vote", Count: 12}}, counts)

	var query map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fi.requests[0].body), &query))
	assert.Equal(t, "/riksdagen/_search", fi.requests[0].path)
	assert.EqualValues(t, 0, query["size"])
}

func TestStoreSize(t *testing.T) {
	_, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"indices": {"riksdagen": {"total": {"store": {"size_in_bytes": 2500000}}}}}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	size, err := client.StoreSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2500000), size)
}

func TestResetIndex_RemovesExistingThenCreates(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"acknowledged": true}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	require.NoError(t, client.ResetIndex(context.Background(), "queries", QueryIndexMappings()))

	var calls []string
	for _, r := range fi.requests {
		calls = append(calls, r.method+" "+r.path)
	}
	assert.Equal(t, []string{
		"GET /queries",
		"POST /queries/_cache/clear",
		"DELETE /queries",
		"POST /queries",
	}, calls)
	assert.Contains(t, fi.requests[3].body, "type_search_query")
}

func TestResetIndex_CreatesWhenMissing(t *testing.T) {
	fi, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"acknowledged": true}`))
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	require.NoError(t, client.ResetIndex(context.Background(), "queries", QueryIndexMappings()))
	require.Len(t, fi.requests, 2)
	assert.Equal(t, http.MethodPost, fi.requests[1].method)
}

func TestIndexExists_UnexpectedStatus(t *testing.T) {
	_, srv := newFakeIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	client := NewClient(&Config{BaseURL: srv.URL, IndexName: "riksdagen"})

	_, err := client.IndexExists(context.Background(), "queries")
	var transportErr *domain.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusForbidden, transportErr.StatusCode)
}
