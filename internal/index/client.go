// Package index talks to the search-engine index endpoint: bulk submission
// for the load phase plus the handful of admin calls the CLI exposes.
package index

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/docloader/internal/credentials"
	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/logger"
)

// Config holds configuration for the index client
type Config struct {
	BaseURL     string // scheme://host:port
	IndexName   string
	Credentials credentials.Credentials
	Timeout     time.Duration
}

// Client is a thin resty wrapper around the index HTTP API.
type Client struct {
	client    *resty.Client
	baseURL   string
	indexName string
}

// NewClient creates a new index client
func NewClient(cfg *Config) *Client {
	client := resty.New()
	if !cfg.Credentials.IsZero() {
		client.SetBasicAuth(cfg.Credentials.Username, cfg.Credentials.Password)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{
		client:    client,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		indexName: cfg.IndexName,
	}
}

// IndexName returns the index this client writes to.
func (c *Client) IndexName() string {
	return c.indexName
}

// bulkResponse is the subset of the bulk reply we inspect.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error,omitempty"`
	} `json:"items"`
}

// BulkResult summarises a successful bulk call.
type BulkResult struct {
	Items       int
	FailedItems int
}

// Bulk posts an NDJSON payload to the _bulk endpoint.
func (c *Client) Bulk(ctx context.Context, payload []byte) (*BulkResult, error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/_bulk", payload, "application/x-ndjson")
	if err != nil {
		return nil, err
	}

	result := &BulkResult{}
	var parsed bulkResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		// Status was 200; the body is informational only.
		return result, nil
	}
	result.Items = len(parsed.Items)
	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, op := range item {
				if len(op.Error) > 0 {
					result.FailedItems++
				}
			}
		}
	}
	return result, nil
}

// Submit sends one batch as a single bulk request.
func (c *Client) Submit(ctx context.Context, batch *domain.Batch) error {
	start := time.Now()
	result, err := c.Bulk(ctx, batch.Payload())
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldCount:      batch.Len(),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	})
	if result.FailedItems > 0 {
		log.WithField("failed_items", result.FailedItems).Warn("Bulk request accepted with item errors")
		return nil
	}
	log.Debug("Bulk request completed")
	return nil
}

// do issues one request and maps non-200 responses to TransportError.
func (c *Client) do(ctx context.Context, method, url string, body interface{}, contentType string) (*resty.Response, error) {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
		if contentType != "" {
			req.SetHeader("Content-Type", contentType)
		}
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, &domain.TransportError{Op: method, URL: url, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &domain.TransportError{
			Op:         method,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return resp, nil
}
