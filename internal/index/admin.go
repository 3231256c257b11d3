package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/timmy/docloader/internal/domain"
)

// ClusterInfo returns the root endpoint's JSON document.
func (c *Client) ClusterInfo(ctx context.Context) (map[string]interface{}, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL, nil, "")
	if err != nil {
		return nil, err
	}

	var info map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("failed to decode cluster info: %w", err)
	}
	return info, nil
}

// CreateIndex creates the index with settings and per-type mappings.
func (c *Client) CreateIndex(ctx context.Context, settings map[string]interface{}, mappings map[string]interface{}) error {
	body := map[string]interface{}{
		"settings": settings,
		"mappings": mappings,
	}
	return c.CreateNamedIndex(ctx, c.indexName, body)
}

// CreateNamedIndex creates an arbitrary index from a raw creation body.
func (c *Client) CreateNamedIndex(ctx context.Context, name string, body map[string]interface{}) error {
	if name == "" {
		return fmt.Errorf("index name is required")
	}
	_, err := c.do(ctx, http.MethodPost, c.baseURL+"/"+name, body, "application/json")
	return err
}

// IndexExists reports whether the named index exists. Statuses other than
// 200 and 404 are a TransportError.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	url := c.baseURL + "/" + name
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return false, &domain.TransportError{Op: http.MethodGet, URL: url, Err: err}
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &domain.TransportError{
			Op:         http.MethodGet,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
}

// QueryIndexMappings is the creation body of the search-query log index.
func QueryIndexMappings() map[string]interface{} {
	keyword := map[string]interface{}{"type": "string", "index": "not_analyzed"}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"type_search_query": map[string]interface{}{
				"properties": map[string]interface{}{
					"term": keyword,
					"type": keyword,
					"date": map[string]interface{}{"type": "date", "format": "yyyy-MM-dd HH:mm:ss"},
				},
			},
		},
	}
}

// ResetIndex removes the named index when present and recreates it from body.
func (c *Client) ResetIndex(ctx context.Context, name string, body map[string]interface{}) error {
	exists, err := c.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		if err := c.RemoveIndex(ctx, name); err != nil {
			return err
		}
	}
	return c.CreateNamedIndex(ctx, name, body)
}

// RemoveIndex clears the named index's cache and deletes it.
func (c *Client) RemoveIndex(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("index name is required")
	}
	if _, err := c.do(ctx, http.MethodPost, c.baseURL+"/"+name+"/_cache/clear", nil, ""); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+"/"+name, nil, "")
	return err
}

// TypeCount is the number of indexed documents of one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type countByTypeResponse struct {
	Aggregations struct {
		CountByType struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"count_by_type"`
	} `json:"aggregations"`
}

// CountByType aggregates document counts on the _type field.
func (c *Client) CountByType(ctx context.Context) ([]TypeCount, error) {
	query := map[string]interface{}{
		"aggregations": map[string]interface{}{
			"count_by_type": map[string]interface{}{
				"terms": map[string]interface{}{"field": "_type"},
			},
		},
		"size": 0,
	}
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/"+c.indexName+"/_search", query, "application/json")
	if err != nil {
		return nil, err
	}

	var parsed countByTypeResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	counts := make([]TypeCount, 0, len(parsed.Aggregations.CountByType.Buckets))
	for _, b := range parsed.Aggregations.CountByType.Buckets {
		counts = append(counts, TypeCount{Type: b.Key, Count: b.DocCount})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Type < counts[j].Type })
	return counts, nil
}

type storeStatsResponse struct {
	Indices map[string]struct {
		Total struct {
			Store struct {
				SizeInBytes int64 `json:"size_in_bytes"`
			} `json:"store"`
		} `json:"total"`
	} `json:"indices"`
}

// StoreSize returns the index's on-disk size in bytes.
func (c *Client) StoreSize(ctx context.Context) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/"+c.indexName+"/_stats/store", nil, "")
	if err != nil {
		return 0, err
	}

	var parsed storeStatsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return 0, fmt.Errorf("failed to decode stats response: %w", err)
	}
	stats, ok := parsed.Indices[c.indexName]
	if !ok {
		return 0, fmt.Errorf("index %s missing from stats response", c.indexName)
	}
	return stats.Total.Store.SizeInBytes, nil
}
