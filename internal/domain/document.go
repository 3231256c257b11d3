package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FetchJob is one (document type, link) pair to download.
type FetchJob struct {
	DocumentType string
	Link         string
	URL          string
}

// ExtractedDocument is one file in a document type's folder.
type ExtractedDocument struct {
	DocumentType string
	Name         string // file name, used as the document name tag
	Path         string
}

// ActionMeta is the metadata line of a bulk index action.
type ActionMeta struct {
	Index string `json:"_index"`
	Type  string `json:"_type"`
}

// BulkAction pairs an index header with the tagged document body.
type BulkAction struct {
	Meta ActionMeta
	Body map[string]interface{}
}

// Batch is an ordered run of bulk actions submitted as one request.
// First and Last are 1-based positions of the covered documents within
// their document type's load.
type Batch struct {
	DocumentType string
	First        int
	Last         int

	buf   bytes.Buffer
	count int
}

// NewBatch starts an empty batch whose first document has position first.
func NewBatch(documentType string, first int) *Batch {
	return &Batch{DocumentType: documentType, First: first, Last: first - 1}
}

// Append encodes the action as two NDJSON lines.
func (b *Batch) Append(action BulkAction) error {
	header, err := json.Marshal(map[string]ActionMeta{"index": action.Meta})
	if err != nil {
		return fmt.Errorf("failed to encode action header: %w", err)
	}
	body, err := json.Marshal(action.Body)
	if err != nil {
		return fmt.Errorf("failed to encode document body: %w", err)
	}

	b.buf.Write(header)
	b.buf.WriteByte('\n')
	b.buf.Write(body)
	b.buf.WriteByte('\n')
	b.count++
	b.Last = b.First + b.count - 1
	return nil
}

// Len returns the number of actions in the batch.
func (b *Batch) Len() int {
	return b.count
}

// Payload returns the NDJSON request body.
func (b *Batch) Payload() []byte {
	return b.buf.Bytes()
}

// Size returns the payload size in bytes.
func (b *Batch) Size() int {
	return b.buf.Len()
}

// LoadSummary reports the outcome of loading one document type.
type LoadSummary struct {
	DocumentType string `json:"document_type"`
	Documents    int    `json:"documents"`
	Batches      int    `json:"batches"`
	Skipped      bool   `json:"skipped,omitempty"`   // load_data disabled
	Truncated    bool   `json:"truncated,omitempty"` // hard limit reached before input was exhausted

	SkippedEntries int `json:"skipped_entries,omitempty"` // subdirectories and other non-regular entries
}

// FetchSummary reports the outcome of fetching one document type.
type FetchSummary struct {
	DocumentType string `json:"document_type"`
	Links        int    `json:"links"`
	Files        int    `json:"files"`
}
