package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineBusy is returned when a run is requested while another is in progress.
	ErrPipelineBusy = errors.New("pipeline run already in progress")

	// ErrCredentialsRequired is returned when the index demands credentials and none are configured.
	ErrCredentialsRequired = errors.New("index credentials required")
)

// TransportError reports a remote call that failed or returned a non-success status.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedDocumentError reports a source file that cannot become an index document.
type MalformedDocumentError struct {
	DocumentType string
	File         string
	Reason       string
	Err          error
}

func (e *MalformedDocumentError) Error() string {
	msg := fmt.Sprintf("malformed document %s/%s: %s", e.DocumentType, e.File, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// ExtractionError reports an archive that could not be unpacked.
type ExtractionError struct {
	DocumentType string
	Link         string
	Entry        string
	Err          error
}

func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extract %s (%s) entry %q: %v", e.Link, e.DocumentType, e.Entry, e.Err)
	}
	return fmt.Sprintf("extract %s (%s): %v", e.Link, e.DocumentType, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
