// Package fetcher downloads document archives from the open-data API and
// unpacks them into one directory per document type.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/logger"
)

// ArchiveMirror receives a copy of every downloaded archive.
type ArchiveMirror interface {
	MirrorArchive(ctx context.Context, documentType, link, suffix string, data []byte) (string, error)
}

// Config holds configuration for the fetcher
type Config struct {
	APIURL   string
	DataPath string
	Timeout  time.Duration // zero keeps the transport default
}

// Fetcher retrieves and extracts archives, one link at a time.
type Fetcher struct {
	client   *resty.Client
	apiURL   string
	dataPath string
	mirror   ArchiveMirror
}

// New creates a fetcher. mirror may be nil.
func New(cfg *Config, mirror ArchiveMirror) *Fetcher {
	client := resty.New()
	client.SetHeader("User-Agent", "docloader/1.0")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Fetcher{
		client:   client,
		apiURL:   cfg.APIURL,
		dataPath: cfg.DataPath,
		mirror:   mirror,
	}
}

// FolderPath returns the local directory owned by a document type.
func FolderPath(dataPath string, dt config.DocumentTypeConfig) string {
	return filepath.Join(dataPath, dt.Folder())
}

// Jobs lists the downloads for a document type in configured link order.
func (f *Fetcher) Jobs(dt config.DocumentTypeConfig) []domain.FetchJob {
	jobs := make([]domain.FetchJob, 0, len(dt.Links))
	for _, link := range dt.Links {
		jobs = append(jobs, domain.FetchJob{
			DocumentType: dt.Name,
			Link:         link,
			URL:          f.apiURL + dt.URLPath + link + dt.FileSuffix,
		})
	}
	return jobs
}

// ResetFolder deletes the document type's folder, if present, and recreates it empty.
func (f *Fetcher) ResetFolder(dt config.DocumentTypeConfig) (string, error) {
	dir := FolderPath(f.dataPath, dt)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// Fetch downloads one archive and extracts it into dir, returning the
// number of files written.
func (f *Fetcher) Fetch(ctx context.Context, job domain.FetchJob, suffix, dir string) (int, error) {
	data, err := f.Download(ctx, job.URL)
	if err != nil {
		return 0, err
	}

	if f.mirror != nil {
		key, err := f.mirror.MirrorArchive(ctx, job.DocumentType, job.Link, suffix, data)
		if err != nil {
			return 0, err
		}
		logger.FromContext(ctx).WithField("object_key", key).Debug("Archive mirrored")
	}

	files, err := ExtractArchive(data, dir)
	if err != nil {
		var extractErr *domain.ExtractionError
		if errors.As(err, &extractErr) {
			extractErr.DocumentType = job.DocumentType
			extractErr.Link = job.Link
		}
		return 0, err
	}
	return len(files), nil
}

// Download performs the GET and returns the body. Any status other than 200 is a TransportError.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &domain.TransportError{Op: http.MethodGet, URL: url, Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &domain.TransportError{
			Op:         http.MethodGet,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return resp.Body(), nil
}
