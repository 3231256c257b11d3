// Package loader turns extracted files into bulk index actions and hands
// them to a Submitter in batches.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/logger"
)

// Submitter sends one batch to the index.
type Submitter interface {
	Submit(ctx context.Context, batch *domain.Batch) error
}

// Config holds configuration for the loader
type Config struct {
	DataPath          string
	IndexName         string
	InsertRate        int    // documents per bulk request
	DocumentNameField string // field receiving the source file name
}

// Loader reads a document type's folder and drives bulk submission.
type Loader struct {
	dataPath          string
	indexName         string
	insertRate        int
	documentNameField string
}

// New creates a loader.
func New(cfg *Config) *Loader {
	rate := cfg.InsertRate
	if rate < 1 {
		rate = 1
	}
	return &Loader{
		dataPath:          cfg.DataPath,
		indexName:         cfg.IndexName,
		insertRate:        rate,
		documentNameField: cfg.DocumentNameField,
	}
}

// ListDocuments returns the regular files in the type's folder sorted by
// name, plus the number of other entries (subdirectories, links) it skipped.
func (l *Loader) ListDocuments(dt config.DocumentTypeConfig) ([]domain.ExtractedDocument, int, error) {
	dir := filepath.Join(l.dataPath, dt.Folder())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	skipped := 0
	docs := make([]domain.ExtractedDocument, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			skipped++
			continue
		}
		docs = append(docs, domain.ExtractedDocument{
			DocumentType: dt.Name,
			Name:         entry.Name(),
			Path:         filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Name < docs[j].Name
	})
	return docs, skipped, nil
}

// BuildAction reads one file and turns it into a tagged bulk action.
func (l *Loader) BuildAction(dt config.DocumentTypeConfig, doc domain.ExtractedDocument) (domain.BulkAction, error) {
	malformed := func(reason string, err error) error {
		return &domain.MalformedDocumentError{DocumentType: dt.Name, File: doc.Name, Reason: reason, Err: err}
	}

	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return domain.BulkAction{}, fmt.Errorf("failed to read %s: %w", doc.Path, err)
	}

	text, err := DecodeText(raw)
	if err != nil {
		return domain.BulkAction{}, malformed("cannot decode text", err)
	}

	obj, err := ParseObject(StripComments(text))
	if err != nil {
		return domain.BulkAction{}, malformed("invalid JSON", err)
	}

	body, err := Unwrap(obj, dt.IgnoreInitialKey)
	if err != nil {
		return domain.BulkAction{}, malformed("cannot unwrap document", err)
	}
	body[l.documentNameField] = doc.Name

	return domain.BulkAction{
		Meta: domain.ActionMeta{Index: l.indexName, Type: dt.Name},
		Body: body,
	}, nil
}

// EffectiveLimit returns how many of available documents may be loaded.
func EffectiveLimit(dt config.DocumentTypeConfig, available int) int {
	if dt.HardLimit != nil && *dt.HardLimit < available {
		return *dt.HardLimit
	}
	return available
}

// LoadDocuments loads one document type. Types with load_data disabled are
// skipped without touching the submitter. Any error aborts the load; batches
// already submitted stay committed.
func (l *Loader) LoadDocuments(ctx context.Context, dt config.DocumentTypeConfig, submitter Submitter) (*domain.LoadSummary, error) {
	summary := &domain.LoadSummary{DocumentType: dt.Name}
	if !dt.LoadData {
		summary.Skipped = true
		return summary, nil
	}

	docs, skipped, err := l.ListDocuments(dt)
	if err != nil {
		return summary, err
	}

	limit := EffectiveLimit(dt, len(docs))
	summary.Truncated = limit < len(docs)
	summary.SkippedEntries = skipped
	log := logger.FromContext(ctx)
	if skipped > 0 {
		log.WithField(logger.FieldCount, skipped).Warn("Entries that are not regular files will not be loaded")
	}

	flush := func(batch *domain.Batch) error {
		log.WithFields(logger.Fields{
			logger.FieldBatchFirst: batch.First,
			logger.FieldBatchLast:  batch.Last,
			logger.FieldSize:       batch.Size(),
		}).Infof("Inserting entries: %d-%d", batch.First, batch.Last)

		if err := submitter.Submit(ctx, batch); err != nil {
			return err
		}
		summary.Documents += batch.Len()
		summary.Batches++
		return nil
	}

	batch := domain.NewBatch(dt.Name, 1)
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		action, err := l.BuildAction(dt, docs[i])
		if err != nil {
			return summary, err
		}
		if err := batch.Append(action); err != nil {
			return summary, err
		}

		if batch.Len() == l.insertRate {
			if err := flush(batch); err != nil {
				return summary, err
			}
			batch = domain.NewBatch(dt.Name, i+2)
		}
	}

	if batch.Len() > 0 {
		if err := flush(batch); err != nil {
			return summary, err
		}
	}

	if summary.Truncated {
		log.WithField(logger.FieldCount, len(docs)-limit).Info("Hard limit reached, remaining files not loaded")
	}
	return summary, nil
}
