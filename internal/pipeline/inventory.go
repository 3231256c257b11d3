package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/fetcher"
)

// FolderStats describes the extracted files of one document type on disk.
type FolderStats struct {
	DocumentType string `json:"document_type"`
	Path         string `json:"path"`
	Files        int    `json:"files"`
	Bytes        int64  `json:"bytes"`
	Missing      bool   `json:"missing,omitempty"`
}

// Inventory walks every document type folder under dataPath. Missing
// folders are reported, not treated as errors.
func Inventory(dataPath string, documentTypes []config.DocumentTypeConfig) ([]FolderStats, error) {
	stats := make([]FolderStats, 0, len(documentTypes))
	for _, dt := range documentTypes {
		dir := fetcher.FolderPath(dataPath, dt)
		entry := FolderStats{DocumentType: dt.Name, Path: dir}

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			entry.Files++
			entry.Bytes += info.Size()
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			entry.Missing = true
		} else if err != nil {
			return nil, err
		}
		stats = append(stats, entry)
	}
	return stats, nil
}
