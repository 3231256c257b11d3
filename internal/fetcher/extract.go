package fetcher

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/docloader/internal/domain"
)

var errUnsafePath = errors.New("entry escapes target directory")

// ExtractArchive unpacks a zip archive held in memory into dir, keeping the
// archive's entry names. It returns the relative paths of the files written.
func ExtractArchive(data []byte, dir string) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &domain.ExtractionError{Err: fmt.Errorf("not a zip archive: %w", err)}
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, &domain.ExtractionError{Err: err}
	}

	var written []string
	for _, entry := range reader.File {
		target, err := entryPath(root, entry.Name)
		if err != nil {
			return written, &domain.ExtractionError{Entry: entry.Name, Err: err}
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, &domain.ExtractionError{Entry: entry.Name, Err: err}
			}
			continue
		}

		if err := extractFile(entry, target); err != nil {
			return written, &domain.ExtractionError{Entry: entry.Name, Err: err}
		}
		written = append(written, entry.Name)
	}
	return written, nil
}

func entryPath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", errUnsafePath
	}
	return target, nil
}

func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
