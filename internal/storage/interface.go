package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// ObjectStorage defines the object operations the archive mirror relies on.
type ObjectStorage interface {
	// EnsureBucket creates the bucket if it does not exist
	EnsureBucket(ctx context.Context) error

	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

// ArchiveKey builds the object key for a downloaded archive:
// prefix/documentType/link+suffix, with path separators in the link flattened.
func ArchiveKey(prefix, documentType, link, suffix string) string {
	name := strings.ReplaceAll(strings.Trim(link, "/"), "/", "_") + suffix
	return path.Join(strings.Trim(prefix, "/"), documentType, name)
}
