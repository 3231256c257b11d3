package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/timmy/docloader/internal/config"
)

// ArchiveMirror copies every downloaded archive to object storage.
type ArchiveMirror struct {
	store  ObjectStorage
	prefix string
}

// NewArchiveMirror wraps an object store.
func NewArchiveMirror(store ObjectStorage, prefix string) *ArchiveMirror {
	return &ArchiveMirror{store: store, prefix: prefix}
}

// NewArchiveMirrorFromConfig builds the S3-compatible store described by cfg.
func NewArchiveMirrorFromConfig(cfg config.StorageConfig) (*ArchiveMirror, error) {
	storeType := StorageType(cfg.Type)
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	store, err := NewS3Storage(&S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return NewArchiveMirror(store, cfg.Prefix), nil
}

// Prepare makes sure the target bucket exists.
func (m *ArchiveMirror) Prepare(ctx context.Context) error {
	return m.store.EnsureBucket(ctx)
}

// MirrorArchive uploads one archive and returns its object key.
func (m *ArchiveMirror) MirrorArchive(ctx context.Context, documentType, link, suffix string, data []byte) (string, error) {
	key := ArchiveKey(m.prefix, documentType, link, suffix)
	if err := m.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypeFor(suffix)); err != nil {
		return "", fmt.Errorf("failed to mirror archive %s: %w", key, err)
	}
	return key, nil
}

func contentTypeFor(suffix string) string {
	switch strings.ToLower(suffix) {
	case ".zip":
		return "application/zip"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
