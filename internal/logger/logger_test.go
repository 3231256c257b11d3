package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer, level string) *Logger {
	return New(&Config{Level: level, Format: "json", Output: buf, ServiceName: "docloader-test"})
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf, "info").WithContext(context.Background())

	ctx = SetRunID(ctx, "run-1")
	ctx = SetDocumentType(ctx, "motion")
	CtxInfo(ctx, "Inserting entries: %d-%d", 1, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Inserting entries: 1-2", entry["message"])
	assert.Equal(t, "run-1", entry[FieldRunID])
	assert.Equal(t, "motion", entry[FieldDocumentType])
	assert.Equal(t, "docloader-test", entry["service"])
	assert.Equal(t, "run-1", GetRunID(ctx))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, "warn")

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Empty(t, GetRunID(context.Background()))
}

func TestCtxError_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf, "warn").WithContext(context.Background())

	ctx = SetComponent(ctx, "fetch")
	CtxError(ctx, "%s run failed: %v", "fetch", "boom")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetch run failed: boom", entry["message"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "fetch", entry[FieldComponent])
}
