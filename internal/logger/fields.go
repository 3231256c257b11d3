package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the context.
const (
	// FieldRunID is the pipeline run ID (UUID)
	FieldRunID = "run_id"

	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldDocumentType is the configured document type being processed
	FieldDocumentType = "document_type"

	// FieldLink is the archive link being fetched
	FieldLink = "link"
)

// Metric fields, used for aggregation and alerting.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldBatchFirst = "batch_first"
	FieldBatchLast  = "batch_last"
	FieldURL        = "url"
)
