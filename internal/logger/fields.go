package logger

// Field keys shared by all log statements so log queries stay stable.
const (
	KeyRequestID = "request_id"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyOperation = "operation"
	KeyActor     = "actor"
	KeyClientIP  = "client_ip"

	KeyPath        = "path"
	KeyDestination = "destination"
	KeyKind        = "kind" // file or directory
	KeySize        = "size"
	KeyCount       = "count"
	KeyContentType = "content_type"

	KeyBackend = "backend" // local or bucket
	KeyBucket  = "bucket"
	KeyKey     = "key"
	KeyRegion  = "region"

	KeyReferenceTable = "reference_table"
	KeyReferenceID    = "reference_id"
	KeyUsageType      = "usage_type"

	KeySucceeded  = "succeeded"
	KeyFailed     = "failed"
	KeyErrorKind  = "error_kind"
	KeyError      = "error"
	KeyDurationMs = "duration_ms"
	KeyExpiry     = "expiry"
)
