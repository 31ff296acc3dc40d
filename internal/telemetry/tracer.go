package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for storage operations.
const (
	AttrClientIP = "client.ip"
	AttrActor    = "user.name"

	AttrOperation = "storage.operation"
	AttrPath      = "storage.path"
	AttrTarget    = "storage.target"
	AttrLocation  = "storage.location" // local or bucket
	AttrSize      = "storage.size"
	AttrItems     = "storage.items"
	AttrSucceeded = "storage.succeeded"
	AttrFailed    = "storage.failed"
	AttrErrorKind = "storage.error_kind"

	AttrCacheHit = "cache.hit"

	AttrUsageTable = "usage.reference_table"
	AttrUsageRef   = "usage.reference_id"
)

// Span names.
const (
	SpanStorageList    = "storage.list"
	SpanStorageUpload  = "storage.upload"
	SpanStorageDelete  = "storage.delete"
	SpanStorageMove    = "storage.move"
	SpanStorageCopy    = "storage.copy"
	SpanStorageMkdir   = "storage.mkdir"
	SpanStorageInfo    = "storage.info"
	SpanStorageSearch  = "storage.search"
	SpanStorageStats   = "storage.stats"
	SpanStoragePresign = "storage.presign"

	SpanBulkItem = "bulk.item"

	SpanUsageRegister   = "usage.register"
	SpanUsageDeregister = "usage.deregister"
	SpanUsageCheck      = "usage.check"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// Actor returns an attribute for the acting user.
func Actor(name string) attribute.KeyValue {
	return attribute.String(AttrActor, name)
}

// Operation returns an attribute for the storage operation name.
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Path returns an attribute for a canonical storage path.
func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// Target returns an attribute for the destination path of a move or copy.
func Target(p string) attribute.KeyValue {
	return attribute.String(AttrTarget, p)
}

// Location returns an attribute for the backend location of a path.
func Location(loc string) attribute.KeyValue {
	return attribute.String(AttrLocation, loc)
}

// Size returns an attribute for a byte size.
func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

// Items returns an attribute for the number of items in a bulk request.
func Items(n int) attribute.KeyValue {
	return attribute.Int(AttrItems, n)
}

// Outcome returns the succeeded/failed counters of a bulk operation.
func Outcome(succeeded, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrSucceeded, succeeded),
		attribute.Int(AttrFailed, failed),
	}
}

// ErrorKind returns an attribute for a storage error kind.
func ErrorKind(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}

// CacheHit returns an attribute recording whether cached aggregates served
// the request.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// UsageReference returns the attributes identifying a usage reference.
func UsageReference(table, id string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrUsageTable, table),
		attribute.String(AttrUsageRef, id),
	}
}

// StartStorageSpan starts a span for a storage operation on a path.
func StartStorageSpan(ctx context.Context, name, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	if path != "" {
		allAttrs = append(allAttrs, Path(path))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartUsageSpan starts a span for a usage registry operation.
func StartUsageSpan(ctx context.Context, name, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartStorageSpan(ctx, name, path, attrs...)
}
