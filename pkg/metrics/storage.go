package metrics

import (
	"errors"
	"time"
)

// StorageMetrics records storage subsystem activity. A nil StorageMetrics is
// valid and records nothing; use the package helpers instead of calling
// methods directly.
type StorageMetrics interface {
	// ObserveBackendOperation records one backend call.
	ObserveBackendOperation(backend, operation string, duration time.Duration, err error)

	// RecordBytes records bytes moved to ("in") or from ("out") a backend.
	RecordBytes(backend, direction string, n int64)

	// ObserveBulkOperation records the outcome of a batch.
	ObserveBulkOperation(operation string, succeeded, failed int, duration time.Duration)

	// ObserveUsageChange counts usage registry mutations ("register", "deregister").
	ObserveUsageChange(operation string, changed int)

	// ObserveSignedURL counts issued upload URLs per location ("local", "bucket").
	ObserveSignedURL(location string)
}

var newPrometheusStorageMetrics func() StorageMetrics

// RegisterStorageMetricsConstructor is called by package metrics/prometheus
// at init time.
func RegisterStorageMetricsConstructor(constructor func() StorageMetrics) {
	newPrometheusStorageMetrics = constructor
}

// NewStorageMetrics returns the Prometheus implementation, or nil when metrics
// are disabled or the prometheus package was not linked in.
func NewStorageMetrics() StorageMetrics {
	if !IsEnabled() || newPrometheusStorageMetrics == nil {
		return nil
	}
	return newPrometheusStorageMetrics()
}

// StatusLabel converts an error into a low-cardinality status label.
func StatusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var k interface{ StorageKind() string }
	if errors.As(err, &k) {
		return k.StorageKind()
	}
	return "error"
}

func ObserveBackendOperation(m StorageMetrics, backend, operation string, d time.Duration, err error) {
	if m != nil {
		m.ObserveBackendOperation(backend, operation, d, err)
	}
}

func RecordBytes(m StorageMetrics, backend, direction string, n int64) {
	if m != nil && n > 0 {
		m.RecordBytes(backend, direction, n)
	}
}

func ObserveBulkOperation(m StorageMetrics, operation string, succeeded, failed int, d time.Duration) {
	if m != nil {
		m.ObserveBulkOperation(operation, succeeded, failed, d)
	}
}

func ObserveUsageChange(m StorageMetrics, operation string, changed int) {
	if m != nil {
		m.ObserveUsageChange(operation, changed)
	}
}

func ObserveSignedURL(m StorageMetrics, location string) {
	if m != nil {
		m.ObserveSignedURL(location)
	}
}
