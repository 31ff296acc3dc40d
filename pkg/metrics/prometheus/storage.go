// Package prometheus implements the metrics interfaces with client_golang.
// Import it for side effects to enable Prometheus metrics.
package prometheus

import (
	"time"

	"github.com/certforge/certstore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterStorageMetricsConstructor(newStorageMetrics)
}

type storageMetrics struct {
	backendOps      *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	bytes           *prometheus.CounterVec
	bulkItems       *prometheus.CounterVec
	bulkDuration    *prometheus.HistogramVec
	usageChanges    *prometheus.CounterVec
	signedURLs      *prometheus.CounterVec
}

func newStorageMetrics() metrics.StorageMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)

	return &storageMetrics{
		backendOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certstore_backend_operations_total",
				Help: "Total number of storage backend operations by backend, operation and status",
			},
			[]string{"backend", "operation", "status"},
		),
		backendDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "certstore_backend_operation_duration_milliseconds",
				Help: "Duration of storage backend operations in milliseconds",
				Buckets: []float64{
					1,     // local metadata
					10,    // local I/O, bucket HEAD
					50,    // small objects
					100,   //
					500,   // larger objects
					1000,  // 1s
					5000,  // directory walks
					30000, // default timeout
				},
			},
			[]string{"backend", "operation"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certstore_backend_bytes_total",
				Help: "Bytes transferred to and from storage backends",
			},
			[]string{"backend", "direction"},
		),
		bulkItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certstore_bulk_items_total",
				Help: "Items processed by bulk operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		bulkDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "certstore_bulk_operation_duration_milliseconds",
				Help:    "Duration of bulk operations in milliseconds",
				Buckets: prometheus.ExponentialBuckets(5, 4, 8),
			},
			[]string{"operation"},
		),
		usageChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certstore_usage_changes_total",
				Help: "Usage records added or removed",
			},
			[]string{"operation"},
		),
		signedURLs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certstore_signed_upload_urls_total",
				Help: "Upload URLs issued by location",
			},
			[]string{"location"},
		),
	}
}

func (m *storageMetrics) ObserveBackendOperation(backend, operation string, d time.Duration, err error) {
	m.backendOps.WithLabelValues(backend, operation, metrics.StatusLabel(err)).Inc()
	m.backendDuration.WithLabelValues(backend, operation).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *storageMetrics) RecordBytes(backend, direction string, n int64) {
	m.bytes.WithLabelValues(backend, direction).Add(float64(n))
}

func (m *storageMetrics) ObserveBulkOperation(operation string, succeeded, failed int, d time.Duration) {
	m.bulkItems.WithLabelValues(operation, "success").Add(float64(succeeded))
	m.bulkItems.WithLabelValues(operation, "failure").Add(float64(failed))
	m.bulkDuration.WithLabelValues(operation).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *storageMetrics) ObserveUsageChange(operation string, changed int) {
	m.usageChanges.WithLabelValues(operation).Add(float64(changed))
}

func (m *storageMetrics) ObserveSignedURL(location string) {
	m.signedURLs.WithLabelValues(location).Inc()
}
