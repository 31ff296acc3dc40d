package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/certforge/certstore/pkg/metrics"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageMetrics(t *testing.T) {
	metrics.InitRegistry()
	m := metrics.NewStorageMetrics()
	require.NotNil(t, m)
	sm := m.(*storageMetrics)

	metrics.ObserveBackendOperation(m, "bucket", "stat", 3*time.Millisecond, nil)
	metrics.ObserveBackendOperation(m, "bucket", "stat", time.Millisecond, storage.NewNotFoundError("private/x"))
	metrics.ObserveBackendOperation(m, "local", "write", time.Millisecond, errors.New("disk"))

	assert.Equal(t, 1.0, testutil.ToFloat64(sm.backendOps.WithLabelValues("bucket", "stat", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.backendOps.WithLabelValues("bucket", "stat", "NotFound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.backendOps.WithLabelValues("local", "write", "error")))

	metrics.ObserveBulkOperation(m, "delete", 2, 1, 10*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(sm.bulkItems.WithLabelValues("delete", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.bulkItems.WithLabelValues("delete", "failure")))

	metrics.RecordBytes(m, "local", "in", 0)
	metrics.RecordBytes(m, "local", "in", 512)
	assert.Equal(t, 512.0, testutil.ToFloat64(sm.bytes.WithLabelValues("local", "in")))

	metrics.ObserveUsageChange(m, "register", 1)
	metrics.ObserveSignedURL(m, "bucket")
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.usageChanges.WithLabelValues("register")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.signedURLs.WithLabelValues("bucket")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m metrics.StorageMetrics
	assert.NotPanics(t, func() {
		metrics.ObserveBackendOperation(m, "local", "list", time.Millisecond, nil)
		metrics.RecordBytes(m, "local", "out", 10)
		metrics.ObserveBulkOperation(m, "copy", 1, 0, time.Millisecond)
		metrics.ObserveUsageChange(m, "deregister", 0)
		metrics.ObserveSignedURL(m, "local")
	})
}
