package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/internal/logger"
)

func TestRemoteHost(t *testing.T) {
	tests := map[string]string{
		"10.0.0.7:51234":     "10.0.0.7",
		"[2001:db8::1]:443":  "2001:db8::1",
		"2001:db8::1":        "2001:db8::1",
		"192.168.1.20":       "192.168.1.20",
		"[::1]":              "::1",
		"unix-socket-client": "unix-socket-client",
	}
	for in, want := range tests {
		assert.Equal(t, want, remoteHost(in), in)
	}
}

func TestRequestContext(t *testing.T) {
	var got *logger.LogContext
	h := middleware.RequestID(RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/storage/file?path=a.png", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set(middleware.RequestIDHeader, "cli-req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "cli-req-1", rec.Header().Get(middleware.RequestIDHeader))
	require.NotNil(t, got)
	assert.Equal(t, "cli-req-1", got.RequestID)
	assert.Equal(t, "10.0.0.7", got.ClientIP)
	assert.Empty(t, got.TraceID, "no tracer provider is installed")
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatusOf(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := middleware.NewWrapResponseWriter(rec, 1)
	assert.Equal(t, http.StatusOK, statusOf(ww))

	ww.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, statusOf(ww))
}

func TestIsHealthPath(t *testing.T) {
	assert.True(t, isHealthPath("/health"))
	assert.True(t, isHealthPath("/health/ready"))
	assert.False(t, isHealthPath("/healthz"))
	assert.False(t, isHealthPath("/api/v1/storage"))
}
