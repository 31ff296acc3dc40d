package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
)

// RequestContext opens the server span of a request and attaches its
// LogContext. The request id is echoed back in the X-Request-Id header.
// Must run after chi's RequestID and RealIP.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteHost(r.RemoteAddr)
		ctx, span := telemetry.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				telemetry.ClientIP(ip),
			))
		defer span.End()

		reqID := middleware.GetReqID(ctx)
		if reqID != "" {
			w.Header().Set(middleware.RequestIDHeader, reqID)
		}
		lc := logger.NewLogContext(reqID, ip)
		if traceID := telemetry.TraceID(ctx); traceID != "" {
			lc = lc.WithTrace(traceID, telemetry.SpanID(ctx))
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logger.WithContext(ctx, lc)))

		code := statusOf(ww)
		span.SetAttributes(attribute.Int("http.status_code", code))
		if code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(code))
		}
	})
}

// RequestLogger writes one line per finished request. Server errors log at
// WARN, health checks at DEBUG.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := statusOf(ww)
		log := logger.InfoCtx
		switch {
		case code >= http.StatusInternalServerError:
			log = logger.WarnCtx
		case isHealthPath(r.URL.Path):
			log = logger.DebugCtx
		}
		log(r.Context(), "request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", code,
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}

// statusOf treats a handler that never wrote a header as 200.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// remoteHost strips the port from addr. RealIP may already have replaced
// it with a bare address.
func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
