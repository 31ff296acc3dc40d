package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/storage"
)

// HealthCheckTimeout bounds one readiness check across backends and
// databases.
const HealthCheckTimeout = 5 * time.Second

// HealthChecker is implemented by the storage service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the unauthenticated health checks. /health answers as long
// as the process runs; /health/ready also checks storage.
type HealthHandler struct {
	checker HealthChecker
	started time.Time
}

// NewHealthHandler returns the health checks for checker. A nil checker is never ready.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker, started: time.Now()}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	up := time.Since(h.started)
	WriteJSONOK(w, healthyResponse(map[string]any{
		"service":    "certstore",
		"started_at": h.started.UTC().Format(time.RFC3339),
		"uptime":     up.Round(time.Second).String(),
		"uptime_sec": int64(up.Seconds()),
	}))
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("storage service not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	began := time.Now()
	if err := h.checker.HealthCheck(ctx); err != nil {
		logger.WarnCtx(r.Context(), "Readiness check failed", logger.KeyError, err)
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse(storage.MessageOf(err)))
		return
	}
	WriteJSONOK(w, healthyResponse(map[string]any{
		"latency": time.Since(began).String(),
	}))
}
