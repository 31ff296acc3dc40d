package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certforge/certstore/internal/httpserve"
)

const defaultMetricsPort = 9090

// ServerConfig configures the metrics listener.
type ServerConfig struct {
	Port int // default 9090
}

// Server exposes /metrics for Prometheus to scrape.
type Server struct {
	*httpserve.Server
}

// NewServer creates a stopped metrics server.
func NewServer(config ServerConfig) *Server {
	if config.Port <= 0 {
		config.Port = defaultMetricsPort
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return &Server{Server: httpserve.New("metrics", srv, 5*time.Second)}
}

func handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
