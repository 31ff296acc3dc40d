// Package httpserve runs an http.Server for the lifetime of a context.
package httpserve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/certforge/certstore/internal/logger"
)

// DefaultShutdownTimeout bounds the drain of in-flight requests.
const DefaultShutdownTimeout = 10 * time.Second

// Server wraps an http.Server with a context-driven lifecycle.
type Server struct {
	name            string
	srv             *http.Server
	shutdownTimeout time.Duration

	ready    chan struct{}
	stopOnce sync.Once
	stopErr  error

	mu   sync.Mutex
	addr net.Addr
}

// New wraps srv. name prefixes log lines and errors ("API", "metrics").
func New(name string, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		name:            name,
		srv:             srv,
		shutdownTimeout: shutdownTimeout,
		ready:           make(chan struct{}),
	}
}

// Run listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests. A cancelled ctx returns nil.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("%s server: %w", s.name, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)

	logger.Info(s.name+" server listening", "addr", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- s.srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", s.name, err)
	case <-ctx.Done():
	}

	// ctx is already done; the drain gets its own deadline.
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	return s.Shutdown(drainCtx)
}

// Shutdown stops accepting connections and waits for active requests until
// ctx ends. Later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("%s server shutdown: %w", s.name, err)
			logger.Error(s.name+" server shutdown failed", logger.KeyError, err)
			return
		}
		logger.Info(s.name + " server stopped")
	})
	return s.stopErr
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address, or nil before Run binds it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
