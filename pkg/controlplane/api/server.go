// Package api serves the certstore REST API.
package api

import (
	"fmt"
	"net"
	"net/http"

	"github.com/certforge/certstore/internal/controlplane/api/auth"
	"github.com/certforge/certstore/internal/httpserve"
	"github.com/certforge/certstore/pkg/storage/service"
)

// Server is the REST API listener. On shutdown, in-flight uploads and batch
// operations get time to finish.
type Server struct {
	*httpserve.Server

	config APIConfig
	auth   bool
}

// NewServer builds a stopped server for svc; Run serves it. svc may be nil,
// which leaves only the health routes answering.
func NewServer(config APIConfig, svc *service.Service) (*Server, error) {
	config.ApplyDefaults()

	tokens, err := tokenService(config)
	if err != nil {
		return nil, err
	}

	handler := NewRouter(svc, RouterOptions{
		JWT:            tokens,
		AdminOnlyACL:   config.Auth.AdminOnlyACL,
		RequestTimeout: config.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		Server: httpserve.New("API", httpServer, httpserve.DefaultShutdownTimeout),
		config: config,
		auth:   tokens != nil,
	}, nil
}

// tokenService returns nil when authentication is off.
func tokenService(config APIConfig) (*auth.JWTService, error) {
	if !config.Auth.Enabled {
		return nil, nil
	}
	secret := config.GetAuthSecret()
	if len(secret) < 32 {
		return nil, fmt.Errorf("auth secret must be at least 32 characters; set %s or server.auth.secret", EnvAuthSecret)
	}
	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: secret, Issuer: config.Auth.Issuer})
	if err != nil {
		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}
	return svc, nil
}

// AuthEnabled reports whether storage routes require a bearer token.
func (s *Server) AuthEnabled() bool {
	return s.auth
}

// Port is the bound port once listening, the configured one before.
func (s *Server) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return s.config.Port
}
