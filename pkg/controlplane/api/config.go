package api

import (
	"os"
	"time"

	"github.com/certforge/certstore/internal/logger"
)

// readHeaderTimeout bounds slow-header clients independently of uploads.
const readHeaderTimeout = 10 * time.Second

// EnvAuthSecret is the name of the environment variable holding the bearer
// token signing secret.
const EnvAuthSecret = "CERTSTORE_API_AUTH_SECRET"

// APIConfig configures the REST API HTTP server.
//
// The API server exposes the storage operations, the local upload endpoint,
// public file serving and health checks.
type APIConfig struct {
	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Uploads must fit in it.
	// Default: 60s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 60s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout cancels the context of requests that run longer.
	// Default: 60s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// Auth configures bearer token authentication of the storage routes.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	// Enabled requires a valid token on every storage route. Health checks,
	// public files and signed uploads stay unauthenticated.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Secret is the HMAC key tokens are signed with. Must be at least 32
	// characters long. The CERTSTORE_API_AUTH_SECRET environment variable
	// takes precedence over the config file.
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`

	// Issuer, when set, must match the iss claim of presented tokens.
	Issuer string `mapstructure:"issuer" yaml:"issuer,omitempty"`

	// AdminOnlyACL restricts protection and permission changes to tokens
	// with the admin role.
	AdminOnlyACL bool `mapstructure:"admin_only_acl" yaml:"admin_only_acl"`
}

// ApplyDefaults fills unset timeouts and the port.
func (c *APIConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
}

// GetAuthSecret returns the token secret, preferring the environment variable.
// Logs a warning if the environment variable overrides a config file value.
func (c *APIConfig) GetAuthSecret() string {
	envSecret := os.Getenv(EnvAuthSecret)
	if envSecret != "" {
		if c.Auth.Secret != "" && c.Auth.Secret != envSecret {
			logger.Warn("Auth secret from environment variable overrides config file value",
				"env_var", EnvAuthSecret)
		}
		return envSecret
	}
	return c.Auth.Secret
}
