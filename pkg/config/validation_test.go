package config

import (
	"strings"
	"testing"
	"time"

	"github.com/certforge/certstore/pkg/controlplane/api"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"api port too large", func(c *Config) { c.Server.Port = 70000 }, "max"},
		{"api port negative", func(c *Config) { c.Server.Port = -1 }, "min"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "lte"},
		{"public base url", func(c *Config) { c.Storage.PublicBaseURL = "not a url" }, "url"},
		{"local backend type", func(c *Config) { c.Storage.Local.Type = "ftp" }, "oneof"},
		{"usage store type", func(c *Config) { c.Usage.Store = "redis" }, "oneof"},
		{"bulk concurrency", func(c *Config) { c.Storage.BulkConcurrency = 1000 }, "lte"},
		{"short upload secret", func(c *Config) { c.Storage.SignedURL.Secret = "short" }, "min"},
		{"database type", func(c *Config) { c.Database.Type = "mysql" }, "oneof"},
		{"expiry order", func(c *Config) {
			c.Storage.SignedURL.DefaultExpiry = 2 * time.Hour
			c.Storage.SignedURL.MaxExpiry = time.Hour
		}, "exceeds max_expiry"},
		{"postgres usage store without dsn", func(c *Config) { c.Usage.Store = UsageStorePostgres }, "dsn"},
		{"unknown profile type", func(c *Config) {
			c.Telemetry.Profiling.Enabled = true
			c.Telemetry.Profiling.ProfileTypes = []string{"cpu", "heap"}
		}, `unknown type "heap"`},
		{"auth without secret", func(c *Config) { c.Server.Auth.Enabled = true }, "32 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(api.EnvAuthSecret, "")
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_AuthSecretFromEnvironment(t *testing.T) {
	t.Setenv(api.EnvAuthSecret, strings.Repeat("s", 32))

	cfg := GetDefaultConfig()
	cfg.Server.Auth.Enabled = true
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected env secret to satisfy validation, got: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("Validation failed for level %q: %v", level, err)
		}
		// Validation does not normalize
		if cfg.Logging.Level != level {
			t.Errorf("Expected level to remain %q after validation, got %q", level, cfg.Logging.Level)
		}
	}

	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected ApplyDefaults to normalize 'info' to 'INFO', got %q", cfg.Logging.Level)
	}
}
