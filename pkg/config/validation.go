package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/controlplane/api"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msg := fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag())
				if fe.Param() != "" {
					msg += "=" + fe.Param()
				}
				msgs = append(msgs, msg)
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if s := cfg.Storage.SignedURL; s.DefaultExpiry > s.MaxExpiry {
		return fmt.Errorf("storage.signed_url: default_expiry %s exceeds max_expiry %s", s.DefaultExpiry, s.MaxExpiry)
	}

	if cfg.Usage.Store == UsageStorePostgres {
		if dsn, _ := cfg.Usage.Postgres["dsn"].(string); dsn == "" {
			return errors.New("usage.postgres.dsn is required for the postgres usage store")
		}
	}

	if p := cfg.Telemetry.Profiling; p.Enabled {
		valid := telemetry.ProfileTypeNames()
		for _, pt := range p.ProfileTypes {
			if !slices.Contains(valid, pt) {
				return fmt.Errorf("telemetry.profiling.profile_types: unknown type %q", pt)
			}
		}
	}

	if cfg.Server.Auth.Enabled && len(cfg.Server.GetAuthSecret()) < 32 {
		return fmt.Errorf("server.auth.secret must be at least 32 characters (or set %s)", api.EnvAuthSecret)
	}

	return nil
}
