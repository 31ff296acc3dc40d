package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the certstore configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  certstore config validate

  # Validate specific config file
  certstore config validate --config /etc/certstore/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Database type:   %s\n", cfg.Database.Type)
	_, _ = fmt.Fprintf(out, "  Local backend:   %s\n", cfg.Storage.Local.Type)
	_, _ = fmt.Fprintf(out, "  Bucket backend:  %s\n", cfg.Storage.Bucket.Type)
	_, _ = fmt.Fprintf(out, "  Usage store:     %s\n", cfg.Usage.Store)
	_, _ = fmt.Fprintf(out, "  Public base URL: %s\n", cfg.Storage.PublicBaseURL)
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}

// configWarnings lists settings that are valid but likely unintended.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if !cfg.Server.Auth.Enabled {
		warnings = append(warnings, "API authentication disabled - any client can modify storage")
	}
	if cfg.Storage.SignedURL.Secret == "" {
		warnings = append(warnings, "No upload URL secret - local upload URLs will not survive a restart")
	}
	if cfg.Storage.Bucket.Type == config.BackendTypeMemory {
		warnings = append(warnings, "Bucket backend is in memory - bucket files are lost on restart")
	}
	if cfg.Usage.Store == config.UsageStoreMemory {
		warnings = append(warnings, "Usage store is in memory - usage records are lost on restart")
	}
	return warnings
}
