package config

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/internal/cli/output"
	"github.com/certforge/certstore/pkg/config"
)

var (
	showOutput  string
	showSecrets bool
)

const redacted = "<redacted>"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective certstore configuration: the file, environment
overrides and defaults combined. Secrets are redacted unless --show-secrets
is given.

Examples:
  # Show default config as YAML
  certstore config show

  # Show as JSON
  certstore config show --output json

  # Show specific config file
  certstore config show --config /etc/certstore/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secrets in clear text")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if !showSecrets {
		redactSecrets(cfg)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}

func redactSecrets(cfg *config.Config) {
	if cfg.Server.Auth.Secret != "" {
		cfg.Server.Auth.Secret = redacted
	}
	if cfg.Storage.SignedURL.Secret != "" {
		cfg.Storage.SignedURL.Secret = redacted
	}
	if cfg.Database.Postgres.Password != "" {
		cfg.Database.Postgres.Password = redacted
	}
	for _, key := range []string{"secret_access_key", "access_key_id"} {
		if _, ok := cfg.Storage.Local.S3[key]; ok {
			cfg.Storage.Local.S3[key] = redacted
		}
		if _, ok := cfg.Storage.Bucket.S3[key]; ok {
			cfg.Storage.Bucket.S3[key] = redacted
		}
	}
	if _, ok := cfg.Usage.Postgres["dsn"]; ok {
		cfg.Usage.Postgres["dsn"] = redacted
	}
}
