package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/pkg/config"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	Long: `Print the JSON schema of config.yaml.

Editors with YAML language server support (VS Code, IntelliJ, Neovim) use it
to complete and check keys such as storage.max_upload_size or
usage.store.

Examples:
  # Print to stdout
  certstore config schema

  # Write next to the config file
  certstore config schema -o ~/.config/certstore/config.schema.json`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runSchema(cmd *cobra.Command, args []string) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if schemaOutput == "" {
		_, err := fmt.Fprintln(out, string(schema))
		return err
	}

	if err := os.MkdirAll(filepath.Dir(schemaOutput), 0755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}
	if err := os.WriteFile(schemaOutput, schema, 0644); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	abs, err := filepath.Abs(schemaOutput)
	if err != nil {
		abs = schemaOutput
	}
	_, _ = fmt.Fprintf(out, "Schema written to %s\n", abs)
	_, _ = fmt.Fprintf(out, "Add this first line to config.yaml for editor completion:\n  # yaml-language-server: $schema=%s\n", abs)
	return nil
}
