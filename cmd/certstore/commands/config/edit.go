package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/pkg/config"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the configuration in an editor",
	Long: `Open the configuration file in $VISUAL or $EDITOR (vi when neither is
set), then validate the result.

Examples:
  # Edit the default config
  certstore config edit

  # Edit a specific file
  certstore config edit --config /etc/certstore/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	path := cmp.Or(configPath, config.GetDefaultConfigPath())

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("configuration file not found: %s\n\nCreate it first with:\n  certstore init --config %s", path, path)
	}

	editor := cmp.Or(os.Getenv("VISUAL"), os.Getenv("EDITOR"), "vi")
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Editing %s with %s\n", path, editor)

	run := exec.CommandContext(cmd.Context(), editor, path)
	run.Stdin = os.Stdin
	run.Stdout = cmd.OutOrStdout()
	run.Stderr = cmd.ErrOrStderr()
	if err := run.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	if _, err := config.MustLoad(path); err != nil {
		return fmt.Errorf("edited configuration is invalid: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Validation: OK")
	return nil
}
