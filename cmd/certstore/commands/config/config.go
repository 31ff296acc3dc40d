// Package config holds the "certstore config" subcommands.
package config

import "github.com/spf13/cobra"

// Cmd groups the commands that inspect or edit a configuration file. "certstore
// init" writes one.
var Cmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg"},
	Short:   "Inspect and edit the configuration",
	Args:    cobra.NoArgs,
}

func init() {
	Cmd.AddCommand(validateCmd, showCmd, schemaCmd, editCmd)
}
