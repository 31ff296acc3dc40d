// Package context implements "certstorectl context", which manages the saved
// server contexts.
package context

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/credentials"
)

// Cmd groups the context subcommands.
var Cmd = &cobra.Command{
	Use:     "context",
	Aliases: []string{"ctx"},
	Short:   "Manage saved certstore servers",
	Long: `Each successful login saves a context: a server URL and the token used
against it. Commands run against the current context unless --server and
--token are given.

Contexts live in $XDG_CONFIG_HOME/certstorectl/config.json, or in the file
named by CERTSTORECTL_CONFIG.`,
}

func init() {
	Cmd.AddCommand(listCmd, useCmd, currentCmd, renameCmd, deleteCmd)
}

// withStore opens the contexts file before running a subcommand.
func withStore(run func(store *credentials.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		store, err := cmdutil.OpenContexts()
		if err != nil {
			return err
		}
		return run(store, args)
	}
}
