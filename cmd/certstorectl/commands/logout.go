package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the token of the current context",
	Long: `Drop the token saved for the current context. The server URL stays, so
the next "certstorectl login" only asks for a token.`,
	Args: cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, err := cmdutil.OpenContexts()
		if err != nil {
			return err
		}
		name := store.GetCurrentContextName()
		if err := store.ClearCurrentContext(); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Logged out of %q", name))
		return nil
	},
}
