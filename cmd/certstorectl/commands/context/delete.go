package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/credentials"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Forget a context and its token",
	Args:    cobra.ExactArgs(1),
	RunE: withStore(func(store *credentials.Store, args []string) error {
		name := args[0]
		if _, err := store.GetContext(name); err != nil {
			return err
		}
		return cmdutil.RunWithConfirmation(fmt.Sprintf("Delete context %q", name), deleteForce, func() error {
			if err := store.DeleteContext(name); err != nil {
				return err
			}
			cmdutil.PrintSuccess(fmt.Sprintf("Deleted context %q", name))
			return nil
		})
	}),
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")
}
