package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/credentials"
)

var renameCmd = &cobra.Command{
	Use:     "rename <old> <new>",
	Short:   "Give a context a new name",
	Long:    `Login names a context after the server host; rename it to something shorter.`,
	Example: `  certstorectl context rename certs.example.com:8080 prod`,
	Args:    cobra.ExactArgs(2),
	RunE: withStore(func(store *credentials.Store, args []string) error {
		from, to := args[0], args[1]
		if err := store.RenameContext(from, to); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Context %q is now %q", from, to))
		return nil
	}),
}
