package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/credentials"
	"github.com/certforge/certstore/internal/cli/prompt"
)

var useCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Switch the current context",
	Long:  `Switch the current context. Without a name, pick one from a list.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(store *credentials.Store, args []string) error {
		name, err := chooseContext(store, args)
		if err != nil {
			return err
		}
		if err := store.UseContext(name); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Switched to context %q", name))
		return nil
	}),
}

func chooseContext(store *credentials.Store, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	names := store.ListContexts()
	if len(names) == 0 {
		return "", errors.New("no contexts saved yet; run 'certstorectl login' first")
	}
	name, err := prompt.SelectString("Select context", names)
	if err != nil {
		return "", cmdutil.HandleAbort(err)
	}
	return name, nil
}
