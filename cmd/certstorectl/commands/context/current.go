package context

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/credentials"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the context commands run against",
	Args:  cobra.NoArgs,
	RunE: withStore(func(store *credentials.Store, _ []string) error {
		ctx, err := store.GetCurrentContext()
		if err != nil {
			return credentials.ErrNotLoggedIn
		}
		info := describe(store.GetCurrentContextName(), ctx, true)
		return cmdutil.PrintResource(info, info.pairs())
	}),
}
