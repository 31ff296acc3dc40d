package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/pkg/apiclient"
	"github.com/certforge/certstore/pkg/storage"
)

var protectChildren bool

var protectCmd = &cobra.Command{
	Use:   "protect <path>",
	Short: "Protect an item against deletion and moves",
	Long: `Mark an item as protected. Protected items cannot be deleted, moved or
renamed. With --children, everything below a folder is protected too.

Examples:
  certstorectl protect public/seals/gold.png
  certstorectl protect public/seals --children`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := apiclient.ProtectionRequest{Path: args[0], IsProtected: true}
		if cmd.Flags().Changed("children") {
			req.ProtectChildren = storage.Bool(protectChildren)
		}
		return runProtection(req)
	},
}

var unprotectCmd = &cobra.Command{
	Use:   "unprotect <path>",
	Short: "Remove protection from an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProtection(apiclient.ProtectionRequest{
			Path:            args[0],
			IsProtected:     false,
			ProtectChildren: storage.Bool(false),
		})
	},
}

func init() {
	protectCmd.Flags().BoolVar(&protectChildren, "children", false, "Also protect everything below a folder")
}

func runProtection(req apiclient.ProtectionRequest) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	res, err := client.SetProtection(req)
	if err != nil {
		return fmt.Errorf("failed to update protection of %q: %w", req.Path, err)
	}
	return cmdutil.PrintMutation(res)
}
