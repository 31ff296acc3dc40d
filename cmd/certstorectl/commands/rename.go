package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
)

var renameCmd = &cobra.Command{
	Use:   "rename <path> <new-name>",
	Short: "Rename a file or folder in place",
	Long: `Rename an item without moving it. The new name must not contain "/".

Examples:
  certstorectl rename public/seals/gold.png gold-2024.png`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		res, err := client.Rename(args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to rename %q: %w", args[0], err)
		}
		return cmdutil.PrintMutation(res)
	},
}
