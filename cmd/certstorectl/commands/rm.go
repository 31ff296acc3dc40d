package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
)

var rmYes bool

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Delete files or folders",
	Long: `Delete one or more items. Folders are deleted with their contents.

Items that are protected, referenced by a template or inside a folder that
forbids deletion are skipped and reported; the others are deleted.

Examples:
  certstorectl rm public/seals/old.png
  certstorectl rm -y templates/draft.pdf templates/tmp`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		label := fmt.Sprintf("Delete %q", args[0])
		if len(args) > 1 {
			label = fmt.Sprintf("Delete %d items", len(args))
		}
		return cmdutil.RunWithConfirmation(label, rmYes, func() error {
			res, err := client.DeleteItems(args)
			if err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			return cmdutil.PrintBulk("Deleted", res)
		})
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "Skip confirmation")
}
