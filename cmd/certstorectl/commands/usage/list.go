package usage

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
)

var listCmd = &cobra.Command{
	Use:     "list <file>",
	Aliases: []string{"ls"},
	Short:   "List the usage records of a file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		records, err := client.FileUsage(args[0])
		if err != nil {
			return fmt.Errorf("failed to list usage of %q: %w", args[0], err)
		}
		list := RecordList(records)
		return cmdutil.PrintOutput(list, len(list) == 0, fmt.Sprintf("%s is not used.", args[0]), list)
	},
}
