package usage

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/output"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check whether a file can be deleted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		check, err := client.CheckUsage(args[0])
		if err != nil {
			return fmt.Errorf("failed to check usage of %q: %w", args[0], err)
		}

		if err := cmdutil.PrintResource(check, [][2]string{
			{"File", check.FilePath},
			{"In use", cmdutil.BoolToYesNo(check.IsInUse)},
			{"Can delete", cmdutil.BoolToYesNo(check.CanDelete)},
			{"Reason", cmdutil.EmptyOr(check.DeleteBlockReason, "-")},
		}); err != nil {
			return err
		}

		format, _ := cmdutil.GetOutputFormatParsed()
		if format == output.FormatTable && len(check.Usages) > 0 {
			_, _ = fmt.Fprintln(cmdutil.Out)
			return output.PrintTable(cmdutil.Out, RecordList(check.Usages))
		}
		return nil
	},
}
