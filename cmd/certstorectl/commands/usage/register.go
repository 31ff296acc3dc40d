package usage

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/output"
	"github.com/certforge/certstore/pkg/apiclient"
)

var (
	refTable string
	refID    string
	refType  string
)

var registerCmd = &cobra.Command{
	Use:   "register <file>",
	Short: "Record that an entity uses a file",
	Long: `Record that an entity uses a file. Registering the same file, table and
reference again returns the existing record.

Examples:
  certstorectl usage register public/seals/gold.png --table templates --ref 42 --type background`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		res, err := client.RegisterUsage(apiclient.RegisterUsageRequest{
			FilePath:       args[0],
			ReferenceTable: refTable,
			ReferenceID:    refID,
			UsageType:      refType,
		})
		if err != nil {
			return fmt.Errorf("failed to register usage of %q: %w", args[0], err)
		}
		return printResult(res)
	},
}

var deregisterCmd = &cobra.Command{
	Use:   "deregister <file>",
	Short: "Remove a usage record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		res, err := client.DeregisterUsage(apiclient.DeregisterUsageRequest{
			FilePath:       args[0],
			ReferenceTable: refTable,
			ReferenceID:    refID,
		})
		if err != nil {
			return fmt.Errorf("failed to deregister usage of %q: %w", args[0], err)
		}
		return printResult(res)
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Remove every record held by an entity",
	Long: `Remove every usage record held by one entity, typically after the
entity was deleted.

Examples:
  certstorectl usage release --table templates --ref 42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		res, err := client.DeregisterReference(refTable, refID)
		if err != nil {
			return fmt.Errorf("failed to release %s/%s: %w", refTable, refID, err)
		}
		return printResult(res)
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, deregisterCmd, releaseCmd} {
		c.Flags().StringVar(&refTable, "table", "", "Table of the referencing entity")
		c.Flags().StringVar(&refID, "ref", "", "ID of the referencing entity")
		_ = c.MarkFlagRequired("table")
		_ = c.MarkFlagRequired("ref")
	}
	registerCmd.Flags().StringVar(&refType, "type", "", "How the file is used (e.g. background, image)")
	_ = registerCmd.MarkFlagRequired("type")
}

func printResult(res *apiclient.UsageResult) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintOutput(res, false, "", nil)
	}
	cmdutil.PrintSuccess(res.Message)
	if res.Usage != nil && cmdutil.IsVerbose() {
		return cmdutil.PrintOutput(RecordList{*res.Usage}, false, "", RecordList{*res.Usage})
	}
	return nil
}
