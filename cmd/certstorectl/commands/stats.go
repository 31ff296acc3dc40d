package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/output"
	"github.com/certforge/certstore/internal/cli/timeutil"
	"github.com/certforge/certstore/pkg/apiclient"
)

var statsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Show storage statistics",
	Long: `Summarize a subtree: file and folder counts, total size and the
breakdown by file type. Without a path the whole store is summarized.

Examples:
  certstorectl stats
  certstorectl stats public -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

// fileTypeTable renders the per-type breakdown.
func fileTypeTable(types []apiclient.FileTypeStats) *output.TableData {
	t := output.NewTableData("TYPE", "FILES", "SIZE")
	for _, ft := range types {
		t.AddRow(string(ft.FileType), strconv.FormatInt(ft.Count, 10), timeutil.FormatSize(ft.Size))
	}
	return t
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	p := ""
	if len(args) == 1 {
		p = args[0]
	}
	stats, err := client.Stats(p)
	if err != nil {
		return fmt.Errorf("failed to get stats for %q: %w", displayPath(p), err)
	}

	if err := cmdutil.PrintResource(stats, [][2]string{
		{"Path", displayPath(stats.Path)},
		{"Files", strconv.FormatInt(stats.TotalFiles, 10)},
		{"Folders", strconv.FormatInt(stats.TotalFolders, 10)},
		{"Total size", timeutil.FormatSize(stats.TotalSize)},
	}); err != nil {
		return err
	}

	format, _ := cmdutil.GetOutputFormatParsed()
	if format == output.FormatTable && len(stats.FileTypes) > 0 {
		_, _ = fmt.Fprintln(cmdutil.Out)
		return output.PrintTable(cmdutil.Out, fileTypeTable(stats.FileTypes))
	}
	return nil
}
