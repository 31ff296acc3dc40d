package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/output"
	"github.com/certforge/certstore/pkg/apiclient"
)

var (
	lsFetch  bool
	lsLimit  int
	lsOffset int
	lsSort   string
	lsDesc   bool
	lsType   string
	lsFilter string
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a folder",
	Long: `List the items directly inside a folder. Without a path the virtual
root is listed: "public" plus the top-level folders of the bucket.

Paging, sorting or filtering flags switch to the paged listing.

Examples:
  certstorectl ls
  certstorectl ls public/seals
  certstorectl ls templates --sort size --desc --limit 20
  certstorectl ls public --type image --filter logo`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsFetch, "fetch", false, "Recompute folder counts and sizes")
	lsCmd.Flags().IntVar(&lsLimit, "limit", 0, "Page size")
	lsCmd.Flags().IntVar(&lsOffset, "offset", 0, "Items to skip")
	lsCmd.Flags().StringVar(&lsSort, "sort", "", "Sort by name|size|lastModified|createdAt|type")
	lsCmd.Flags().BoolVar(&lsDesc, "desc", false, "Sort descending")
	lsCmd.Flags().StringVar(&lsType, "type", "", "Only files of this type (image|document|video|audio|archive|other)")
	lsCmd.Flags().StringVar(&lsFilter, "filter", "", "Only items whose name contains this text")
}

func runLs(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}

	if lsLimit > 0 || lsOffset > 0 || lsSort != "" || lsDesc || lsType != "" || lsFilter != "" {
		return listPage(client, dir)
	}

	var items cmdutil.ItemList
	if lsFetch {
		items, err = client.FetchChildren(dir)
	} else {
		items, err = client.Children(dir)
	}
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", displayPath(dir), err)
	}
	return cmdutil.PrintOutput(items, len(items) == 0, "Folder is empty.", items)
}

func listPage(client *apiclient.Client, dir string) error {
	req := apiclient.ListFilesRequest{
		Path:       dir,
		Limit:      lsLimit,
		Offset:     lsOffset,
		FileType:   lsType,
		SortBy:     lsSort,
		SearchTerm: lsFilter,
	}
	if lsDesc {
		req.SortDirection = "desc"
	}

	page, err := client.ListFiles(req)
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", displayPath(dir), err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintOutput(page, false, "", nil)
	}

	items := cmdutil.ItemList(page.Items)
	if err := cmdutil.PrintOutput(items, len(items) == 0, "No matching items.", items); err != nil {
		return err
	}
	if len(items) > 0 {
		_, _ = fmt.Fprintf(cmdutil.Out, "\nShowing %d-%d of %d", page.Offset+1, page.Offset+len(items), page.TotalCount)
		if page.HasMore {
			_, _ = fmt.Fprintf(cmdutil.Out, " (next: --offset %d)", page.Offset+len(items))
		}
		_, _ = fmt.Fprintln(cmdutil.Out)
	}
	return nil
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
