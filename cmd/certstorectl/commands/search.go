package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/pkg/apiclient"
)

var (
	searchFolder string
	searchType   string
	searchLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search files by name",
	Long: `Find files whose name contains the search term, case-insensitively,
anywhere below a folder.

Examples:
  certstorectl search logo
  certstorectl search seal --folder public --type image --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		found, err := client.SearchFiles(apiclient.SearchRequest{
			SearchTerm: args[0],
			Folder:     searchFolder,
			FileType:   searchType,
			Limit:      searchLimit,
		})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		items := cmdutil.ItemList(found)
		return cmdutil.PrintOutput(items, len(items) == 0, fmt.Sprintf("No files matching %q.", args[0]), items)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "Folder to search below (default: everywhere)")
	searchCmd.Flags().StringVar(&searchType, "type", "", "Only files of this type")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum results")
}
