package commands

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder",
	Long: `Create a folder. Missing parent folders are created too.

Examples:
  certstorectl mkdir public/seals
  certstorectl mkdir templates/2024/spring`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, name := splitPath(args[0])
		if name == "" {
			return fmt.Errorf("folder name is required")
		}

		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		res, err := client.CreateFolder(dir, name)
		if err != nil {
			return fmt.Errorf("failed to create folder %q: %w", args[0], err)
		}
		return cmdutil.PrintMutation(res)
	},
}

// splitPath splits a virtual path into its parent and last element.
func splitPath(p string) (dir, name string) {
	p = strings.Trim(p, "/")
	dir, name = path.Split(p)
	return strings.TrimSuffix(dir, "/"), name
}
