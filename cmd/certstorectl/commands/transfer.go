package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
)

var mvCmd = &cobra.Command{
	Use:   "mv <source>... <destination>",
	Short: "Move items into a folder",
	Long: `Move one or more items into the destination folder. Items may move
between the local tree and the bucket; usage records follow them.

Examples:
  certstorectl mv public/draft.png public/seals
  certstorectl mv templates/a.pdf templates/b.pdf archive/2023`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(args, "Moved", "move")
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <source>... <destination>",
	Short: "Copy items into a folder",
	Long: `Copy one or more items into the destination folder. Folders are copied
recursively. Copies are never protected, even when the source is.

Examples:
  certstorectl cp public/seals/gold.png templates/2024
  certstorectl cp public/seals archive`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(args, "Copied", "copy")
	},
}

func runTransfer(args []string, verb, op string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	items, dest := args[:len(args)-1], args[len(args)-1]
	if op == "move" {
		res, err := client.MoveItems(items, dest)
		if err != nil {
			return fmt.Errorf("%s failed: %w", op, err)
		}
		return cmdutil.PrintBulk(verb, res)
	}

	res, err := client.CopyItems(items, dest)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return cmdutil.PrintBulk(verb, res)
}
