package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/internal/buildinfo"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the certstorectl version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if versionShort {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build.Version)
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "certstorectl %s\n%s\n", build, buildinfo.Platform())
		return err
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}
