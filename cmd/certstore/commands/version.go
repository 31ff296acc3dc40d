package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/internal/buildinfo"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if versionShort {
			_, _ = fmt.Fprintln(out, build.Version)
			return
		}
		_, _ = fmt.Fprintf(out, "certstore %s\n%s\n", build, buildinfo.Platform())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}
