// Package commands implements the CLI commands of the certstore server.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstore/commands/config"
	"github.com/certforge/certstore/internal/buildinfo"
	"github.com/certforge/certstore/internal/cli/completion"
)

// build is replaced by Execute with the binary's stamped version.
var build = buildinfo.Unstamped

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "certstore",
	Short: "File storage for certificate templates",
	Long: `certstore serves the images, fonts and documents used by certificate
templates. Files live in a local directory tree and an object storage bucket
behind one REST API. Items can be protected, directories carry permissions,
and a usage registry keeps referenced files from being deleted.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default $XDG_CONFIG_HOME/certstore/config.yaml)")

	rootCmd.AddCommand(startCmd, stopCmd, initCmd, statusCmd, tokenCmd, versionCmd, config.Cmd,
		completion.NewCommand("certstore"))
}

// Execute runs the command line as the given build.
func Execute(info buildinfo.Info) error {
	build = info
	rootCmd.Version = info.Version
	return rootCmd.Execute()
}

// GetConfigFile returns the --config flag.
func GetConfigFile() string {
	return cfgFile
}
