// Package commands implements the CLI commands of certstorectl.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	ctxcmd "github.com/certforge/certstore/cmd/certstorectl/commands/context"
	usagecmd "github.com/certforge/certstore/cmd/certstorectl/commands/usage"
	"github.com/certforge/certstore/internal/buildinfo"
	"github.com/certforge/certstore/internal/cli/completion"
)

var build = buildinfo.Unstamped

var rootCmd = &cobra.Command{
	Use:   "certstorectl",
	Short: "Manage the files of a certstore server",
	Long: `certstorectl talks to a certstore server over its REST API.

It browses, uploads, moves, protects and deletes the files used by
certificate templates, and shows which templates and elements use them.

Paths are virtual: "public/..." is served from the local directory tree,
every other top-level folder from the object storage bucket.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: bindGlobalFlags,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("server", "", "Server URL (overrides stored context)")
	f.String("token", "", "Bearer token (overrides stored context)")
	f.StringP("output", "o", "table", "Output format (table|json|yaml)")
	f.Bool("no-color", false, "Disable colored output")
	f.BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "files", Title: "File commands:"},
		&cobra.Group{ID: "session", Title: "Server and session commands:"},
	)
	for _, c := range []*cobra.Command{
		lsCmd, infoCmd, statsCmd, searchCmd, mkdirCmd, rmCmd, mvCmd, cpCmd,
		renameCmd, protectCmd, unprotectCmd, permsCmd, uploadCmd, uploadURLCmd, usagecmd.Cmd,
	} {
		c.GroupID = "files"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{loginCmd, logoutCmd, statusCmd, ctxcmd.Cmd} {
		c.GroupID = "session"
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(versionCmd, completion.NewCommand("certstorectl"))
}

func bindGlobalFlags(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	var err error
	g := cmdutil.Flags
	if g.ServerURL, err = f.GetString("server"); err != nil {
		return err
	}
	if g.Token, err = f.GetString("token"); err != nil {
		return err
	}
	if g.Output, err = f.GetString("output"); err != nil {
		return err
	}
	if g.NoColor, err = f.GetBool("no-color"); err != nil {
		return err
	}
	if g.Verbose, err = f.GetBool("verbose"); err != nil {
		return err
	}
	cmdutil.Out = cmd.OutOrStdout()
	cmdutil.UserAgent = "certstorectl/" + build.Version
	return nil
}

// Execute runs certstorectl reporting info as its version.
func Execute(info buildinfo.Info) error {
	build = info
	rootCmd.Version = info.Version
	return rootCmd.Execute()
}
