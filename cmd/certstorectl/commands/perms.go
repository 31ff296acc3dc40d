package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/pkg/apiclient"
	"github.com/certforge/certstore/pkg/storage"
)

var (
	permsReplace bool
	permsFlags   = map[string]*bool{}
)

// permFlagNames lists the permission flags in display order.
var permFlagNames = []string{
	"allow-uploads",
	"allow-create-subdirs",
	"allow-delete",
	"allow-delete-files",
	"allow-move",
	"allow-move-files",
}

var permsCmd = &cobra.Command{
	Use:   "perms <folder>",
	Short: "Update the permissions of a folder",
	Long: `Update what may happen inside a folder. Only the flags given are
changed; with --replace, flags not given are reset to allowed.

Examples:
  # Lock a folder of seals: no uploads, no deletes
  certstorectl perms public/seals --allow-uploads=false --allow-delete-files=false

  # Back to the defaults
  certstorectl perms public/seals --replace`,
	Args: cobra.ExactArgs(1),
	RunE: runPerms,
}

func init() {
	for _, name := range permFlagNames {
		v := new(bool)
		permsFlags[name] = v
		permsCmd.Flags().BoolVar(v, name, true, "Set the "+name+" permission")
	}
	permsCmd.Flags().BoolVar(&permsReplace, "replace", false, "Reset flags not given to allowed")
}

func runPerms(cmd *cobra.Command, args []string) error {
	var flags storage.PermissionFlags
	targets := map[string]**bool{
		"allow-uploads":        &flags.AllowUploads,
		"allow-create-subdirs": &flags.AllowCreateSubDirs,
		"allow-delete":         &flags.AllowDelete,
		"allow-delete-files":   &flags.AllowDeleteFiles,
		"allow-move":           &flags.AllowMove,
		"allow-move-files":     &flags.AllowMoveFiles,
	}

	changed := 0
	for _, name := range permFlagNames {
		if cmd.Flags().Changed(name) {
			*targets[name] = storage.Bool(*permsFlags[name])
			changed++
		}
	}
	if changed == 0 && !permsReplace {
		return fmt.Errorf("no permission flags given (see --help)")
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	res, err := client.UpdatePermissions(apiclient.PermissionsRequest{
		Path:        args[0],
		Permissions: flags,
		Replace:     permsReplace,
	})
	if err != nil {
		return fmt.Errorf("failed to update permissions of %q: %w", args[0], err)
	}
	return cmdutil.PrintMutation(res)
}
