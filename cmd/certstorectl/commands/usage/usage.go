// Package usage implements the usage registry subcommands for certstorectl.
package usage

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/pkg/apiclient"
)

// Cmd is the usage subcommand.
var Cmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect and maintain file usage records",
	Long: `Usage records tie files to the templates and elements that reference
them. A referenced file cannot be deleted.

Subcommands:
  check       Check whether a file can be deleted
  list        List the records of a file
  register    Record that an entity uses a file
  deregister  Remove a record
  release     Remove every record held by an entity`,
}

func init() {
	Cmd.AddCommand(checkCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(registerCmd)
	Cmd.AddCommand(deregisterCmd)
	Cmd.AddCommand(releaseCmd)
}

// RecordList renders usage records as a table.
type RecordList []apiclient.UsageRecord

// Headers implements TableRenderer.
func (l RecordList) Headers() []string {
	return []string{"ID", "TABLE", "REFERENCE", "TYPE", "CREATED"}
}

// Rows implements TableRenderer.
func (l RecordList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{r.ID, r.ReferenceTable, r.ReferenceID, r.UsageType, cmdutil.FormatTime(r.Created)})
	}
	return rows
}
