package commands

import (
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the liveness and readiness of the connected certstore server.

Readiness includes a round trip to the storage backends.

Examples:
  certstorectl status
  certstorectl status -o json`,
	RunE: runStatus,
}

// ServerStatus represents the server status for display.
type ServerStatus struct {
	Server    string `json:"server" yaml:"server"`
	Status    string `json:"status" yaml:"status"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Ready     bool   `json:"ready" yaml:"ready"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Latency   string `json:"latency,omitempty" yaml:"latency,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	status := ServerStatus{Server: client.BaseURL(), Status: "unreachable"}

	live, err := client.Health()
	if err != nil {
		status.Error = err.Error()
		return printStatus(status)
	}
	status.Healthy = live.Healthy()
	status.Status = live.Status
	status.Service = live.Data.Service
	status.StartedAt = live.Data.StartedAt
	status.Uptime = live.Data.Uptime

	ready, err := client.Ready()
	switch {
	case err != nil:
		status.Error = err.Error()
	case !ready.Healthy():
		status.Status = "not ready"
		status.Error = ready.Error
	default:
		status.Ready = true
		status.Latency = ready.Data.Latency
	}
	return printStatus(status)
}

func printStatus(s ServerStatus) error {
	return cmdutil.PrintResource(s, [][2]string{
		{"Server", s.Server},
		{"Status", s.Status},
		{"Healthy", cmdutil.BoolToYesNo(s.Healthy)},
		{"Ready", cmdutil.BoolToYesNo(s.Ready)},
		{"Service", cmdutil.EmptyOr(s.Service, "-")},
		{"Started", cmdutil.EmptyOr(s.StartedAt, "-")},
		{"Uptime", cmdutil.EmptyOr(s.Uptime, "-")},
		{"Backend latency", cmdutil.EmptyOr(s.Latency, "-")},
		{"Error", cmdutil.EmptyOr(s.Error, "-")},
	})
}
