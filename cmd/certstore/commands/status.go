package commands

import (
	"cmp"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/internal/cli/output"
	"github.com/certforge/certstore/internal/cli/timeutil"
	"github.com/certforge/certstore/pkg/apiclient"
)

const statusCheckTimeout = 2 * time.Second

var (
	statusOutput  string
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the local server is running and ready",
	Long: `Report on the certstore server of this machine.

The PID file tells whether a server process exists; the liveness and
readiness checks on the API port tell whether it is serving and whether its
storage backends answer.`,
	Example: `  certstore status
  certstore status --api-port 9080
  certstore status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/certstore/certstore.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8080, "API server port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

type serverState string

const (
	stateStopped   serverState = "stopped"
	stateUnhealthy serverState = "unhealthy"
	stateNotReady  serverState = "not ready"
	stateReady     serverState = "ready"
)

type localStatus struct {
	State     serverState `json:"state"`
	PID       int         `json:"pid,omitempty"`
	Address   string      `json:"address"`
	StartedAt string      `json:"started_at,omitempty"`
	Uptime    string      `json:"uptime,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

func (s localStatus) pairs() [][2]string {
	pid := "-"
	if s.PID != 0 {
		pid = fmt.Sprint(s.PID)
	}
	return [][2]string{
		{"State", string(s.State)},
		{"PID", pid},
		{"Address", s.Address},
		{"Started", cmp.Or(timeutil.FormatTime(s.StartedAt), "-")},
		{"Uptime", cmp.Or(timeutil.FormatUptime(s.Uptime), "-")},
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	client := apiclient.New(fmt.Sprintf("http://127.0.0.1:%d", statusAPIPort),
		apiclient.WithHTTPClient(&http.Client{Timeout: statusCheckTimeout}),
		apiclient.WithUserAgent("certstore/"+build.Version),
	)
	st := inspectLocal(client, cmp.Or(statusPidFile, GetDefaultPidFile()))

	w := cmd.OutOrStdout()
	p := output.NewPrinter(w, format, true)
	if format != output.FormatTable {
		return p.Print(st, nil)
	}
	if err := output.PrintPairs(w, st.pairs()); err != nil {
		return err
	}
	switch {
	case st.State == stateReady:
		p.Success("Server is running and ready")
	case st.Detail != "":
		p.Warning(st.Detail)
	case st.State == stateStopped:
		p.Warning("Server is not running")
	}
	return nil
}

// inspectLocal combines the PID file with the health checks. A server that
// answers is running even when its PID file is missing.
func inspectLocal(client *apiclient.Client, pidPath string) localStatus {
	st := localStatus{State: stateStopped, Address: client.BaseURL()}
	pid, alive := readPidFile(pidPath)
	if alive {
		st.PID = pid
	}

	live, err := client.Health()
	if err != nil {
		if alive {
			st.State = stateUnhealthy
			st.Detail = fmt.Sprintf("process %d exists but does not answer: %v", pid, err)
		}
		return st
	}
	st.StartedAt, st.Uptime = live.Data.StartedAt, live.Data.Uptime
	if !live.Healthy() {
		st.State, st.Detail = stateUnhealthy, live.Error
		return st
	}

	ready, err := client.Ready()
	switch {
	case err != nil:
		st.State, st.Detail = stateNotReady, err.Error()
	case !ready.Healthy():
		st.State, st.Detail = stateNotReady, ready.Error
	default:
		st.State = stateReady
	}
	return st
}
