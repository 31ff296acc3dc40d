package commands

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
	stopWait    time.Duration
)

// errProcessDone is returned by stopProcess when the server already exited.
var errProcessDone = errors.New("process already finished")

const stopPollInterval = 100 * time.Millisecond

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running certstore server",
	Long: `Stop a certstore server started with "certstore start".

The server is found through its PID file. By default it receives SIGTERM
and drains in-flight requests before exiting; --force kills it at once.

Examples:
  # Stop the server and wait for it to exit
  certstore stop

  # Use a custom PID file
  certstore stop --pid-file /run/certstore.pid

  # Kill without draining
  certstore stop --force`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/certstore/certstore.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill immediately instead of shutting down gracefully")
	stopCmd.Flags().DurationVar(&stopWait, "wait", 30*time.Second, "How long to wait for the server to exit (0 to return at once)")
}

func runStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	pidPath := cmp.Or(stopPidFile, GetDefaultPidFile())

	pid, alive := readPidFile(pidPath)
	if pid == 0 {
		return fmt.Errorf("no server PID found in %s; is the server running?", pidPath)
	}
	if !alive {
		_ = os.Remove(pidPath)
		_, _ = fmt.Fprintf(out, "Server (pid %d) is not running; removed stale PID file\n", pid)
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	err = stopProcess(proc, stopForce)
	if errors.Is(err, errProcessDone) {
		_ = os.Remove(pidPath)
		_, _ = fmt.Fprintln(out, "Server already stopped")
		return nil
	}
	if err != nil {
		return err
	}

	if stopWait <= 0 {
		_, _ = fmt.Fprintf(out, "Stop signal sent to pid %d\n", pid)
		return nil
	}
	if !waitForExit(pidPath, pid, stopWait) {
		return fmt.Errorf("server (pid %d) still running after %s; retry with --force", pid, stopWait)
	}
	// A killed server cannot remove its own PID file.
	_ = os.Remove(pidPath)
	_, _ = fmt.Fprintf(out, "Server (pid %d) stopped\n", pid)
	return nil
}

// waitForExit polls until the process recorded at pidPath is gone.
func waitForExit(pidPath string, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		current, alive := readPidFile(pidPath)
		if !alive || current != pid {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(stopPollInterval)
	}
}
