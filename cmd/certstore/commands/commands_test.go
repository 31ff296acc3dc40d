package commands

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/internal/buildinfo"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitValidateAndToken(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created at: "+path)

	_, err = execute(t, "init", "--config", path)
	require.Error(t, err, "init must not overwrite without --force")
	assert.Contains(t, err.Error(), "already exists")

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "Usage store:     database")
	assert.NotContains(t, out, "authentication disabled", "init enables auth")

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "<redacted>")

	out, err = execute(t, "token", "--config", path, "--user", "alice", "--role", "admin")
	require.NoError(t, err)
	token := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	assert.Len(t, strings.Split(token, "."), 3, "expected a JWT, got %q", token)
}

func TestToken_InvalidRole(t *testing.T) {
	_, err := execute(t, "token", "--user", "bob", "--role", "root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
	tokenRole = "user"
}

func TestVersion_Short(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, build.Version+"\n", out)
	versionShort = false
}

func TestGetDefaultPidFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "certstore", "certstore.pid"), GetDefaultPidFile())
}

func TestWritePidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "certstore.pid")
	require.NoError(t, writePidFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(raw)))
}

func TestVersion_Long(t *testing.T) {
	build = buildinfo.Info{Version: "1.4.0", Commit: "0123456789ab", Date: "2026-01-02T03:04:05Z"}
	t.Cleanup(func() { build = buildinfo.Unstamped })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "certstore 1.4.0 (0123456789ab, built 2026-01-02T03:04:05Z)\n"), out)
}

// healthServer answers the liveness and readiness checks of a running server.
func healthServer(t *testing.T, ready bool) int {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","data":{"service":"certstore","started_at":"2026-01-02T03:04:05Z","uptime":"90s"}}`))
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"bucket backend unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy","data":{"latency":"3ms"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func statusJSON(t *testing.T, port int, pidFile string) localStatus {
	t.Helper()
	out, err := execute(t, "status", "--api-port", strconv.Itoa(port), "--pid-file", pidFile, "-o", "json")
	require.NoError(t, err)
	var st localStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st), out)
	return st
}

func TestStatus(t *testing.T) {
	missingPid := filepath.Join(t.TempDir(), "none.pid")

	t.Run("Ready", func(t *testing.T) {
		st := statusJSON(t, healthServer(t, true), missingPid)
		assert.Equal(t, stateReady, st.State)
		assert.Equal(t, "90s", st.Uptime)
		assert.Zero(t, st.PID)
	})

	t.Run("NotReady", func(t *testing.T) {
		st := statusJSON(t, healthServer(t, false), missingPid)
		assert.Equal(t, stateNotReady, st.State)
		assert.Equal(t, "bucket backend unavailable", st.Detail)
	})

	t.Run("Stopped", func(t *testing.T) {
		st := statusJSON(t, closedPort(t), missingPid)
		assert.Equal(t, stateStopped, st.State)
		assert.Empty(t, st.Detail)
	})

	t.Run("ProcessWithoutAPI", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "certstore.pid")
		require.NoError(t, writePidFile(pidFile))

		st := statusJSON(t, closedPort(t), pidFile)
		assert.Equal(t, stateUnhealthy, st.State)
		assert.Equal(t, os.Getpid(), st.PID)
		assert.Contains(t, st.Detail, "does not answer")
	})

	t.Run("Table", func(t *testing.T) {
		out, err := execute(t, "status", "--api-port", strconv.Itoa(healthServer(t, true)), "--pid-file", missingPid, "-o", "table")
		require.NoError(t, err)
		assert.Contains(t, out, "State:")
		assert.Contains(t, out, "ready")
		assert.Contains(t, out, "Server is running and ready")
	})
}

func TestReadPidFile(t *testing.T) {
	dir := t.TempDir()

	_, ok := readPidFile(filepath.Join(dir, "missing.pid"))
	assert.False(t, ok)

	garbage := filepath.Join(dir, "garbage.pid")
	require.NoError(t, os.WriteFile(garbage, []byte("not-a-pid\n"), 0o644))
	_, ok = readPidFile(garbage)
	assert.False(t, ok)

	mine := filepath.Join(dir, "mine.pid")
	require.NoError(t, writePidFile(mine))
	pid, ok := readPidFile(mine)
	assert.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
}

func TestStop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signals differ on windows")
	}
	t.Cleanup(func() { stopForce, stopWait, stopPidFile = false, 30*time.Second, "" })

	t.Run("NoPidFile", func(t *testing.T) {
		_, err := execute(t, "stop", "--pid-file", filepath.Join(t.TempDir(), "none.pid"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is the server running?")
	})

	t.Run("StalePidFile", func(t *testing.T) {
		exited := exec.Command("true")
		require.NoError(t, exited.Run())
		pidPath := filepath.Join(t.TempDir(), "certstore.pid")
		require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(exited.Process.Pid)), 0o644))

		out, err := execute(t, "stop", "--pid-file", pidPath)
		require.NoError(t, err)
		assert.Contains(t, out, "removed stale PID file")
		assert.NoFileExists(t, pidPath)
	})

	for _, force := range []bool{false, true} {
		t.Run("Running/force="+strconv.FormatBool(force), func(t *testing.T) {
			server := exec.Command("sleep", "30")
			require.NoError(t, server.Start())
			reaped := make(chan struct{})
			go func() {
				_ = server.Wait()
				close(reaped)
			}()
			pidPath := filepath.Join(t.TempDir(), "certstore.pid")
			require.NoError(t, writePidFileFor(pidPath, server.Process.Pid))

			args := []string{"stop", "--pid-file", pidPath, "--wait", "5s"}
			if force {
				args = append(args, "--force")
			}
			out, err := execute(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, "stopped")
			assert.NoFileExists(t, pidPath)

			select {
			case <-reaped:
			case <-time.After(5 * time.Second):
				t.Fatal("server process did not exit")
			}
			stopForce = false
		})
	}
}

func writePidFileFor(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "certstore")
}

func TestConfigEdit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as editor")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := execute(t, "init", "--config", path)
	require.NoError(t, err)

	// The editor appends a setting the loader rejects.
	editor := filepath.Join(t.TempDir(), "editor.sh")
	require.NoError(t, os.WriteFile(editor, []byte("#!/bin/sh\necho 'shutdown_timeout: nope' >> \"$1\"\n"), 0o755))
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", editor)

	out, err := execute(t, "config", "edit", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "Editing "+path)

	_, err = execute(t, "config", "edit", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certstore init")

	good := filepath.Join(t.TempDir(), "good.yaml")
	_, err = execute(t, "init", "--config", good)
	require.NoError(t, err)
	t.Setenv("EDITOR", "true")
	out, err = execute(t, "config", "edit", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
}
