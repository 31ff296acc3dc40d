package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/config"
)

// InitLogger configures the process logger from the logging section.
func InitLogger(cfg *config.Config) error {
	err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// stateDir is $XDG_STATE_HOME/certstore, falling back to the user cache
// directory where XDG does not apply.
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "certstore")
	}
	if home, err := os.UserHomeDir(); err == nil && runtime.GOOS != "windows" {
		return filepath.Join(home, ".local", "state", "certstore")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "certstore")
	}
	return filepath.Join(os.TempDir(), "certstore")
}

// GetDefaultPidFile returns the PID file used when --pid-file is unset.
func GetDefaultPidFile() string {
	return filepath.Join(stateDir(), "certstore.pid")
}

// getConfigSource names the file the configuration came from, for logs.
func getConfigSource(configFile string) string {
	switch {
	case configFile != "":
		return configFile
	case config.DefaultConfigExists():
		return config.GetDefaultConfigPath()
	default:
		return "defaults"
	}
}

func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// readPidFile returns the PID recorded at path and whether that process is
// still alive.
func readPidFile(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	// Windows cannot send signal 0; FindProcess already opened the process.
	if runtime.GOOS == "windows" {
		return pid, true
	}
	return pid, proc.Signal(syscall.Signal(0)) == nil
}
