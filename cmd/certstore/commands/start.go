package commands

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/config"
	"github.com/certforge/certstore/pkg/controlplane"
)

var (
	pidFile     string
	watchConfig bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the certstore server",
	Long: `Run the certstore server in the foreground.

The server stops on SIGINT or SIGTERM, giving in-flight requests up to
shutdown_timeout to finish. Keep it in the background with a process
supervisor such as systemd or a container runtime.

Without --config the file at $XDG_CONFIG_HOME/certstore/config.yaml is used
when present. CERTSTORE_* environment variables override file values.`,
	Example: `  certstore start
  certstore start --config /etc/certstore/config.yaml
  CERTSTORE_LOGGING_LEVEL=DEBUG certstore start`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/certstore/certstore.pid)")
	startCmd.Flags().BoolVar(&watchConfig, "watch-config", true, "Re-apply logging settings when the config file changes")
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	t := cfg.Telemetry
	return telemetry.Config{
		Version: build.Version,
		Tracing: telemetry.TracingConfig{
			Enabled:    t.Enabled,
			Endpoint:   t.Endpoint,
			Insecure:   t.Insecure,
			SampleRate: t.SampleRate,
		},
		Profiling: telemetry.ProfilingConfig{
			Enabled:      t.Profiling.Enabled,
			Endpoint:     t.Profiling.Endpoint,
			ProfileTypes: t.Profiling.ProfileTypes,
		},
	}
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Telemetry shutdown failed", logger.KeyError, err)
		}
	}()

	source := getConfigSource(GetConfigFile())
	logger.Info("Configuration loaded",
		"version", build.Version,
		"config", source,
		"log_level", cfg.Logging.Level,
		"tracing", telemetry.TracingEnabled(),
		"profiling", telemetry.ProfilingEnabled(),
	)

	cp, err := controlplane.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cp.Close(); err != nil {
			logger.Error("Failed to release resources", logger.KeyError, err)
		}
	}()

	if watchConfig && source != "defaults" {
		reload := func(updated *config.Config) {
			err := logger.Init(logger.Config{Level: updated.Logging.Level, Format: updated.Logging.Format})
			if err != nil {
				logger.Warn("Logging settings not reloaded", logger.KeyError, err)
			}
		}
		if err := config.Watch(GetConfigFile(), reload); err != nil {
			logger.Warn("Config file watch disabled", logger.KeyError, err)
		}
	}

	pidPath := cmp.Or(pidFile, GetDefaultPidFile())
	if err := writePidFile(pidPath); err != nil {
		return err
	}
	defer func() { _ = os.Remove(pidPath) }()

	logger.Info("Press Ctrl+C to stop", "port", cfg.Server.Port)
	return cp.Serve(ctx)
}
