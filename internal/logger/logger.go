// Package logger is the process-wide structured logger of certstore.
//
// Records go through log/slog, rendered either as colored text for people or
// as JSON for log shippers. The level lives in a slog.LevelVar so the server
// can change it on config reload without rebuilding handlers. Request fields
// stored with WithContext are added by the *Ctx functions.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// sink is where records end up and how they are rendered.
type sink struct {
	w      io.Writer
	file   *os.File // non-nil when w is a log file we opened
	color  bool
	format string
}

var (
	level = new(slog.LevelVar)

	mu      sync.Mutex
	current = sink{w: os.Stdout, color: colorable(os.Stdout), format: FormatText}
	std     atomic.Pointer[slog.Logger]
)

func init() {
	install(current)
}

// install makes s the active sink. The caller must not hold mu.
func install(s sink) {
	mu.Lock()
	prev := current.file
	current = s
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if s.format == FormatJSON {
		h = slog.NewJSONHandler(s.w, opts)
	} else {
		h = newTextHandler(s.w, opts.Level, s.color)
	}
	std.Store(slog.New(contextHandler{h}))
	mu.Unlock()

	if prev != nil && prev != s.file {
		_ = prev.Close()
	}
}

func snapshot() sink {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Init applies cfg. Empty fields keep their current value. A file Output is
// opened in append mode and closed when replaced.
func Init(cfg Config) error {
	s := snapshot()
	if cfg.Output != "" {
		w, f, color, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		s.w, s.file, s.color = w, f, color
	}
	if f := strings.ToLower(cfg.Format); f == FormatText || f == FormatJSON {
		s.format = f
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	install(s)
	return nil
}

func openOutput(target string) (io.Writer, *os.File, bool, error) {
	switch strings.ToLower(target) {
	case "stdout":
		return os.Stdout, nil, colorable(os.Stdout), nil
	case "stderr":
		return os.Stderr, nil, colorable(os.Stderr), nil
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to open log file %q: %w", target, err)
	}
	return f, f, false, nil
}

// colorable reports whether f is a terminal that accepts ANSI colors.
func colorable(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ParseLevel converts a level name into a slog level. Unknown names report
// false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l)
	}
}

// GetLevel returns the minimum level.
func GetLevel() slog.Level {
	return level.Level()
}

// SetFormat switches between text and json. Other values are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != FormatText && format != FormatJSON {
		return
	}
	s := snapshot()
	s.format = format
	install(s)
}

func logAt(ctx context.Context, l slog.Level, msg string, args []any) {
	std.Load().Log(ctx, l, msg, args...)
}

// Debug logs msg with alternating key/value args.
func Debug(msg string, args ...any) { logAt(context.Background(), slog.LevelDebug, msg, args) }

func Info(msg string, args ...any) { logAt(context.Background(), slog.LevelInfo, msg, args) }

func Warn(msg string, args ...any) { logAt(context.Background(), slog.LevelWarn, msg, args) }

func Error(msg string, args ...any) { logAt(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs like Debug, prefixed with the request fields stored in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args)
}

// With returns a slog.Logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return std.Load().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
