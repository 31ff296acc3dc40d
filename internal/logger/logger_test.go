package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture sends log output to a buffer for the duration of the test.
func capture(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	prev := snapshot()
	prevLevel := GetLevel()
	install(sink{w: buf, format: format})
	t.Cleanup(func() {
		install(prev)
		level.Set(prevLevel)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"DEBUG", []string{"debug-msg", "info-msg", "warn-msg", "error-msg"}, nil},
		{"INFO", []string{"info-msg", "warn-msg", "error-msg"}, []string{"debug-msg"}},
		{"WARN", []string{"warn-msg", "error-msg"}, []string{"debug-msg", "info-msg"}},
		{"ERROR", []string{"error-msg"}, []string{"debug-msg", "info-msg", "warn-msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := capture(t, FormatText)
			SetLevel(tt.level)

			Debug("debug-msg")
			Info("info-msg")
			Warn("warn-msg")
			Error("error-msg")

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	capture(t, FormatText)

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, GetLevel())
	SetLevel("Warning")
	assert.Equal(t, slog.LevelWarn, GetLevel())
	SetLevel("LOUD")
	assert.Equal(t, slog.LevelWarn, GetLevel(), "unknown names are ignored")
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel(" error ")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelError, l)

	_, ok = ParseLevel("trace")
	assert.False(t, ok)
}

func TestTextHandler_Line(t *testing.T) {
	buf := capture(t, FormatText)
	SetLevel("INFO")

	Info("folder created", KeyPath, "public/certs/2024", KeyCount, 3, "note", "two words", KeyDurationMs, 1.5)

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	stamp, rest, ok := strings.Cut(out, " ")
	require.True(t, ok)
	_, err := time.Parse(textTimeFormat, stamp)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rest, "INFO  folder created"))
	assert.Contains(t, rest, " path=public/certs/2024")
	assert.Contains(t, rest, " count=3")
	assert.Contains(t, rest, ` note="two words"`)
	assert.Contains(t, rest, " duration_ms=1.500")
	assert.NotContains(t, rest, "\x1b[")
}

func TestTextHandler_Color(t *testing.T) {
	buf := new(bytes.Buffer)
	l := slog.New(newTextHandler(buf, slog.LevelDebug, true))

	l.Warn("slow", "backend", "bucket")

	assert.Contains(t, buf.String(), "\x1b[33mWARN\x1b[0m")
	assert.Contains(t, buf.String(), "\x1b[36mbackend\x1b[0m=bucket")
}

func TestTextHandler_GroupsAndPresetAttrs(t *testing.T) {
	buf := capture(t, FormatText)
	SetLevel("INFO")

	With(KeyBackend, "bucket").WithGroup("s3").Info("listed", "keys", 2, slog.Group("page", "size", 50))

	out := buf.String()
	assert.Contains(t, out, " backend=bucket")
	assert.Contains(t, out, " s3.keys=2")
	assert.Contains(t, out, " s3.page.size=50")
}

func TestTextHandler_QuotesEmptyAndErrors(t *testing.T) {
	buf := capture(t, FormatText)
	SetLevel("INFO")

	Info("failed", KeyError, "no such key", "empty", "")

	assert.Contains(t, buf.String(), ` error="no such key"`)
	assert.Contains(t, buf.String(), ` empty=""`)
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t, FormatJSON)
	SetLevel("INFO")

	Info("bulk delete finished", KeySucceeded, 2, KeyFailed, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bulk delete finished", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.EqualValues(t, 2, entry[KeySucceeded])
	assert.Contains(t, entry, "time")
}

func TestSetFormat(t *testing.T) {
	capture(t, FormatText)

	SetFormat("JSON")
	assert.Equal(t, FormatJSON, snapshot().format)
	SetFormat("xml")
	assert.Equal(t, FormatJSON, snapshot().format)
}

func TestInit_FileOutput(t *testing.T) {
	capture(t, FormatText)
	path := filepath.Join(t.TempDir(), "certstore.log")

	require.NoError(t, Init(Config{Level: "DEBUG", Format: "json", Output: path}))
	Debug("to file", KeyPath, "a.png")
	require.NoError(t, Init(Config{Output: "stderr"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"to file"`)
	assert.Equal(t, FormatJSON, snapshot().format, "format is kept when not set")
}

func TestInit_BadFile(t *testing.T) {
	capture(t, FormatText)
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}

func TestContextLogging(t *testing.T) {
	t.Run("InjectsFields", func(t *testing.T) {
		buf := capture(t, FormatText)
		SetLevel("DEBUG")

		lc := NewLogContext("req-1", "10.0.0.7").WithOperation("deleteFile").WithActor("alice")
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "deleting", KeyPath, "public/a.png")

		out := buf.String()
		assert.Contains(t, out, "request_id=req-1")
		assert.Contains(t, out, "operation=deleteFile")
		assert.Contains(t, out, "actor=alice")
		assert.Contains(t, out, "client_ip=10.0.0.7")
		assert.NotContains(t, out, "trace_id")
		assert.Less(t, strings.Index(out, "request_id"), strings.Index(out, "path="))
	})

	t.Run("JSON", func(t *testing.T) {
		buf := capture(t, FormatJSON)
		SetLevel("INFO")

		ctx := WithContext(context.Background(), NewLogContext("req-2", ""))
		WarnCtx(ctx, "slow")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-2", entry[KeyRequestID])
		assert.NotContains(t, entry, KeyClientIP)
	})

	t.Run("WithoutLogContext", func(t *testing.T) {
		buf := capture(t, FormatText)
		SetLevel("DEBUG")

		ErrorCtx(context.Background(), "plain")
		assert.Contains(t, buf.String(), "plain")
	})

	t.Run("OperationFromContext", func(t *testing.T) {
		ctx := OperationFromContext(context.Background(), "copyStorageItems")
		require.NotNil(t, FromContext(ctx))
		assert.Equal(t, "copyStorageItems", FromContext(ctx).Operation)

		ctx = OperationFromContext(WithContext(context.Background(), NewLogContext("r", "")), "moveStorageItems")
		assert.Equal(t, "r", FromContext(ctx).RequestID)
		assert.Equal(t, "moveStorageItems", FromContext(ctx).Operation)
	})
}

func TestLogContext_DeriveCopies(t *testing.T) {
	var nilLC *LogContext
	assert.Nil(t, nilLC.WithActor("x"))

	lc := NewLogContext("r", "ip")
	c := lc.WithTrace("t1", "s1")
	assert.Empty(t, lc.TraceID)
	assert.Equal(t, "t1", c.TraceID)
	assert.Equal(t, "s1", c.SpanID)
	assert.Equal(t, "r", c.RequestID)
}

func TestConcurrentLogging(t *testing.T) {
	buf := capture(t, FormatText)
	SetLevel("INFO")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				Info("concurrent", "worker", n)
				if j%5 == 0 {
					SetLevel("INFO")
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16*20, strings.Count(buf.String(), "concurrent"))
}
