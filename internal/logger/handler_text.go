package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const textTimeFormat = "2006-01-02T15:04:05.000"

// ANSI color codes.
const (
	ansiRed    = "31"
	ansiGreen  = "32"
	ansiYellow = "33"
	ansiCyan   = "36"
	ansiGray   = "90"
)

// textHandler renders one line per record:
//
//	2024-05-01T10:00:00.000 INFO  item deleted path=public/a.png size=120
type textHandler struct {
	out    *syncWriter
	level  slog.Leveler
	color  bool
	group  string // "a.b." for attrs added after WithGroup
	preset []byte // attrs from WithAttrs, already rendered
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(b)
	return err
}

func newTextHandler(w io.Writer, level slog.Leveler, color bool) *textHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &textHandler{out: &syncWriter{w: w}, level: level, color: color}
}

func (h *textHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	name, code := levelLabel(r.Level)

	var b strings.Builder
	b.WriteString(r.Time.Format(textTimeFormat))
	b.WriteByte(' ')
	b.WriteString(h.paint(code, name))
	b.WriteString(strings.Repeat(" ", 6-len(name)))
	b.WriteString(r.Message)
	b.Write(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	return h.out.write([]byte(b.String()))
}

func levelLabel(l slog.Level) (string, string) {
	switch {
	case l >= slog.LevelError:
		return "ERROR", ansiRed
	case l >= slog.LevelWarn:
		return "WARN", ansiYellow
	case l >= slog.LevelInfo:
		return "INFO", ansiGreen
	default:
		return "DEBUG", ansiGray
	}
}

func (h *textHandler) paint(code, s string) string {
	if !h.color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

type attrWriter interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

func (h *textHandler) writeAttr(b attrWriter, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			group += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, group, ga)
		}
		return
	}
	_ = b.WriteByte(' ')
	_, _ = b.WriteString(h.paint(ansiCyan, group+a.Key))
	_ = b.WriteByte('=')
	_, _ = b.WriteString(renderValue(a.Value))
}

// renderValue prints v, quoting it when it would not survive a split on
// spaces and '='.
func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		s = strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	var b strings.Builder
	b.Write(h.preset)
	for _, a := range attrs {
		h.writeAttr(&b, h.group, a)
	}
	c.preset = []byte(b.String())
	return &c
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = h.group + name + "."
	return &c
}
