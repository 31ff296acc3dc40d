package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// LogContext holds request-scoped logging fields.
type LogContext struct {
	RequestID string
	TraceID   string
	SpanID    string
	Operation string // service operation, e.g. deleteStorageItems
	Actor     string // authenticated caller, if any
	ClientIP  string
}

// NewLogContext starts the fields of a request from clientIP.
func NewLogContext(requestID, clientIP string) *LogContext {
	return &LogContext{RequestID: requestID, ClientIP: clientIP}
}

// WithContext stores lc in ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

// derive copies lc and applies fn to the copy. A nil lc stays nil.
func (lc *LogContext) derive(fn func(*LogContext)) *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	fn(&c)
	return &c
}

func (lc *LogContext) WithOperation(op string) *LogContext {
	return lc.derive(func(c *LogContext) { c.Operation = op })
}

func (lc *LogContext) WithActor(actor string) *LogContext {
	return lc.derive(func(c *LogContext) { c.Actor = actor })
}

func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	return lc.derive(func(c *LogContext) { c.TraceID, c.SpanID = traceID, spanID })
}

// attrs returns the non-empty fields in a fixed order.
func (lc *LogContext) attrs() []slog.Attr {
	fields := [...]struct{ key, val string }{
		{KeyRequestID, lc.RequestID},
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyOperation, lc.Operation},
		{KeyActor, lc.Actor},
		{KeyClientIP, lc.ClientIP},
	}
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if f.val != "" {
			out = append(out, slog.String(f.key, f.val))
		}
	}
	return out
}

// OperationFromContext tags ctx with op, creating a LogContext if there is
// none yet.
func OperationFromContext(ctx context.Context, op string) context.Context {
	lc := FromContext(ctx)
	if lc == nil {
		return WithContext(ctx, &LogContext{Operation: op})
	}
	return WithContext(ctx, lc.WithOperation(op))
}

// contextHandler puts the LogContext fields of the record's context ahead of
// the record's own attributes.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	lc := FromContext(ctx)
	if lc == nil {
		return h.Handler.Handle(ctx, r)
	}
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(lc.attrs()...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
