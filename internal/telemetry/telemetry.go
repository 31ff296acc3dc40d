// Package telemetry wires OpenTelemetry tracing and Pyroscope profiling into
// the certstore server, and provides the span and attribute helpers the
// storage service uses.
//
// Until Setup installs an SDK provider every helper is backed by the global
// no-op tracer, so library code can create spans unconditionally.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	instrumentationName = "github.com/certforge/certstore"
	flushTimeout        = 5 * time.Second
)

var (
	tracingActive   atomic.Bool
	profilingActive atomic.Bool
)

// Providers holds whatever Setup started. The zero value is valid and
// shuts down as a no-op.
type Providers struct {
	tracer   *sdktrace.TracerProvider
	profiler stopper
}

type stopper interface{ Stop() error }

// Setup starts the exporters enabled in cfg. Call Shutdown on the result to
// flush pending spans and stop profiling.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	p := &Providers{}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg.Version, cfg.Tracing)
		if err != nil {
			return nil, err
		}
		p.tracer = tp
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		tracingActive.Store(true)
	}

	if cfg.Profiling.Enabled {
		prof, err := startProfiler(cfg.Version, cfg.Profiling)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
		p.profiler = prof
		profilingActive.Store(true)
	}

	return p, nil
}

// Shutdown flushes spans and stops the profiler.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tracer != nil {
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		errs = append(errs, p.tracer.Shutdown(flushCtx))
		cancel()
		tracingActive.Store(false)
	}
	if p.profiler != nil {
		errs = append(errs, p.profiler.Stop())
		profilingActive.Store(false)
	}
	return errors.Join(errs...)
}

// TracingEnabled reports whether spans are exported.
func TracingEnabled() bool { return tracingActive.Load() }

// ProfilingEnabled reports whether the profiler is running.
func ProfilingEnabled() bool { return profilingActive.Load() }

func newTracerProvider(ctx context.Context, version string, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	), nil
}

// sampler keeps child spans consistent with their parent's decision.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the certstore tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// RecordError marks the span in ctx as failed. A nil err is ignored.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes annotates the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// TraceID returns the hex trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// SpanID returns the hex span ID of the span in ctx, or "".
func SpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return ""
}
