package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{Version: "test"})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, TracingEnabled())
	assert.False(t, ProfilingEnabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	var none *Providers
	assert.NoError(t, none.Shutdown(context.Background()))
}

func TestSetup_RejectsUnknownProfileType(t *testing.T) {
	_, err := Setup(context.Background(), Config{
		Profiling: ProfilingConfig{Enabled: true, ProfileTypes: []string{"cpu", "heap"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"heap"`)
	assert.False(t, ProfilingEnabled())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes([]string{"cpu", " CPU ", "inuse_space", "mutex_count"})
	require.NoError(t, err)
	assert.Len(t, types, 3, "duplicates are dropped")

	names := ProfileTypeNames()
	assert.Len(t, names, 10)
	assert.IsIncreasing(t, names)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(2).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, sampler(0.25).Description(), "ParentBased")
}

func TestHelpers_WithoutProvider(t *testing.T) {
	ctx, span := StartStorageSpan(context.Background(), SpanStorageList, "public")
	defer span.End()

	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
	assert.NotPanics(t, func() {
		RecordError(ctx, errors.New("boom"))
		SetAttributes(ctx, CacheHit(true))
	})
}

func TestHelpers_RecordOnSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), SpanStorageDelete)
	assert.Len(t, TraceID(ctx), 32)
	assert.Len(t, SpanID(ctx), 16)

	SetAttributes(ctx, Path("public/seal.png"), Items(2))
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("backend unavailable"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "backend unavailable", ended[0].Status().Description)
	assert.Contains(t, ended[0].Attributes(), attribute.String(AttrPath, "public/seal.png"))
	assert.Contains(t, ended[0].Attributes(), attribute.Int(AttrItems, 2))
	assert.Len(t, ended[0].Events(), 1, "only the non-nil error is recorded")
}

func TestAttributeHelpers(t *testing.T) {
	strs := map[string]attribute.KeyValue{
		"192.168.1.100": ClientIP("192.168.1.100"),
		"alice":         Actor("alice"),
		"delete":        Operation("delete"),
		"public/certs":  Path("public/certs"),
		"archive/a.png": Target("archive/a.png"),
		"bucket":        Location("bucket"),
		"InUse":         ErrorKind("InUse"),
	}
	for want, kv := range strs {
		assert.Equal(t, want, kv.Value.AsString(), string(kv.Key))
	}

	assert.Equal(t, int64(1048576), Size(1048576).Value.AsInt64())
	assert.True(t, CacheHit(true).Value.AsBool())

	outcome := Outcome(2, 1)
	require.Len(t, outcome, 2)
	assert.Equal(t, attribute.Int(AttrSucceeded, 2), outcome[0])
	assert.Equal(t, attribute.Int(AttrFailed, 1), outcome[1])

	ref := UsageReference("templates", "t1")
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(AttrUsageTable, "templates"),
		attribute.String(AttrUsageRef, "t1"),
	}, ref)
}

func TestStartUsageSpan(t *testing.T) {
	ctx, span := StartUsageSpan(context.Background(), SpanUsageRegister, "public/a.png", UsageReference("templates", "t1")...)
	require.NotNil(t, ctx)
	span.End()

	_, span = StartStorageSpan(context.Background(), SpanStorageStats, "", Location("local"))
	span.End()
}
