package telemetry

// ServiceName is reported to both the trace collector and Pyroscope.
const ServiceName = "certstore"

// Config selects which exporters Setup starts. Both are off by default.
type Config struct {
	Version   string
	Tracing   TracingConfig
	Profiling ProfilingConfig
}

// TracingConfig points spans at an OTLP/gRPC collector.
type TracingConfig struct {
	Enabled  bool
	Endpoint string // host:port, e.g. "localhost:4317"
	Insecure bool

	// SampleRate is the fraction of traces kept, clamped to [0, 1].
	SampleRate float64
}

// ProfilingConfig points continuous profiles at a Pyroscope server.
type ProfilingConfig struct {
	Enabled      bool
	Endpoint     string // URL, e.g. "http://localhost:4040"
	ProfileTypes []string
}
