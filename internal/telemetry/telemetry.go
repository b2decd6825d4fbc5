package telemetry

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

const defaultServiceName = "issue-stats"

// errorsModeFloor is the smallest sampling ratio used in ModeErrors.
const errorsModeFloor = 0.01

// Mode selects how many spans are sampled.
type Mode string

const (
	ModeOff      Mode = "off"
	ModeErrors   Mode = "errors"
	ModeSampled  Mode = "sampled"
	ModeDetailed Mode = "detailed"
)

// ParseMode maps a configured trace mode onto a Mode. Unknown values sample.
func ParseMode(raw string) Mode {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ModeOff, ModeErrors, ModeDetailed:
		return mode
	default:
		return ModeSampled
	}
}

// Sampler returns the root sampler for m. ratio is clamped to [0, 1].
func (m Mode) Sampler(ratio float64) sdktrace.Sampler {
	ratio = math.Min(math.Max(ratio, 0), 1)
	switch m {
	case ModeOff:
		return sdktrace.NeverSample()
	case ModeDetailed:
		return sdktrace.AlwaysSample()
	case ModeErrors:
		ratio = math.Max(ratio, errorsModeFloor)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Config configures tracing for one process run.
type Config struct {
	Enabled          bool
	ServiceName      string
	TraceMode        string
	TraceSampleRatio float64
	// Logger receives sampled spans. Nil keeps spans in memory only.
	Logger *zap.Logger
}

// Provider owns the tracer provider installed by Setup.
type Provider struct {
	mode   Mode
	traces *sdktrace.TracerProvider
}

// Setup installs a global tracer provider for the run. Sampled spans are
// written to cfg.Logger in batches and flushed by Shutdown.
func Setup(cfg Config) (*Provider, error) {
	mode := ParseMode(cfg.TraceMode)
	if !cfg.Enabled {
		mode = ModeOff
	}
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = defaultServiceName
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceNameKey.String(name)))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(mode.Sampler(cfg.TraceSampleRatio)),
	}
	if mode != ModeOff && cfg.Logger != nil {
		opts = append(opts, sdktrace.WithBatcher(&logExporter{logger: cfg.Logger}))
	}

	traces := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(traces)
	return &Provider{mode: mode, traces: traces}, nil
}

// Mode reports the effective trace mode.
func (p *Provider) Mode() Mode {
	return p.mode
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.traces.Shutdown(ctx)
}
