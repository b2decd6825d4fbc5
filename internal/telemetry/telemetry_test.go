package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		raw  string
		want Mode
	}{
		{raw: "off", want: ModeOff},
		{raw: " Detailed ", want: ModeDetailed},
		{raw: "ERRORS", want: ModeErrors},
		{raw: "sampled", want: ModeSampled},
		{raw: "", want: ModeSampled},
		{raw: "verbose", want: ModeSampled},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()

			if got := ParseMode(tc.raw); got != tc.want {
				t.Fatalf("ParseMode(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestModeSampler(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		mode       Mode
		ratio      float64
		wantSample bool
	}{
		{name: "off_ignores_ratio", mode: ModeOff, ratio: 1, wantSample: false},
		{name: "detailed_ignores_ratio", mode: ModeDetailed, ratio: 0, wantSample: true},
		{name: "sampled_zero_ratio", mode: ModeSampled, ratio: 0, wantSample: false},
		{name: "sampled_negative_ratio_clamped", mode: ModeSampled, ratio: -3, wantSample: false},
		{name: "sampled_ratio_above_one_clamped", mode: ModeSampled, ratio: 7, wantSample: true},
		{name: "errors_full_ratio", mode: ModeErrors, ratio: 1, wantSample: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := tc.mode.Sampler(tc.ratio).ShouldSample(sdktrace.SamplingParameters{})
			if got := result.Decision == sdktrace.RecordAndSample; got != tc.wantSample {
				t.Fatalf("Sampler(%v) sampled = %t, want %t", tc.ratio, got, tc.wantSample)
			}
		})
	}
}

func TestSetupLogsSpansOnShutdown(t *testing.T) {
	previousProvider := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(previousProvider)
	})

	testCases := []struct {
		name        string
		config      Config
		wantMode    Mode
		wantEntries int
	}{
		{
			name:        "disabled_tracing_logs_nothing",
			config:      Config{Enabled: false, TraceMode: "detailed"},
			wantMode:    ModeOff,
			wantEntries: 0,
		},
		{
			name:        "detailed_tracing_logs_each_span",
			config:      Config{Enabled: true, TraceMode: "detailed"},
			wantMode:    ModeDetailed,
			wantEntries: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			tc.config.Logger = zap.New(core)

			provider, err := Setup(tc.config)
			if err != nil {
				t.Fatalf("Setup() unexpected error: %v", err)
			}
			if got := provider.Mode(); got != tc.wantMode {
				t.Fatalf("Mode() = %q, want %q", got, tc.wantMode)
			}

			tracer := otel.Tracer("telemetry-test")
			ctx, parent := tracer.Start(context.Background(), "harvest.run")
			_, child := tracer.Start(ctx, "harvest.page")
			child.SetAttributes(attribute.Int("issues.page", 3))
			child.SetStatus(codes.Error, "boom")
			child.End()
			parent.End()

			if err := provider.Shutdown(context.Background()); err != nil {
				t.Fatalf("Shutdown() unexpected error: %v", err)
			}

			entries := logs.All()
			if len(entries) != tc.wantEntries {
				t.Fatalf("log entries = %d, want %d", len(entries), tc.wantEntries)
			}
			if tc.wantEntries == 0 {
				return
			}

			failed := logs.FilterMessage("trace span failed").All()
			if len(failed) != 1 {
				t.Fatalf("failed span entries = %d, want 1", len(failed))
			}
			fields := failed[0].ContextMap()
			if fields["span"] != "harvest.page" || fields["attr.issues.page"] != "3" || fields["status"] != "boom" {
				t.Fatalf("failed span fields = %v", fields)
			}
			if _, ok := fields["parent_span_id"]; !ok {
				t.Fatalf("failed span missing parent_span_id: %v", fields)
			}
		})
	}
}
