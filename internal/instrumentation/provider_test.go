package instrumentation

import (
	"context"
	"testing"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "timeslotseeker", Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if provider.Enabled() {
		t.Error("provider should be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("a disabled provider still hands out a recorder")
	}
	if provider.ServesPrometheus() {
		t.Error("a disabled provider has nothing to scrape")
	}
	if provider.Tracer("finder") == nil {
		t.Error("a disabled provider still hands out a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of a disabled provider: %v", err)
	}
}

func TestNewProvider_Prometheus(t *testing.T) {
	provider, _ := newTestProvider(t)

	if !provider.Enabled() {
		t.Error("provider should be enabled")
	}
	if !provider.ServesPrometheus() {
		t.Error("prometheus exporter should be scraped from the metrics server")
	}
	if got := provider.PrometheusEndpoint(); got != "/metrics" {
		t.Errorf("PrometheusEndpoint() = %q, want /metrics", got)
	}
}

func TestNewProvider_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name:   "unsupported metrics exporter",
			config: Config{Enabled: true, MetricsExporter: "statsd", TracingExporter: ExporterNone},
		},
		{
			name:   "unsupported tracing exporter",
			config: Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: "jaeger"},
		},
		{
			name:   "otlp metrics without endpoint",
			config: Config{Enabled: true, MetricsExporter: ExporterOTLP, TracingExporter: ExporterNone},
		},
		{
			name:   "otlp tracing without endpoint",
			config: Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.ServiceName = "timeslotseeker"
			provider, err := NewProvider(context.Background(), tt.config)
			if err == nil {
				_ = provider.Shutdown(context.Background())
				t.Fatal("expected an error")
			}
		})
	}
}
