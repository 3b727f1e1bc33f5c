package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/mohammad-safakhou/intelliweb/config"
)

func TestSetupTelemetryDisabled(t *testing.T) {
	tel, meter, tracer, err := SetupTelemetry(context.Background(), config.TelemetryConfig{}, TelemetryOptions{ServiceName: "test"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if meter == nil || tracer == nil {
		t.Fatal("expected global meter and tracer")
	}
	if tel.MetricsHandler() == nil {
		t.Fatal("expected a fallback metrics handler")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestPipelineMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	exp, err := promexporter.New(promexporter.WithRegisterer(reg), promexporter.WithNamespace("intelliweb"))
	if err != nil {
		t.Fatalf("exporter: %v", err)
	}
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)))

	ctx := context.Background()
	m := Metrics()
	m.Fallback(ctx, "route")
	m.Fallback(ctx, "route")
	m.Turn(ctx, "LLM", true)
	m.FetchFailures(ctx, 3)
	m.FetchFailures(ctx, 0)
	m.Stage(ctx, "search", time.Now().Add(-time.Second))

	rec := httptest.NewRecorder()
	(&Telemetry{registry: reg}).MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, pattern := range []string{
		`intelliweb_fallbacks_total\{[^}]*stage="route"[^}]*\} 2`,
		`intelliweb_turns_total\{[^}]*source="LLM"[^}]*\} 1`,
		`intelliweb_fetch_failures_total\{[^}]*\} 3`,
		`intelliweb_stage_duration_seconds_count\{[^}]*stage="search"[^}]*\} 1`,
	} {
		if !regexp.MustCompile(pattern).MatchString(body) {
			t.Fatalf("metrics output does not match %s:\n%s", pattern, body)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *PipelineMetrics
	m.Fallback(context.Background(), "route")
	m.Turn(context.Background(), "LLM", false)
	m.Stage(context.Background(), "turn", time.Now())
}
