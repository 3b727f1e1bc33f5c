package runtime

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// PipelineMetrics are the per-turn instruments. They report through the
// global meter provider, so they are no-ops until SetupTelemetry runs.
type PipelineMetrics struct {
	turns         otelmetric.Int64Counter
	fallbacks     otelmetric.Int64Counter
	searchErrors  otelmetric.Int64Counter
	fetchFailures otelmetric.Int64Counter
	stageSeconds  otelmetric.Float64Histogram
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Metrics returns the process-wide pipeline instruments.
func Metrics() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		meter := otel.Meter("intelliweb/pipeline")
		m := &PipelineMetrics{}
		var err error
		if m.turns, err = meter.Int64Counter("turns_total",
			otelmetric.WithDescription("Turns processed, by source and outcome")); err != nil {
			telemetryLogger.Printf("metrics init: turns counter: %v", err)
		}
		if m.fallbacks, err = meter.Int64Counter("fallbacks_total",
			otelmetric.WithDescription("Stages that fell back to their default result")); err != nil {
			telemetryLogger.Printf("metrics init: fallbacks counter: %v", err)
		}
		if m.searchErrors, err = meter.Int64Counter("search_errors_total",
			otelmetric.WithDescription("Search provider calls that failed")); err != nil {
			telemetryLogger.Printf("metrics init: search errors counter: %v", err)
		}
		if m.fetchFailures, err = meter.Int64Counter("fetch_failures_total",
			otelmetric.WithDescription("URLs whose extraction failed")); err != nil {
			telemetryLogger.Printf("metrics init: fetch failures counter: %v", err)
		}
		if m.stageSeconds, err = meter.Float64Histogram("stage_duration_seconds",
			otelmetric.WithDescription("Wall time of each pipeline stage"),
			otelmetric.WithUnit("s")); err != nil {
			telemetryLogger.Printf("metrics init: stage histogram: %v", err)
		}
		pipelineMetrics = m
	})
	return pipelineMetrics
}

func (m *PipelineMetrics) Turn(ctx context.Context, source string, ok bool) {
	if m == nil || m.turns == nil {
		return
	}
	m.turns.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("ok", ok),
	))
}

// Fallback counts a stage that gave up and used its default result.
func (m *PipelineMetrics) Fallback(ctx context.Context, stage string) {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("stage", stage)))
}

func (m *PipelineMetrics) SearchError(ctx context.Context, intent string) {
	if m == nil || m.searchErrors == nil {
		return
	}
	m.searchErrors.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("intent", intent)))
}

func (m *PipelineMetrics) FetchFailures(ctx context.Context, n int) {
	if m == nil || m.fetchFailures == nil || n <= 0 {
		return
	}
	m.fetchFailures.Add(ctx, int64(n))
}

// Stage records how long stage took since start.
func (m *PipelineMetrics) Stage(ctx context.Context, stage string, start time.Time) {
	if m == nil || m.stageSeconds == nil {
		return
	}
	m.stageSeconds.Record(ctx, time.Since(start).Seconds(), otelmetric.WithAttributes(attribute.String("stage", stage)))
}
