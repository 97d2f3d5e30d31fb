package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/kaijie-yu/google-ui/internal/engine"

type runMetrics struct {
	runs      metric.Int64Counter
	fallbacks metric.Int64Counter
	steps     metric.Int64Counter
	duration  metric.Float64Histogram
}

func newRunMetrics() runMetrics {
	meter := otel.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	runs, err := meter.Int64Counter("autoflow.runs",
		metric.WithDescription("Completed workflow runs by mode and status."))
	if err != nil {
		runs, _ = fallback.Int64Counter("autoflow.runs")
	}
	fallbacks, err := meter.Int64Counter("autoflow.run.fallbacks",
		metric.WithDescription("Remote dispatches that degraded to simulation."))
	if err != nil {
		fallbacks, _ = fallback.Int64Counter("autoflow.run.fallbacks")
	}
	steps, err := meter.Int64Counter("autoflow.run.steps",
		metric.WithDescription("Steps submitted for execution."))
	if err != nil {
		steps, _ = fallback.Int64Counter("autoflow.run.steps")
	}
	duration, err := meter.Float64Histogram("autoflow.run.duration",
		metric.WithDescription("Wall time of a run."), metric.WithUnit("s"))
	if err != nil {
		duration, _ = fallback.Float64Histogram("autoflow.run.duration")
	}

	return runMetrics{runs: runs, fallbacks: fallbacks, steps: steps, duration: duration}
}

func (m runMetrics) recordRun(ctx context.Context, mode RunMode, status string, steps int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("status", status),
	)
	m.runs.Add(ctx, 1, attrs)
	m.steps.Add(ctx, int64(steps), metric.WithAttributes(attribute.String("mode", string(mode))))
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m runMetrics) recordFallback(ctx context.Context) {
	m.fallbacks.Add(ctx, 1)
}
