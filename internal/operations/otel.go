package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "revforecast/internal/errors"
	"revforecast/internal/infrastructure"
)

const (
	TracerName = "revforecast.pipeline"
)

// PipelineTracer provides OpenTelemetry instrumentation for pipeline runs
type PipelineTracer struct {
	tracer trace.Tracer

	runsTotal     metric.Int64Counter
	errorsTotal   metric.Int64Counter
	activeRuns    metric.Int64UpDownCounter
	runDuration   metric.Float64Histogram
	stageDuration metric.Float64Histogram
}

// NewPipelineTracer creates instruments on the global providers
func NewPipelineTracer() (*PipelineTracer, error) {
	return NewPipelineTracerWith(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewPipelineTracerWith creates instruments on explicit providers
func NewPipelineTracerWith(tp trace.TracerProvider, mp metric.MeterProvider) (*PipelineTracer, error) {
	meter := mp.Meter(infrastructure.InstrumentationName)

	runs, err := meter.Int64Counter("forecast_runs_total",
		metric.WithDescription("Total number of forecast pipeline runs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	errs, err := meter.Int64Counter("forecast_errors_total",
		metric.WithDescription("Failed forecast runs by error kind"))
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	active, err := meter.Int64UpDownCounter("forecast_active_runs",
		metric.WithDescription("Number of forecast runs in progress"))
	if err != nil {
		return nil, fmt.Errorf("failed to create active runs gauge: %w", err)
	}
	runDur, err := meter.Float64Histogram("forecast_run_duration_seconds",
		metric.WithDescription("Forecast run duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}
	stageDur, err := meter.Float64Histogram("forecast_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stage duration histogram: %w", err)
	}

	return &PipelineTracer{
		tracer:        tp.Tracer(TracerName),
		runsTotal:     runs,
		errorsTotal:   errs,
		activeRuns:    active,
		runDuration:   runDur,
		stageDuration: stageDur,
	}, nil
}

// StartRun creates the span covering a whole run
func (pt *PipelineTracer) StartRun(ctx context.Context, runID string, years int) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("forecast.horizon_years", years),
		),
	)
	pt.activeRuns.Add(ctx, 1)
	return ctx, span
}

// EndRun records the outcome of a run
func (pt *PipelineTracer) EndRun(ctx context.Context, span trace.Span, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		kind := string(apperrors.KindOf(err))
		if kind == "" {
			kind = "other"
		}
		pt.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("error_kind", kind)))
		infrastructure.RecordError(ctx, err)
		span.SetAttributes(attribute.String("error.kind", kind))
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	pt.runsTotal.Add(ctx, 1, attrs)
	pt.runDuration.Record(ctx, duration.Seconds(), attrs)
	pt.activeRuns.Add(ctx, -1)

	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	span.End()
}

// StartStage creates a child span for one stage
func (pt *PipelineTracer) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("stage.name", stage)),
	)
}

// EndStage records the outcome of a stage
func (pt *PipelineTracer) EndStage(ctx context.Context, span trace.Span, stage string, duration time.Duration, items int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		infrastructure.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.String("stage.status", status),
		attribute.Int("stage.items", items),
	)
	pt.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
	span.End()
}
