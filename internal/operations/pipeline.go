package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"revforecast/internal/config"
	"revforecast/internal/dataprocessing"
	apperrors "revforecast/internal/errors"
	"revforecast/internal/forecast"
	"revforecast/internal/infrastructure"
	"revforecast/internal/insights"
	"revforecast/pkg/contracts/domain"
)

// PipelineConfig selects how tables are located, cleaned and joined
type PipelineConfig struct {
	Layout       dataprocessing.SheetLayout
	Normalizer   dataprocessing.NormalizerOptions
	JoinStrategy dataprocessing.JoinStrategy
}

// Pipeline runs ingestion, reconciliation, forecasting and insight extraction
// over one container. A run either returns a complete ForecastRun or exactly
// one error; it never returns partial output.
type Pipeline struct {
	loader     *dataprocessing.Loader
	normalizer *dataprocessing.Normalizer
	reconciler *dataprocessing.Reconciler
	invoker    *forecast.Invoker
	tracer     *PipelineTracer
	logger     *slog.Logger
}

// NewPipeline wires the stages. A nil tracer disables instrumentation.
// Zero Layout and Normalizer fields fall back to the defaults.
func NewPipeline(cfg PipelineConfig, invoker *forecast.Invoker, tracer *PipelineTracer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Layout == nil {
		cfg.Layout = dataprocessing.DefaultLayout()
	}
	if cfg.Normalizer == (dataprocessing.NormalizerOptions{}) {
		cfg.Normalizer = dataprocessing.DefaultNormalizerOptions()
	}
	if tracer == nil {
		// noop providers never fail to create instruments
		tracer, _ = NewPipelineTracerWith(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	}
	return &Pipeline{
		loader:     dataprocessing.NewLoader(cfg.Layout, logger),
		normalizer: dataprocessing.NewNormalizer(cfg.Normalizer),
		reconciler: dataprocessing.NewReconciler(cfg.JoinStrategy, logger),
		invoker:    invoker,
		tracer:     tracer,
		logger:     infrastructure.WithComponent(logger, "pipeline"),
	}
}

// NewPipelineFromConfig builds a pipeline with the built-in trend model
func NewPipelineFromConfig(cfg *config.Config, tracer *PipelineTracer, logger *slog.Logger) (*Pipeline, error) {
	join, err := dataprocessing.ParseJoinStrategy(cfg.Forecast.JoinStrategy)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid join strategy", err)
	}

	invoker := forecast.NewInvoker(
		forecast.NewTrendModel(cfg.Forecast.FourierOrder),
		forecast.InvokerConfig{
			MinYears:          cfg.Forecast.MinYears,
			MaxYears:          cfg.Forecast.MaxYears,
			YearlySeasonality: cfg.Forecast.YearlySeasonality,
			IntervalWidth:     cfg.Forecast.IntervalWidth,
		},
		logger,
	)

	return NewPipeline(PipelineConfig{
		Layout: dataprocessing.LayoutFromConfig(cfg.Source.Sheets),
		Normalizer: dataprocessing.NormalizerOptions{
			CurrencySymbol: cfg.Source.CurrencySymbol,
			GroupSeparator: cfg.Source.GroupSeparator,
		},
		JoinStrategy: join,
	}, invoker, tracer, logger), nil
}

// ValidateHorizon checks years without running anything
func (p *Pipeline) ValidateHorizon(years int) error {
	return p.invoker.ValidateHorizon(years)
}

// run carries the intermediate values between stages
type run struct {
	source   dataprocessing.Container
	years    int
	raw      []domain.RawMetricTable
	cleaned  []domain.CleanedMetricTable
	records  []domain.ReconciledRecord
	history  []domain.TimeSeriesPoint
	forecast []domain.ForecastPoint
	insights domain.ForecastInsights
}

// Run executes every stage in order on c, forecasting years ahead
func (p *Pipeline) Run(ctx context.Context, c dataprocessing.Container, years int) (*domain.ForecastRun, error) {
	runID := infrastructure.GetRunID(ctx)
	if runID == "" {
		runID = infrastructure.NewRunID()
		ctx = infrastructure.WithRunID(ctx, runID)
	}

	started := time.Now()
	ctx, span := p.tracer.StartRun(ctx, runID, years)

	p.logger.InfoContext(ctx, "Pipeline run started", slog.Int("horizon_years", years))

	r := &run{source: c, years: years}
	stages := []struct {
		name string
		fn   func(ctx context.Context, r *run) (int, error)
	}{
		{StageValidate, p.validate},
		{StageLoad, p.load},
		{StageNormalize, p.normalize},
		{StageReconcile, p.reconcile},
		{StageBuild, p.build},
		{StageForecast, p.predict},
		{StageInsights, p.summarize},
	}

	states := make([]*StepState, len(stages))
	for i, s := range stages {
		states[i] = NewStepState(s.name)
	}

	var runErr error
	for i, s := range stages {
		if runErr = p.execute(ctx, states[i], s.fn, r); runErr != nil {
			break
		}
	}

	p.tracer.EndRun(ctx, span, time.Since(started), runErr)

	if runErr != nil {
		p.logger.ErrorContext(ctx, "Pipeline run failed",
			slog.String("error_kind", string(apperrors.KindOf(runErr))),
			slog.String("error", runErr.Error()),
			slog.Duration("duration", time.Since(started)))
		return nil, runErr
	}

	steps := make([]domain.StepReport, len(states))
	for i, st := range states {
		steps[i] = st.Report()
	}

	out := &domain.ForecastRun{
		ID:           runID,
		HorizonYears: years,
		Tables:       r.cleaned,
		Records:      r.records,
		History:      r.history,
		Forecast:     r.forecast,
		Insights:     r.insights,
		Steps:        steps,
		StartedAt:    started,
		CompletedAt:  time.Now(),
	}

	p.logger.InfoContext(ctx, "Pipeline run completed",
		slog.Int("records", len(out.Records)),
		slog.Int("forecast_points", len(out.Forecast)),
		slog.Int("latest_known_year", out.Insights.LatestKnownYear),
		slog.Duration("duration", out.CompletedAt.Sub(started)))

	return out, nil
}

func (p *Pipeline) execute(ctx context.Context, st *StepState, fn func(context.Context, *run) (int, error), r *run) error {
	if err := ctx.Err(); err != nil {
		st.Fail(err)
		return fmt.Errorf("run cancelled before %s: %w", st.Name, err)
	}

	ctx, span := p.tracer.StartStage(ctx, st.Name)
	st.Start()

	items, err := fn(ctx, r)
	if err != nil {
		var pe *apperrors.PipelineError
		if errors.As(err, &pe) && pe.Stage == "" {
			pe.WithStage(st.Name)
		}
		st.Fail(err)
	} else {
		st.Complete()
	}

	p.tracer.EndStage(ctx, span, st.Name, st.Duration(), items, err)
	p.logger.DebugContext(ctx, "Stage finished",
		slog.String("stage", st.Name),
		slog.String("status", string(st.Status)),
		slog.Int("items", items),
		slog.Duration("duration", st.Duration()))

	return err
}

func (p *Pipeline) validate(_ context.Context, r *run) (int, error) {
	return 0, p.invoker.ValidateHorizon(r.years)
}

func (p *Pipeline) load(ctx context.Context, r *run) (int, error) {
	raw, err := p.loader.Load(ctx, r.source)
	if err != nil {
		return 0, err
	}
	r.raw = raw
	return countRows(raw), nil
}

func (p *Pipeline) normalize(_ context.Context, r *run) (int, error) {
	cleaned, err := dataprocessing.CleanTables(r.raw, p.normalizer)
	if err != nil {
		return 0, err
	}
	r.cleaned = cleaned
	return len(cleaned), nil
}

func (p *Pipeline) reconcile(_ context.Context, r *run) (int, error) {
	records, err := p.reconciler.Reconcile(r.cleaned)
	if err != nil {
		return 0, err
	}
	r.records = records
	return len(records), nil
}

func (p *Pipeline) build(_ context.Context, r *run) (int, error) {
	history, err := dataprocessing.BuildTimeSeries(r.records)
	if err != nil {
		return 0, err
	}
	r.history = history
	return len(history), nil
}

func (p *Pipeline) predict(ctx context.Context, r *run) (int, error) {
	points, err := p.invoker.Invoke(ctx, r.history, r.years)
	if err != nil {
		return 0, err
	}
	r.forecast = points
	return len(points), nil
}

func (p *Pipeline) summarize(_ context.Context, r *run) (int, error) {
	latest, _ := dataprocessing.LatestPeriod(r.records)
	r.insights = insights.Extract(r.forecast, latest)
	return len(r.insights.Annual), nil
}

func countRows(tables []domain.RawMetricTable) int {
	n := 0
	for _, t := range tables {
		n += len(t.Rows)
	}
	return n
}
