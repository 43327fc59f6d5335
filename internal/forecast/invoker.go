package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	apperrors "revforecast/internal/errors"
	"revforecast/internal/infrastructure"
	"revforecast/pkg/contracts/domain"
)

// DaysPerYear converts a horizon in years to days. Leap days are ignored.
const DaysPerYear = 365

const (
	DefaultMinYears      = 1
	DefaultMaxYears      = 10
	DefaultIntervalWidth = 0.8
)

// InvokerConfig bounds and parameterises a forecast call
type InvokerConfig struct {
	MinYears          int
	MaxYears          int
	YearlySeasonality bool
	IntervalWidth     float64
}

// DefaultInvokerConfig returns the 1..10 year bounds with yearly seasonality
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		MinYears:          DefaultMinYears,
		MaxYears:          DefaultMaxYears,
		YearlySeasonality: true,
		IntervalWidth:     DefaultIntervalWidth,
	}
}

// Invoker validates the horizon, calls the model and checks what it returns.
// Any failure of the model surfaces as a ForecastFitError.
type Invoker struct {
	model  Model
	cfg    InvokerConfig
	logger *slog.Logger
}

// NewInvoker fills unset bounds and interval width with the defaults
func NewInvoker(model Model, cfg InvokerConfig, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinYears <= 0 {
		cfg.MinYears = DefaultMinYears
	}
	if cfg.MaxYears < cfg.MinYears {
		cfg.MaxYears = DefaultMaxYears
	}
	if cfg.IntervalWidth <= 0 || cfg.IntervalWidth >= 1 {
		cfg.IntervalWidth = DefaultIntervalWidth
	}
	return &Invoker{
		model:  model,
		cfg:    cfg,
		logger: infrastructure.WithComponent(logger, "forecast_invoker"),
	}
}

// ValidateHorizon reports an InvalidHorizonError for years outside the bounds
func (i *Invoker) ValidateHorizon(years int) error {
	if years < i.cfg.MinYears || years > i.cfg.MaxYears {
		return apperrors.NewInvalidHorizonError(years, i.cfg.MinYears, i.cfg.MaxYears)
	}
	return nil
}

// Config returns the effective configuration
func (i *Invoker) Config() InvokerConfig {
	return i.cfg
}

// Invoke forecasts years*365 days past the end of history
func (i *Invoker) Invoke(ctx context.Context, history []domain.TimeSeriesPoint, years int) ([]domain.ForecastPoint, error) {
	if err := i.ValidateHorizon(years); err != nil {
		return nil, err
	}

	req := Request{
		History:           history,
		HorizonDays:       years * DaysPerYear,
		YearlySeasonality: i.cfg.YearlySeasonality,
		IntervalWidth:     i.cfg.IntervalWidth,
	}

	start := time.Now()
	points, err := i.call(ctx, req)
	if err != nil {
		i.logger.ErrorContext(ctx, "Forecast model failed",
			slog.Int("history_points", len(history)),
			slog.Int("horizon_days", req.HorizonDays),
			slog.String("error", err.Error()))
		return nil, apperrors.NewForecastFitError("model failed to fit or predict", err)
	}

	if err := validateOutput(history, req.HorizonDays, points); err != nil {
		return nil, apperrors.NewForecastFitError("model returned an invalid forecast", err)
	}

	i.logger.InfoContext(ctx, "Forecast produced",
		slog.Int("history_points", len(history)),
		slog.Int("horizon_days", req.HorizonDays),
		slog.Int("forecast_points", len(points)),
		slog.Duration("duration", time.Since(start)))

	return points, nil
}

func (i *Invoker) call(ctx context.Context, req Request) (points []domain.ForecastPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panic: %v", r)
		}
	}()
	return i.model.Forecast(ctx, req)
}

func validateOutput(history []domain.TimeSeriesPoint, horizonDays int, points []domain.ForecastPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("no points returned")
	}

	for k, p := range points {
		if !finite(p.Estimate) || !finite(p.Lower) || !finite(p.Upper) {
			return fmt.Errorf("point %d (%s) is not finite", k, p.Timestamp.Format(time.DateOnly))
		}
		if p.Lower > p.Estimate || p.Estimate > p.Upper {
			return fmt.Errorf("point %d (%s) violates lower <= estimate <= upper", k, p.Timestamp.Format(time.DateOnly))
		}
		if k > 0 && !p.Timestamp.After(points[k-1].Timestamp) {
			return fmt.Errorf("timestamps not strictly increasing at point %d", k)
		}
	}

	if len(history) > 0 {
		end := history[len(history)-1].Timestamp.AddDate(0, 0, horizonDays)
		if last := points[len(points)-1].Timestamp; last.Before(end) {
			return fmt.Errorf("forecast ends %s, before horizon end %s",
				last.Format(time.DateOnly), end.Format(time.DateOnly))
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
