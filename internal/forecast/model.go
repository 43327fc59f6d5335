// Package forecast fits revenue history and projects it forward with
// uncertainty bounds.
//
// Model is the boundary to the forecasting capability: any implementation
// that fits on history and predicts, for every historical date plus one point
// per day of the horizon, an estimate with lower and upper bounds can be
// plugged in. TrendModel is the built-in implementation. Invoker validates the
// horizon, calls the model and classifies its failures.
package forecast

import (
	"context"

	"revforecast/pkg/contracts/domain"
)

// Request is the input handed to a Model
type Request struct {
	History           []domain.TimeSeriesPoint
	HorizonDays       int
	YearlySeasonality bool
	// IntervalWidth is the probability mass between Lower and Upper, e.g. 0.8
	IntervalWidth float64
}

// Model fits History and returns one point per history timestamp followed by
// one point per day for HorizonDays days after the last history timestamp.
type Model interface {
	Forecast(ctx context.Context, req Request) ([]domain.ForecastPoint, error)
}

// ModelFunc adapts a function to Model
type ModelFunc func(ctx context.Context, req Request) ([]domain.ForecastPoint, error)

func (f ModelFunc) Forecast(ctx context.Context, req Request) ([]domain.ForecastPoint, error) {
	return f(ctx, req)
}
