package forecast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "revforecast/internal/errors"
	"revforecast/pkg/contracts/domain"
)

type MockModel struct {
	mock.Mock
}

func (m *MockModel) Forecast(ctx context.Context, req Request) ([]domain.ForecastPoint, error) {
	args := m.Called(ctx, req)
	points, _ := args.Get(0).([]domain.ForecastPoint)
	return points, args.Error(1)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func yearly(values ...float64) []domain.TimeSeriesPoint {
	out := make([]domain.TimeSeriesPoint, len(values))
	for i, v := range values {
		out[i] = domain.TimeSeriesPoint{
			Timestamp: time.Date(2011+i, time.January, 1, 0, 0, 0, 0, time.UTC),
			Value:     v,
		}
	}
	return out
}

// echoModel produces a flat, well-formed forecast covering the request
func echoModel() ModelFunc {
	return func(_ context.Context, req Request) ([]domain.ForecastPoint, error) {
		var out []domain.ForecastPoint
		for _, p := range req.History {
			out = append(out, domain.ForecastPoint{Timestamp: p.Timestamp, Estimate: p.Value, Lower: p.Value - 1, Upper: p.Value + 1})
		}
		last := req.History[len(req.History)-1]
		for d := 1; d <= req.HorizonDays; d++ {
			out = append(out, domain.ForecastPoint{
				Timestamp: last.Timestamp.AddDate(0, 0, d),
				Estimate:  last.Value, Lower: last.Value - 1, Upper: last.Value + 1,
			})
		}
		return out, nil
	}
}

func TestInvoker_HorizonBounds(t *testing.T) {
	inv := NewInvoker(echoModel(), DefaultInvokerConfig(), discard())
	history := yearly(1, 2, 3)

	tests := []struct {
		years   int
		wantErr bool
	}{
		{0, true},
		{-1, true},
		{1, false},
		{5, false},
		{10, false},
		{11, true},
	}

	for _, tt := range tests {
		points, err := inv.Invoke(context.Background(), history, tt.years)
		if tt.wantErr {
			assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidHorizon), "years=%d", tt.years)
			continue
		}
		require.NoError(t, err, "years=%d", tt.years)
		assert.Len(t, points, len(history)+tt.years*DaysPerYear)
	}
}

func TestInvoker_InvalidHorizonSkipsModel(t *testing.T) {
	m := new(MockModel)
	inv := NewInvoker(m, DefaultInvokerConfig(), discard())

	_, err := inv.Invoke(context.Background(), yearly(1, 2), 11)
	require.Error(t, err)
	m.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)
}

func TestInvoker_PassesRequest(t *testing.T) {
	m := new(MockModel)
	history := yearly(10, 20, 30)
	cfg := InvokerConfig{MinYears: 1, MaxYears: 10, YearlySeasonality: true, IntervalWidth: 0.9}

	want, _ := echoModel()(context.Background(), Request{History: history, HorizonDays: 730})

	m.On("Forecast", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.HorizonDays == 730 && req.YearlySeasonality && req.IntervalWidth == 0.9 && len(req.History) == 3
	})).Return(want, nil).Once()

	inv := NewInvoker(m, cfg, discard())
	points, err := inv.Invoke(context.Background(), history, 2)
	require.NoError(t, err)
	assert.Len(t, points, 3+730)
	m.AssertExpectations(t)
}

func TestInvoker_ModelFailures(t *testing.T) {
	good, _ := echoModel()(context.Background(), Request{History: yearly(1, 2), HorizonDays: 365})

	tests := []struct {
		name  string
		model Model
	}{
		{"error", ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
			return nil, errors.New("optimizer diverged")
		})},
		{"panic", ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
			panic("index out of range")
		})},
		{"empty", ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
			return nil, nil
		})},
		{"nan estimate", ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
			out := append([]domain.ForecastPoint(nil), good...)
			out[5].Estimate = math.NaN()
			return out, nil
		})},
		{"inverted bounds", ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
			out := append([]domain.ForecastPoint(nil), good...)
			out[5].Lower, out[5].Upper = out[5].Upper, out[5].Lower
			return out, nil
		})},
		{"unordered", ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
			out := append([]domain.ForecastPoint(nil), good...)
			out[3], out[4] = out[4], out[3]
			return out, nil
		})},
		{"short", ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
			return good[:100], nil
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInvoker(tt.model, DefaultInvokerConfig(), discard())
			_, err := inv.Invoke(context.Background(), yearly(1, 2), 1)
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindForecastFit))
		})
	}
}

func TestInvoker_WrapsCause(t *testing.T) {
	cause := errors.New("boom")
	inv := NewInvoker(ModelFunc(func(context.Context, Request) ([]domain.ForecastPoint, error) {
		return nil, cause
	}), DefaultInvokerConfig(), discard())

	_, err := inv.Invoke(context.Background(), yearly(1, 2), 1)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperrors.ErrForecastFit)
}

func TestNewInvoker_Defaults(t *testing.T) {
	inv := NewInvoker(echoModel(), InvokerConfig{}, discard())
	cfg := inv.Config()
	assert.Equal(t, 1, cfg.MinYears)
	assert.Equal(t, 10, cfg.MaxYears)
	assert.Equal(t, 0.8, cfg.IntervalWidth)
}

func TestNewInvoker_NilLogger(t *testing.T) {
	var inv *Invoker
	require.NotPanics(t, func() {
		inv = NewInvoker(echoModel(), DefaultInvokerConfig(), nil)
	})

	_, err := inv.Invoke(context.Background(), yearly(1, 2, 3), 0)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidHorizon))
}

func TestTrendModel_LinearHistory(t *testing.T) {
	m := NewTrendModel(0)
	history := yearly(100, 200, 300, 400, 500, 600, 700, 800)

	points, err := m.Forecast(context.Background(), Request{
		History:       history,
		HorizonDays:   2 * DaysPerYear,
		IntervalWidth: 0.8,
	})
	require.NoError(t, err)
	require.Len(t, points, len(history)+730)

	for i, h := range history {
		assert.True(t, points[i].Timestamp.Equal(h.Timestamp))
		assert.InDelta(t, h.Value, points[i].Estimate, 1.0)
	}

	last := history[len(history)-1].Timestamp
	assert.True(t, points[len(history)].Timestamp.Equal(last.AddDate(0, 0, 1)))
	assert.True(t, points[len(points)-1].Timestamp.Equal(last.AddDate(0, 0, 730)))

	// Roughly 100 per year beyond 800
	end := points[len(points)-1]
	assert.InDelta(t, 1000, end.Estimate, 5)
	assert.InDelta(t, 0, end.Seasonal, 1e-9)
}

func TestTrendModel_BoundsAndGrowth(t *testing.T) {
	m := NewTrendModel(4)
	history := yearly(3.2e9, 3.6e9, 4.37e9, 5.5e9, 6.78e9, 8.83e9, 11.69e9, 15.79e9, 20.16e9, 24.99e9, 29.7e9, 31.6e9, 33.7e9)

	points, err := m.Forecast(context.Background(), Request{
		History:           history,
		HorizonDays:       5 * DaysPerYear,
		YearlySeasonality: true,
		IntervalWidth:     0.8,
	})
	require.NoError(t, err)
	require.Len(t, points, len(history)+5*365)

	for i, p := range points {
		require.False(t, math.IsNaN(p.Estimate), "point %d", i)
		assert.LessOrEqual(t, p.Lower, p.Estimate, "point %d", i)
		assert.LessOrEqual(t, p.Estimate, p.Upper, "point %d", i)
		assert.InDelta(t, p.Estimate, p.Trend+p.Seasonal, 1e-3*math.Abs(p.Estimate)+1)
		if i > 0 {
			assert.True(t, p.Timestamp.After(points[i-1].Timestamp))
		}
	}

	// Uncertainty grows away from the data
	first := points[len(history)]
	last := points[len(points)-1]
	assert.Greater(t, last.Upper-last.Lower, first.Upper-first.Lower)
	assert.Greater(t, last.Trend, first.Trend)
}

func TestTrendModel_TwoPoints(t *testing.T) {
	points, err := NewTrendModel(10).Forecast(context.Background(), Request{
		History:           yearly(10, 20),
		HorizonDays:       365,
		YearlySeasonality: true,
		IntervalWidth:     0.8,
	})
	require.NoError(t, err)
	assert.Len(t, points, 367)
	for _, p := range points {
		assert.LessOrEqual(t, p.Lower, p.Estimate)
		assert.LessOrEqual(t, p.Estimate, p.Upper)
	}
}

func TestTrendModel_RejectsBadInput(t *testing.T) {
	base := Request{History: yearly(1, 2, 3), HorizonDays: 10, IntervalWidth: 0.8}

	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"single point", func(r *Request) { r.History = yearly(1) }},
		{"no points", func(r *Request) { r.History = nil }},
		{"nan value", func(r *Request) { r.History = yearly(1, math.NaN(), 3) }},
		{"unordered", func(r *Request) {
			h := yearly(1, 2, 3)
			h[1], h[2] = h[2], h[1]
			r.History = h
		}},
		{"width", func(r *Request) { r.IntervalWidth = 1 }},
		{"negative horizon", func(r *Request) { r.HorizonDays = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := NewTrendModel(0).Forecast(context.Background(), req)
			assert.Error(t, err)
		})
	}
}

func TestTrendModel_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTrendModel(0).Forecast(ctx, Request{History: yearly(1, 2), HorizonDays: 1, IntervalWidth: 0.8})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoker_WithTrendModel(t *testing.T) {
	inv := NewInvoker(NewTrendModel(0), DefaultInvokerConfig(), discard())
	points, err := inv.Invoke(context.Background(), yearly(1e9, 2e9, 3e9, 4e9), 3)
	require.NoError(t, err)
	assert.Len(t, points, 4+3*365)
}
