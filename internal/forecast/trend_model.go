package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"revforecast/pkg/contracts/domain"
)

const (
	day = 24 * time.Hour

	yearlyPeriodDays = 365.25

	DefaultFourierOrder       = 10
	DefaultSeasonalityPenalty = 1.0
)

// TrendModel is a linear trend plus optional yearly Fourier seasonality,
// fitted by ridge-regularised least squares. Only the seasonal coefficients
// are penalised, so a series with as few as two points still fits a trend.
// Bounds are normal prediction intervals from the residual variance and the
// parameter covariance, so they widen with distance from the data.
type TrendModel struct {
	FourierOrder       int
	SeasonalityPenalty float64
}

// NewTrendModel returns a model with the given Fourier order (<=0 uses the default)
func NewTrendModel(fourierOrder int) *TrendModel {
	if fourierOrder <= 0 {
		fourierOrder = DefaultFourierOrder
	}
	return &TrendModel{FourierOrder: fourierOrder, SeasonalityPenalty: DefaultSeasonalityPenalty}
}

// fit holds everything needed to predict at a timestamp
type fit struct {
	start, span float64 // days since epoch, and history span in days
	order       int
	scale       float64
	beta        *mat.VecDense
	cov         *mat.SymDense // (X'X + L)^-1
	sigma       float64
	z           float64
}

func (m *TrendModel) Forecast(ctx context.Context, req Request) ([]domain.ForecastPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.HorizonDays < 0 {
		return nil, fmt.Errorf("negative horizon: %d days", req.HorizonDays)
	}

	f, err := m.fit(req)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.ForecastPoint, 0, len(req.History)+req.HorizonDays)
	for _, p := range req.History {
		out = append(out, f.predict(p.Timestamp))
	}
	last := req.History[len(req.History)-1].Timestamp
	for d := 1; d <= req.HorizonDays; d++ {
		out = append(out, f.predict(last.Add(time.Duration(d)*day)))
	}
	return out, nil
}

func (m *TrendModel) fit(req Request) (*fit, error) {
	n := len(req.History)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 observations, got %d", n)
	}

	y := make([]float64, n)
	for i, p := range req.History {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("observation %d is not finite", i)
		}
		if i > 0 && !p.Timestamp.After(req.History[i-1].Timestamp) {
			return nil, fmt.Errorf("timestamps must be strictly increasing at index %d", i)
		}
		y[i] = p.Value
	}

	width := req.IntervalWidth
	if width <= 0 || width >= 1 {
		return nil, fmt.Errorf("interval width %v outside (0, 1)", width)
	}

	order := 0
	if req.YearlySeasonality {
		order = m.FourierOrder
		if order <= 0 {
			order = DefaultFourierOrder
		}
	}

	f := &fit{
		start: epochDays(req.History[0].Timestamp),
		order: order,
		z:     distuv.UnitNormal.Quantile(0.5 + width/2),
	}
	f.span = epochDays(req.History[n-1].Timestamp) - f.start

	f.scale = math.Max(math.Abs(floats.Max(y)), math.Abs(floats.Min(y)))
	if f.scale == 0 {
		f.scale = 1
	}
	floats.Scale(1/f.scale, y)

	p := f.features()
	X := mat.NewDense(n, p, nil)
	for i, pt := range req.History {
		X.SetRow(i, f.row(pt.Timestamp))
	}
	yv := mat.NewVecDense(n, y)

	// A = X'X + L, with L penalising the seasonal columns only
	var a mat.SymDense
	a.SymOuterK(1, X.T())
	penalty := m.SeasonalityPenalty
	if penalty <= 0 {
		penalty = DefaultSeasonalityPenalty
	}
	for j := 2; j < p; j++ {
		a.SetSym(j, j, a.At(j, j)+penalty)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return nil, errors.New("design matrix is singular")
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), yv)

	f.beta = mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(f.beta, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	f.cov = mat.NewSymDense(p, nil)
	if err := chol.InverseTo(f.cov); err != nil {
		return nil, fmt.Errorf("invert normal equations: %w", err)
	}

	// Residual variance with the effective degrees of freedom of the ridge fit
	var fitted mat.VecDense
	fitted.MulVec(X, f.beta)
	rss, leverage := 0.0, 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
		xi := X.RowView(i)
		leverage += mat.Inner(xi, f.cov, xi)
	}
	dof := math.Max(float64(n)-leverage, 1)
	f.sigma = math.Sqrt(rss / dof)

	return f, nil
}

func (f *fit) features() int {
	return 2 + 2*f.order
}

// row returns the design row: intercept, scaled time, then sin/cos pairs
func (f *fit) row(ts time.Time) []float64 {
	d := epochDays(ts)
	row := make([]float64, f.features())
	row[0] = 1
	row[1] = (d - f.start) / f.span
	for k := 1; k <= f.order; k++ {
		angle := 2 * math.Pi * float64(k) * d / yearlyPeriodDays
		row[2*k] = math.Sin(angle)
		row[2*k+1] = math.Cos(angle)
	}
	return row
}

func (f *fit) predict(ts time.Time) domain.ForecastPoint {
	x := mat.NewVecDense(f.features(), f.row(ts))

	trend := f.beta.AtVec(0) + f.beta.AtVec(1)*x.AtVec(1)
	est := mat.Dot(x, f.beta)
	sd := f.sigma * math.Sqrt(1+mat.Inner(x, f.cov, x))
	half := f.z * sd

	return domain.ForecastPoint{
		Timestamp: ts,
		Estimate:  est * f.scale,
		Lower:     (est - half) * f.scale,
		Upper:     (est + half) * f.scale,
		Trend:     trend * f.scale,
		Seasonal:  (est - trend) * f.scale,
	}
}

func epochDays(ts time.Time) float64 {
	return float64(ts.Unix()) / 86400
}
