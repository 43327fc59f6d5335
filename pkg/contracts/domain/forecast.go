package domain

import (
	"time"
)

// Metric identifies one of the four source tables
type Metric string

const (
	MetricRevenue      Metric = "revenue"
	MetricSubscribers  Metric = "subscribers"
	MetricContentSpend Metric = "content_spend"
	MetricNetIncome    Metric = "net_income"
)

// Metrics lists the tables in join order.
var Metrics = []Metric{MetricRevenue, MetricSubscribers, MetricContentSpend, MetricNetIncome}

// Column returns the display name used for the metric in exported tables
func (m Metric) Column() string {
	switch m {
	case MetricRevenue:
		return "Revenue"
	case MetricSubscribers:
		return "Subscribers"
	case MetricContentSpend:
		return "ContentSpend"
	case MetricNetIncome:
		return "NetIncome"
	}
	return string(m)
}

// RawRow is one data row of a sheet, mapped by position, before cleaning
type RawRow struct {
	Row    int    `json:"row"` // 1-based row number in the sheet
	Period string `json:"period"`
	Value  string `json:"value"`
}

// RawMetricTable is a sheet as read from the container
type RawMetricTable struct {
	Metric Metric   `json:"metric"`
	Sheet  string   `json:"sheet"`
	Rows   []RawRow `json:"rows"`
}

// Observation is a cleaned (period, value) pair
type Observation struct {
	Row    int     `json:"row"`
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// CleanedMetricTable holds finite numeric values only
type CleanedMetricTable struct {
	Metric       Metric        `json:"metric"`
	Sheet        string        `json:"sheet"`
	Observations []Observation `json:"observations"`
}

// ReconciledRecord is one period present in all four tables
type ReconciledRecord struct {
	Period       int     `json:"year"`
	Revenue      float64 `json:"revenue"`
	Subscribers  float64 `json:"subscribers"`
	ContentSpend float64 `json:"content_spend"`
	NetIncome    float64 `json:"net_income"`
}

// Value returns the record's value for a metric
func (r ReconciledRecord) Value(m Metric) float64 {
	switch m {
	case MetricRevenue:
		return r.Revenue
	case MetricSubscribers:
		return r.Subscribers
	case MetricContentSpend:
		return r.ContentSpend
	case MetricNetIncome:
		return r.NetIncome
	}
	return 0
}

// TimeSeriesPoint is the revenue observation of one period, anchored at Jan 1 UTC
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ForecastPoint is a model estimate with its uncertainty interval
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Estimate  float64   `json:"estimate"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`

	// Additive parts of Estimate, when the model reports them. JSON only:
	// the CSV artifact has four columns and ReadForecast leaves these zero.
	Trend    float64 `json:"trend,omitempty"`
	Seasonal float64 `json:"seasonal,omitempty"`
}

// YearlyPrediction is the rounded mean estimate for a calendar year
type YearlyPrediction struct {
	Year     int     `json:"year"`
	Estimate float64 `json:"estimate"`
}

// ForecastInsights summarizes the future part of a forecast
type ForecastInsights struct {
	LatestKnownYear int                `json:"latest_known_year"`
	Annual          []YearlyPrediction `json:"annual"`
	NextYear        *YearlyPrediction  `json:"next_year,omitempty"`
	Highest         *YearlyPrediction  `json:"highest,omitempty"`
	Lowest          *YearlyPrediction  `json:"lowest,omitempty"`
}

// ForecastRun is the complete output of one pipeline run
type ForecastRun struct {
	ID           string               `json:"run_id"`
	HorizonYears int                  `json:"horizon_years"`
	Tables       []CleanedMetricTable `json:"-"`
	Records      []ReconciledRecord   `json:"records"`
	History      []TimeSeriesPoint    `json:"-"`
	Forecast     []ForecastPoint      `json:"forecast"`
	Insights     ForecastInsights     `json:"insights"`
	Steps        []StepReport         `json:"steps,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	CompletedAt  time.Time            `json:"completed_at"`
}

// StepReport records how a pipeline stage went
type StepReport struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}
