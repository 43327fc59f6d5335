package dataprocessing

import (
	"time"

	apperrors "revforecast/internal/errors"
	"revforecast/pkg/contracts/domain"
)

// MinHistoryPoints is the fewest observations a forecast can be fitted on
const MinHistoryPoints = 2

// PeriodStart returns midnight UTC on January 1 of year
func PeriodStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// BuildTimeSeries projects reconciled records onto (timestamp, revenue).
// Records must be ascending by period, as Reconcile returns them.
func BuildTimeSeries(records []domain.ReconciledRecord) ([]domain.TimeSeriesPoint, error) {
	if len(records) < MinHistoryPoints {
		return nil, apperrors.NewInsufficientHistoryError(len(records)).WithStage(StageBuild)
	}

	points := make([]domain.TimeSeriesPoint, len(records))
	for i, r := range records {
		if i > 0 && r.Period <= records[i-1].Period {
			return nil, apperrors.NewDuplicateKeyError(string(domain.MetricRevenue), r.Period, 0, 0).
				WithContext("reason", "records not strictly ascending").
				WithStage(StageBuild)
		}
		points[i] = domain.TimeSeriesPoint{Timestamp: PeriodStart(r.Period), Value: r.Revenue}
	}
	return points, nil
}

// LatestPeriod returns the largest period among records, or false when empty
func LatestPeriod(records []domain.ReconciledRecord) (int, bool) {
	if len(records) == 0 {
		return 0, false
	}
	latest := records[0].Period
	for _, r := range records[1:] {
		if r.Period > latest {
			latest = r.Period
		}
	}
	return latest, true
}
