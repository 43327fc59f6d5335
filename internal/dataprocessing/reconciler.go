package dataprocessing

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	apperrors "revforecast/internal/errors"
	"revforecast/internal/infrastructure"
	"revforecast/pkg/contracts/domain"
)

// JoinStrategy decides what happens to periods absent from some table
type JoinStrategy string

const (
	// JoinInner drops such periods
	JoinInner JoinStrategy = "inner"
	// JoinStrict fails with an incomplete period error
	JoinStrict JoinStrategy = "strict"
)

// ParseJoinStrategy accepts "inner" or "strict"; empty means inner
func ParseJoinStrategy(s string) (JoinStrategy, error) {
	switch JoinStrategy(s) {
	case "", JoinInner:
		return JoinInner, nil
	case JoinStrict:
		return JoinStrict, nil
	}
	return "", fmt.Errorf("unknown join strategy %q", s)
}

// Reconciler joins the cleaned tables on period
type Reconciler struct {
	strategy JoinStrategy
	logger   *slog.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(strategy JoinStrategy, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if strategy == "" {
		strategy = JoinInner
	}
	return &Reconciler{
		strategy: strategy,
		logger:   infrastructure.WithComponent(logger, "reconciler"),
	}
}

// Reconcile joins revenue, subscribers, content spend and net income, in that
// order, on period. The result is sorted by ascending period.
func (r *Reconciler) Reconcile(tables []domain.CleanedMetricTable) ([]domain.ReconciledRecord, error) {
	byMetric := make(map[domain.Metric]map[int]float64, len(tables))
	for _, t := range tables {
		if _, dup := byMetric[t.Metric]; dup {
			return nil, apperrors.NewSchemaShapeError(string(t.Metric), t.Sheet, 0).
				WithContext("reason", "table supplied twice").
				WithStage(StageReconcile)
		}
		index, err := indexTable(t)
		if err != nil {
			return nil, err
		}
		byMetric[t.Metric] = index
	}

	for _, m := range domain.Metrics {
		if _, ok := byMetric[m]; !ok {
			return nil, apperrors.NewMissingTableError(string(m), "", nil).WithStage(StageReconcile)
		}
	}

	// Union of every period, for reporting what the join drops.
	all := make(map[int]bool)
	for _, index := range byMetric {
		for p := range index {
			all[p] = true
		}
	}

	var kept []int
	missing := make(map[string][]int)
	for p := range all {
		complete := true
		for _, m := range domain.Metrics {
			if _, ok := byMetric[m][p]; !ok {
				complete = false
				missing[string(m)] = append(missing[string(m)], p)
			}
		}
		if complete {
			kept = append(kept, p)
		}
	}
	sort.Ints(kept)

	if len(missing) > 0 {
		for k := range missing {
			sort.Ints(missing[k])
		}
		if r.strategy == JoinStrict {
			return nil, apperrors.NewIncompletePeriodError(missing).WithStage(StageReconcile)
		}
		r.logger.Warn("Dropping periods not present in every table",
			slog.Any("missing", missing),
			slog.Int("kept", len(kept)))
	}

	records := make([]domain.ReconciledRecord, len(kept))
	for i, p := range kept {
		records[i] = domain.ReconciledRecord{
			Period:       p,
			Revenue:      byMetric[domain.MetricRevenue][p],
			Subscribers:  byMetric[domain.MetricSubscribers][p],
			ContentSpend: byMetric[domain.MetricContentSpend][p],
			NetIncome:    byMetric[domain.MetricNetIncome][p],
		}
	}
	return records, nil
}

// Reconcile runs an inner or strict join without logging
func Reconcile(tables []domain.CleanedMetricTable, strategy JoinStrategy) ([]domain.ReconciledRecord, error) {
	return NewReconciler(strategy, slog.New(slog.NewTextHandler(io.Discard, nil))).Reconcile(tables)
}

// indexTable maps period to value, rejecting repeated periods whatever their values
func indexTable(t domain.CleanedMetricTable) (map[int]float64, error) {
	index := make(map[int]float64, len(t.Observations))
	rows := make(map[int]int, len(t.Observations))
	for _, o := range t.Observations {
		if first, dup := rows[o.Period]; dup {
			return nil, apperrors.NewDuplicateKeyError(string(t.Metric), o.Period, first, o.Row).WithStage(StageReconcile)
		}
		rows[o.Period] = o.Row
		index[o.Period] = o.Value
	}
	return index, nil
}
