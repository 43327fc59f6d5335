package dataprocessing

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "revforecast/internal/errors"
	"revforecast/internal/shared/testutil"
	"revforecast/pkg/contracts/domain"
)

func table(m domain.Metric, pairs ...float64) domain.CleanedMetricTable {
	t := domain.CleanedMetricTable{Metric: m, Sheet: string(m)}
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Observations = append(t.Observations, domain.Observation{
			Row:    i/2 + 2,
			Period: int(pairs[i]),
			Value:  pairs[i+1],
		})
	}
	return t
}

func fourTables() []domain.CleanedMetricTable {
	return []domain.CleanedMetricTable{
		table(domain.MetricRevenue, 2011, 100, 2012, 200, 2013, 300),
		table(domain.MetricSubscribers, 2011, 10, 2012, 20, 2013, 30),
		table(domain.MetricContentSpend, 2011, 1, 2012, 2, 2013, 3),
		table(domain.MetricNetIncome, 2011, -5, 2012, 5, 2013, 15),
	}
}

func TestReconcile_AllPeriodsPresent(t *testing.T) {
	records, err := Reconcile(fourTables(), JoinInner)
	require.NoError(t, err)

	assert.Equal(t, []domain.ReconciledRecord{
		{Period: 2011, Revenue: 100, Subscribers: 10, ContentSpend: 1, NetIncome: -5},
		{Period: 2012, Revenue: 200, Subscribers: 20, ContentSpend: 2, NetIncome: 5},
		{Period: 2013, Revenue: 300, Subscribers: 30, ContentSpend: 3, NetIncome: 15},
	}, records)
}

func TestReconcile_IntersectionOfPeriods(t *testing.T) {
	tables := []domain.CleanedMetricTable{
		table(domain.MetricRevenue, 2010, 1, 2011, 100, 2012, 200, 2013, 300),
		table(domain.MetricSubscribers, 2011, 10, 2012, 20, 2013, 30, 2014, 40),
		table(domain.MetricContentSpend, 2011, 1, 2013, 3),
		table(domain.MetricNetIncome, 2011, -5, 2012, 5, 2013, 15),
	}

	records, err := Reconcile(tables, JoinInner)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2011, records[0].Period)
	assert.Equal(t, 2013, records[1].Period)
}

func TestReconcile_LogsDroppedPeriods(t *testing.T) {
	logger, handler := testutil.NewTestLogger()
	tables := fourTables()
	tables[3] = table(domain.MetricNetIncome, 2011, -5, 2013, 15)

	records, err := NewReconciler(JoinInner, logger).Reconcile(tables)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	rec := testutil.AssertLogContains(t, handler, slog.LevelWarn, "Dropping periods")
	assert.Equal(t, map[string][]int{"net_income": {2012}}, rec.Attrs["missing"])
	assert.Equal(t, "reconciler", rec.Attrs["component"])
}

func TestReconcile_StrictReportsGaps(t *testing.T) {
	tables := fourTables()
	tables[1] = table(domain.MetricSubscribers, 2011, 10, 2013, 30)
	tables[2] = table(domain.MetricContentSpend, 2011, 1, 2012, 2, 2013, 3, 2014, 4)

	_, err := Reconcile(tables, JoinStrict)
	require.Error(t, err)

	var pe *apperrors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, apperrors.KindIncompletePeriod, pe.Kind)
	missing := pe.Context["missing"].(map[string][]int)
	assert.Equal(t, []int{2012, 2014}, missing["subscribers"])
	assert.Equal(t, []int{2014}, missing["revenue"])
	assert.NotContains(t, missing, "content_spend")
}

func TestReconcile_OrderIndependent(t *testing.T) {
	shuffled := []domain.CleanedMetricTable{
		table(domain.MetricNetIncome, 2013, 15, 2011, -5, 2012, 5),
		table(domain.MetricContentSpend, 2012, 2, 2013, 3, 2011, 1),
		table(domain.MetricRevenue, 2013, 300, 2012, 200, 2011, 100),
		table(domain.MetricSubscribers, 2011, 10, 2013, 30, 2012, 20),
	}

	a, err := Reconcile(fourTables(), JoinInner)
	require.NoError(t, err)
	b, err := Reconcile(shuffled, JoinInner)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReconcile_DuplicateKey(t *testing.T) {
	tests := []struct {
		name   string
		metric domain.Metric
		tbl    domain.CleanedMetricTable
	}{
		{"differing values", domain.MetricSubscribers,
			table(domain.MetricSubscribers, 2011, 10, 2012, 20, 2012, 21)},
		{"identical values", domain.MetricNetIncome,
			table(domain.MetricNetIncome, 2011, 1, 2011, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := fourTables()
			for i := range tables {
				if tables[i].Metric == tt.metric {
					tables[i] = tt.tbl
				}
			}

			_, err := Reconcile(tables, JoinInner)
			require.Error(t, err)

			var pe *apperrors.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, apperrors.KindDuplicateKey, pe.Kind)
			assert.Equal(t, string(tt.metric), pe.Context["table"])
		})
	}
}

func TestReconcile_MissingMetric(t *testing.T) {
	_, err := Reconcile(fourTables()[:3], JoinInner)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMissingTable))
}

func TestReconcile_DoesNotModifyInput(t *testing.T) {
	tables := []domain.CleanedMetricTable{
		table(domain.MetricRevenue, 2013, 300, 2011, 100),
		table(domain.MetricSubscribers, 2011, 10, 2013, 30),
		table(domain.MetricContentSpend, 2011, 1, 2013, 3),
		table(domain.MetricNetIncome, 2011, -5, 2013, 15),
	}
	_, err := Reconcile(tables, JoinInner)
	require.NoError(t, err)
	assert.Equal(t, 2013, tables[0].Observations[0].Period)
}

func TestParseJoinStrategy(t *testing.T) {
	s, err := ParseJoinStrategy("")
	require.NoError(t, err)
	assert.Equal(t, JoinInner, s)

	s, err = ParseJoinStrategy("strict")
	require.NoError(t, err)
	assert.Equal(t, JoinStrict, s)

	_, err = ParseJoinStrategy("outer")
	assert.Error(t, err)
}

func TestBuildTimeSeries(t *testing.T) {
	records, err := Reconcile(fourTables(), JoinInner)
	require.NoError(t, err)

	points, err := BuildTimeSeries(records)
	require.NoError(t, err)
	require.Len(t, points, 3)

	for i, p := range points {
		assert.Equal(t, records[i].Revenue, p.Value)
		assert.Equal(t, 1, p.Timestamp.YearDay())
		assert.Equal(t, records[i].Period, p.Timestamp.Year())
		assert.Equal(t, "UTC", p.Timestamp.Location().String())
		if i > 0 {
			assert.True(t, p.Timestamp.After(points[i-1].Timestamp))
		}
	}
}

func TestBuildTimeSeries_InsufficientHistory(t *testing.T) {
	for _, n := range []int{0, 1} {
		records := make([]domain.ReconciledRecord, n)
		for i := range records {
			records[i] = domain.ReconciledRecord{Period: 2020 + i, Revenue: 1}
		}
		_, err := BuildTimeSeries(records)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientHistory), "n=%d", n)
	}
}

func TestBuildTimeSeries_SingleCommonYear(t *testing.T) {
	tables := []domain.CleanedMetricTable{
		table(domain.MetricRevenue, 2011, 100, 2012, 200),
		table(domain.MetricSubscribers, 2012, 20, 2013, 30),
		table(domain.MetricContentSpend, 2012, 2),
		table(domain.MetricNetIncome, 2012, 5, 2014, 1),
	}
	records, err := Reconcile(tables, JoinInner)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = BuildTimeSeries(records)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientHistory))
}

func TestLatestPeriod(t *testing.T) {
	_, ok := LatestPeriod(nil)
	assert.False(t, ok)

	latest, ok := LatestPeriod([]domain.ReconciledRecord{{Period: 2011}, {Period: 2015}, {Period: 2013}})
	require.True(t, ok)
	assert.Equal(t, 2015, latest)
}
