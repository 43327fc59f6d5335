package dataprocessing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "revforecast/internal/errors"
	"revforecast/internal/shared/testutil"
	"revforecast/pkg/contracts/domain"
)

func openSheets(t *testing.T, sheets []testutil.SheetData) *ExcelContainer {
	t.Helper()
	c, err := OpenExcelReader(bytes.NewReader(testutil.BuildWorkbook(t, sheets)), "test.xlsx")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLoader_LoadStandardWorkbook(t *testing.T) {
	c := openSheets(t, testutil.StandardSheets())

	tables, err := LoadTables(context.Background(), c, DefaultLayout())
	require.NoError(t, err)
	require.Len(t, tables, 4)

	for i, m := range domain.Metrics {
		assert.Equal(t, m, tables[i].Metric)
		assert.Len(t, tables[i].Rows, 13)
	}

	first := tables[0].Rows[0]
	assert.Equal(t, 2, first.Row)
	assert.Equal(t, "2011", first.Period)
	assert.Equal(t, "$3,205,000,000", first.Value)
	assert.Equal(t, testutil.RevenueSheet, tables[0].Sheet)
}

func TestLoader_MapsByPositionNotHeader(t *testing.T) {
	sheets := testutil.ReplaceSheet(testutil.StandardSheets(), testutil.RevenueSheet, testutil.SheetData{
		Name: testutil.RevenueSheet,
		Rows: [][]interface{}{
			{"Totally", "Different", "Extra column"},
			{2020, "$10", "ignored"},
			{2021, "$20"},
		},
	})
	c := openSheets(t, sheets)

	tables, err := LoadTables(context.Background(), c, DefaultLayout())
	require.NoError(t, err)
	require.Len(t, tables[0].Rows, 2)
	assert.Equal(t, domain.RawRow{Row: 2, Period: "2020", Value: "$10"}, tables[0].Rows[0])
	assert.Equal(t, domain.RawRow{Row: 3, Period: "2021", Value: "$20"}, tables[0].Rows[1])
}

func TestLoader_SkipsBlankRows(t *testing.T) {
	sheets := testutil.ReplaceSheet(testutil.StandardSheets(), testutil.SubscribersSheet, testutil.SheetData{
		Name: testutil.SubscribersSheet,
		Rows: [][]interface{}{
			{"Year", "Subscribers"},
			{2011, 100},
			{nil, nil},
			{2012, 200},
		},
	})
	c := openSheets(t, sheets)

	tables, err := LoadTables(context.Background(), c, DefaultLayout())
	require.NoError(t, err)
	require.Len(t, tables[1].Rows, 2)
	assert.Equal(t, 4, tables[1].Rows[1].Row)
}

func TestLoader_MissingTable(t *testing.T) {
	c := openSheets(t, testutil.DropSheet(testutil.StandardSheets(), testutil.ContentSpendSheet))

	_, err := LoadTables(context.Background(), c, DefaultLayout())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMissingTable))

	var pe *apperrors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "content_spend", pe.Context["table"])
	assert.Equal(t, testutil.ContentSpendSheet, pe.Context["sheet"])
}

func TestLoader_SheetNameIsExact(t *testing.T) {
	sheets := testutil.StandardSheets()
	// Same name without the trailing space
	sheets[0].Name = "Netflix annual revenue 2011 to"
	c := openSheets(t, sheets)

	_, err := LoadTables(context.Background(), c, DefaultLayout())
	assert.True(t, apperrors.IsKind(err, apperrors.KindMissingTable))
}

func TestLoader_SchemaShape(t *testing.T) {
	tests := []struct {
		name string
		rows [][]interface{}
	}{
		{"single column", [][]interface{}{{"Year"}, {2011}, {2012}}},
		{"empty sheet", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheets := testutil.ReplaceSheet(testutil.StandardSheets(), testutil.NetIncomeSheet,
				testutil.SheetData{Name: testutil.NetIncomeSheet, Rows: tt.rows})
			c := openSheets(t, sheets)

			_, err := LoadTables(context.Background(), c, DefaultLayout())
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindSchemaShape))
		})
	}
}

func TestLoader_CustomLayout(t *testing.T) {
	sheets := []testutil.SheetData{
		{Name: "rev", Rows: [][]interface{}{{"y", "v"}, {2011, 1}, {2012, 2}}},
		{Name: "subs", Rows: [][]interface{}{{"y", "v"}, {2011, 1}, {2012, 2}}},
		{Name: "content", Rows: [][]interface{}{{"y", "v"}, {2011, 1}, {2012, 2}}},
		{Name: "income", Rows: [][]interface{}{{"y", "v"}, {2011, 1}, {2012, 2}}},
	}
	c := openSheets(t, sheets)
	layout := SheetLayout{
		domain.MetricRevenue:      "rev",
		domain.MetricSubscribers:  "subs",
		domain.MetricContentSpend: "content",
		domain.MetricNetIncome:    "income",
	}

	tables, err := LoadTables(context.Background(), c, layout)
	require.NoError(t, err)
	assert.Equal(t, "rev", tables[0].Sheet)
	assert.Equal(t, "income", tables[3].Sheet)
}

func TestLoader_CancelledContext(t *testing.T) {
	c := openSheets(t, testutil.StandardSheets())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadTables(ctx, c, DefaultLayout())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenExcelReader_NotAWorkbook(t *testing.T) {
	_, err := OpenExcelReader(bytes.NewReader([]byte("not a zip")), "upload.xlsx")
	require.Error(t, err)

	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.ErrTypeSource, ae.Type)
}

func TestCleanTable(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerOptions())
	raw := domain.RawMetricTable{
		Metric: domain.MetricRevenue,
		Sheet:  "rev",
		Rows: []domain.RawRow{
			{Row: 2, Period: "2011", Value: "$1,000"},
			{Row: 3, Period: "2012.0", Value: "2000"},
		},
	}

	cleaned, err := CleanTable(raw, n)
	require.NoError(t, err)
	assert.Equal(t, []domain.Observation{
		{Row: 2, Period: 2011, Value: 1000},
		{Row: 3, Period: 2012, Value: 2000},
	}, cleaned.Observations)
	assert.Equal(t, "$1,000", raw.Rows[0].Value, "input must not be modified")
}

func TestCleanTable_BadPeriod(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerOptions())
	raw := domain.RawMetricTable{
		Metric: domain.MetricNetIncome,
		Rows:   []domain.RawRow{{Row: 5, Period: "FY2011", Value: "1"}},
	}

	_, err := CleanTable(raw, n)
	require.Error(t, err)

	var pe *apperrors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, apperrors.KindMalformedValue, pe.Kind)
	assert.Equal(t, "period", pe.Context["column"])
	assert.Equal(t, 5, pe.Context["row"])
}

func TestCleanTables_StandardWorkbook(t *testing.T) {
	c := openSheets(t, testutil.StandardSheets())
	raw, err := LoadTables(context.Background(), c, DefaultLayout())
	require.NoError(t, err)

	cleaned, err := CleanTables(raw, NewNormalizer(DefaultNormalizerOptions()))
	require.NoError(t, err)
	require.Len(t, cleaned, 4)

	rev := cleaned[0].Observations
	assert.Equal(t, 2011, rev[0].Period)
	assert.Equal(t, testutil.AnnualRevenue[2011], rev[0].Value)
	assert.InDelta(t, 21.5e6, cleaned[1].Observations[0].Value, 1e-3)
	assert.InDelta(t, 17e6, cleaned[3].Observations[1].Value, 1e-3)
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"2011", 2011, false},
		{" 2012 ", 2012, false},
		{"2013.0", 2013, false},
		{"2013.5", 0, true},
		{"", 0, true},
		{"twenty", 0, true},
		{"NaN", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
