package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"revforecast/internal/config"
	apperrors "revforecast/internal/errors"
	"revforecast/internal/infrastructure"
	"revforecast/pkg/contracts/domain"
)

// Pipeline stage names, used in errors, logs and spans
const (
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageReconcile = "reconcile"
	StageBuild     = "build_series"
)

// SheetLayout maps each metric to the sheet that holds it
type SheetLayout map[domain.Metric]string

// DefaultLayout returns the sheet names of the reference workbook
func DefaultLayout() SheetLayout {
	return LayoutFromConfig(config.Default().Source.Sheets)
}

// LayoutFromConfig builds a layout from the source configuration
func LayoutFromConfig(cfg config.SheetConfig) SheetLayout {
	return SheetLayout{
		domain.MetricRevenue:      cfg.Revenue,
		domain.MetricSubscribers:  cfg.Subscribers,
		domain.MetricContentSpend: cfg.ContentSpend,
		domain.MetricNetIncome:    cfg.NetIncome,
	}
}

// Loader reads the four metric tables from a container
type Loader struct {
	layout SheetLayout
	logger *slog.Logger
}

// NewLoader creates a loader for layout
func NewLoader(layout SheetLayout, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		layout: layout,
		logger: infrastructure.WithComponent(logger, "loader"),
	}
}

// Load returns the four tables in join order. Columns are mapped by
// position: the first is the period, the second the value. The header row
// is skipped and rows with both cells blank are ignored.
func (l *Loader) Load(ctx context.Context, c Container) ([]domain.RawMetricTable, error) {
	available, err := c.SheetNames(ctx)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(available))
	for _, name := range available {
		present[name] = true
	}

	// Every table must exist before any is read.
	for _, m := range domain.Metrics {
		sheet, ok := l.layout[m]
		if !ok || !present[sheet] {
			return nil, apperrors.NewMissingTableError(string(m), sheet, available).WithStage(StageLoad)
		}
	}

	tables := make([]domain.RawMetricTable, 0, len(domain.Metrics))
	for _, m := range domain.Metrics {
		sheet := l.layout[m]
		rows, err := c.Rows(ctx, sheet)
		if err != nil {
			return nil, err
		}

		table, err := mapRows(m, sheet, rows)
		if err != nil {
			return nil, err
		}

		l.logger.DebugContext(ctx, "Loaded table",
			slog.String("metric", string(m)),
			slog.String("sheet", sheet),
			slog.Int("rows", len(table.Rows)))
		tables = append(tables, table)
	}

	return tables, nil
}

// LoadTables is Load with a throwaway loader
func LoadTables(ctx context.Context, c Container, layout SheetLayout) ([]domain.RawMetricTable, error) {
	return NewLoader(layout, nil).Load(ctx, c)
}

func mapRows(m domain.Metric, sheet string, rows [][]string) (domain.RawMetricTable, error) {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width < 2 {
		return domain.RawMetricTable{}, apperrors.NewSchemaShapeError(string(m), sheet, width).WithStage(StageLoad)
	}

	table := domain.RawMetricTable{Metric: m, Sheet: sheet}
	for i := 1; i < len(rows); i++ {
		period := cellAt(rows[i], 0)
		value := cellAt(rows[i], 1)
		if strings.TrimSpace(period) == "" && strings.TrimSpace(value) == "" {
			continue
		}
		table.Rows = append(table.Rows, domain.RawRow{Row: i + 1, Period: period, Value: value})
	}
	return table, nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// CleanTables parses the period and value columns of every table
func CleanTables(tables []domain.RawMetricTable, n *Normalizer) ([]domain.CleanedMetricTable, error) {
	out := make([]domain.CleanedMetricTable, 0, len(tables))
	for _, t := range tables {
		cleaned, err := CleanTable(t, n)
		if err != nil {
			return nil, err
		}
		out = append(out, cleaned)
	}
	return out, nil
}

// CleanTable converts one table. Any bad cell fails the table.
func CleanTable(t domain.RawMetricTable, n *Normalizer) (domain.CleanedMetricTable, error) {
	cells := make([]RawCell, len(t.Rows))
	for i, r := range t.Rows {
		cells[i] = RawCell{Row: r.Row, Text: r.Value}
	}
	values, err := n.NormalizeCells(string(t.Metric), cells)
	if err != nil {
		return domain.CleanedMetricTable{}, err
	}

	obs := make([]domain.Observation, len(t.Rows))
	for i, r := range t.Rows {
		period, err := ParsePeriod(r.Period)
		if err != nil {
			return domain.CleanedMetricTable{}, apperrors.NewMalformedValueError(string(t.Metric), r.Row, r.Period, err).
				WithContext("column", "period").
				WithStage(StageNormalize)
		}
		obs[i] = domain.Observation{Row: r.Row, Period: period, Value: values[i]}
	}

	return domain.CleanedMetricTable{Metric: t.Metric, Sheet: t.Sheet, Observations: obs}, nil
}

// ParsePeriod reads a year. Integral float renderings such as "2011.0" are accepted.
func ParsePeriod(text string) (int, error) {
	s := strings.TrimSpace(text)
	if year, err := strconv.Atoi(s); err == nil {
		return year, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("period %q is not a year", text)
	}
	if f != math.Trunc(f) || math.Abs(f) > 1e6 {
		return 0, fmt.Errorf("period %q is not a whole year", text)
	}
	return int(f), nil
}
