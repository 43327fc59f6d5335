package exporter

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"revforecast/pkg/contracts/domain"
)

// ForecastHeader is the fixed column layout of the forecast artifact
var ForecastHeader = []string{"Timestamp", "PointEstimate", "LowerBound", "UpperBound"}

// RecordsHeader is the column layout of the reconciled dataset export
var RecordsHeader = []string{"Year", "Revenue", "Subscribers", "ContentSpend", "NetIncome"}

// FormatOptions controls how values are rendered
type FormatOptions struct {
	Precision int  // decimals; LosslessPrecision for exact round trips
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// DefaultFormatOptions returns six decimals without a BOM
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{Precision: DefaultPrecision}
}

// WriteForecast writes the header and one row per point, in order
func WriteForecast(w io.Writer, points []domain.ForecastPoint, opts FormatOptions) error {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			formatDate(p.Timestamp),
			formatFloat(p.Estimate, opts.Precision),
			formatFloat(p.Lower, opts.Precision),
			formatFloat(p.Upper, opts.Precision),
		})
	}
	return writeTable(w, ForecastHeader, rows, opts.BOMPrefix)
}

// WriteReconciled writes the merged yearly dataset
func WriteReconciled(w io.Writer, records []domain.ReconciledRecord, opts FormatOptions) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{strconv.Itoa(r.Period)}
		for _, m := range domain.Metrics {
			row = append(row, formatFloat(r.Value(m), opts.Precision))
		}
		rows = append(rows, row)
	}
	return writeTable(w, RecordsHeader, rows, opts.BOMPrefix)
}

func writeTable(w io.Writer, header []string, rows [][]string, bom bool) error {
	if bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadForecast parses an artifact produced by WriteForecast. A leading BOM is
// ignored; the header must match ForecastHeader exactly. Trend and Seasonal
// are not part of the artifact and come back zero.
func ReadForecast(r io.Reader) ([]domain.ForecastPoint, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = len(ForecastHeader)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty forecast file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, name := range ForecastHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected header column %d: got %q, want %q", i+1, header[i], name)
		}
	}

	var points []domain.ForecastPoint
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", line, rec[0], err)
		}
		var vals [3]float64
		for i := range vals {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q: %w", line, ForecastHeader[i+1], rec[i+1], err)
			}
			vals[i] = v
		}

		points = append(points, domain.ForecastPoint{
			Timestamp: ts,
			Estimate:  vals[0],
			Lower:     vals[1],
			Upper:     vals[2],
		})
	}
	return points, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
