package exporter

import (
	"strconv"
	"time"
)

// DefaultPrecision is the number of decimals written for forecast values
const DefaultPrecision = 6

// LosslessPrecision writes the shortest representation that parses back exactly
const LosslessPrecision = -1

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// formatFloat formats a value with a fixed number of decimals, or losslessly for -1
func formatFloat(f float64, precision int) string {
	if precision < LosslessPrecision {
		precision = DefaultPrecision
	}
	return strconv.FormatFloat(f, 'f', precision, 64)
}

// formatDate writes the calendar date of ts in UTC
func formatDate(ts time.Time) string {
	return ts.UTC().Format(time.DateOnly)
}

// parseDate accepts a plain date or a full RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	if ts, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}
