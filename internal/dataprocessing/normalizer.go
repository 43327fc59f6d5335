package dataprocessing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "revforecast/internal/errors"
)

// plainNumber is what must remain once currency decoration is stripped.
// Exponents are allowed because raw numeric cells can be stored that way.
var plainNumber = regexp.MustCompile(`^[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?$`)

// NormalizerOptions lists the decoration characters removed from value cells
type NormalizerOptions struct {
	CurrencySymbol string
	GroupSeparator string
}

// DefaultNormalizerOptions strips "$" and ","
func DefaultNormalizerOptions() NormalizerOptions {
	return NormalizerOptions{CurrencySymbol: "$", GroupSeparator: ","}
}

// RawCell is a value cell and the sheet row it came from
type RawCell struct {
	Row  int
	Text string
}

// Normalizer converts currency-formatted text into floats
type Normalizer struct {
	replacer *strings.Replacer
}

// NewNormalizer builds a normalizer removing the configured characters.
// Empty options remove nothing.
func NewNormalizer(opts NormalizerOptions) *Normalizer {
	var pairs []string
	for _, s := range []string{opts.CurrencySymbol, opts.GroupSeparator} {
		if s != "" {
			pairs = append(pairs, s, "")
		}
	}
	return &Normalizer{replacer: strings.NewReplacer(pairs...)}
}

// ParseValue converts one cell. Leading and trailing whitespace is ignored.
func (n *Normalizer) ParseValue(text string) (float64, bool) {
	s := n.replacer.Replace(strings.TrimSpace(text))
	if !plainNumber.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// NormalizeCells converts every cell of one table's value column. The first
// cell that does not parse fails the whole table.
func (n *Normalizer) NormalizeCells(table string, cells []RawCell) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, ok := n.ParseValue(c.Text)
		if !ok {
			return nil, apperrors.NewMalformedValueError(table, c.Row, c.Text, nil).WithStage(StageNormalize)
		}
		out[i] = v
	}
	return out, nil
}

// NormalizeCells is a convenience wrapper using opts for a single call
func NormalizeCells(table string, cells []RawCell, opts NormalizerOptions) ([]float64, error) {
	return NewNormalizer(opts).NormalizeCells(table, cells)
}
