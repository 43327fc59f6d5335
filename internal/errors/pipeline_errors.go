package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindMissingTable        Kind = "missing_table"
	KindSchemaShape         Kind = "schema_shape"
	KindMalformedValue      Kind = "malformed_value"
	KindDuplicateKey        Kind = "duplicate_key"
	KindIncompletePeriod    Kind = "incomplete_period"
	KindInsufficientHistory Kind = "insufficient_history"
	KindInvalidHorizon      Kind = "invalid_horizon"
	KindForecastFit         Kind = "forecast_fit"
)

// Sentinels for errors.Is. A *PipelineError matches the sentinel of its Kind.
var (
	ErrMissingTable        = &PipelineError{Kind: KindMissingTable, Message: "required table not found"}
	ErrSchemaShape         = &PipelineError{Kind: KindSchemaShape, Message: "table has unexpected shape"}
	ErrMalformedValue      = &PipelineError{Kind: KindMalformedValue, Message: "cell is not a number"}
	ErrDuplicateKey        = &PipelineError{Kind: KindDuplicateKey, Message: "period appears more than once"}
	ErrIncompletePeriod    = &PipelineError{Kind: KindIncompletePeriod, Message: "period missing from a table"}
	ErrInsufficientHistory = &PipelineError{Kind: KindInsufficientHistory, Message: "not enough history to forecast"}
	ErrInvalidHorizon      = &PipelineError{Kind: KindInvalidHorizon, Message: "forecast horizon out of range"}
	ErrForecastFit         = &PipelineError{Kind: KindForecastFit, Message: "forecast model failed"}
)

// PipelineError is the single classified error a forecast run returns.
type PipelineError struct {
	Kind    Kind
	Stage   string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("] ")
	if e.Stage != "" {
		b.WriteString(e.Stage)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PipelineError of the same Kind.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithContext adds context to the error
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithStage records the pipeline stage that produced the error.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

// NewPipelineError creates a classified pipeline error
func NewPipelineError(kind Kind, message string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewMissingTableError reports a required sheet that is absent from the container.
func NewMissingTableError(table, sheet string, available []string) *PipelineError {
	return NewPipelineError(KindMissingTable, fmt.Sprintf("sheet %q for table %s not found", sheet, table), nil).
		WithContext("table", table).
		WithContext("sheet", sheet).
		WithContext("available", available)
}

// NewSchemaShapeError reports a sheet whose column layout cannot be mapped.
func NewSchemaShapeError(table, sheet string, columns int) *PipelineError {
	return NewPipelineError(KindSchemaShape, fmt.Sprintf("table %s has %d column(s), need at least 2", table, columns), nil).
		WithContext("table", table).
		WithContext("sheet", sheet).
		WithContext("columns", columns)
}

// NewMalformedValueError names the offending cell.
func NewMalformedValueError(table string, row int, cell string, cause error) *PipelineError {
	return NewPipelineError(KindMalformedValue, fmt.Sprintf("table %s row %d: %q is not a number", table, row, cell), cause).
		WithContext("table", table).
		WithContext("row", row).
		WithContext("cell", cell)
}

// NewDuplicateKeyError reports a period that occurs twice within one table.
func NewDuplicateKeyError(table string, key int, firstRow, secondRow int) *PipelineError {
	return NewPipelineError(KindDuplicateKey, fmt.Sprintf("table %s has period %d more than once", table, key), nil).
		WithContext("table", table).
		WithContext("key", key).
		WithContext("rows", []int{firstRow, secondRow})
}

// NewIncompletePeriodError lists, per table, the periods it lacks.
func NewIncompletePeriodError(missing map[string][]int) *PipelineError {
	return NewPipelineError(KindIncompletePeriod, "periods are not present in every table", nil).
		WithContext("missing", missing)
}

func NewInsufficientHistoryError(points int) *PipelineError {
	return NewPipelineError(KindInsufficientHistory, fmt.Sprintf("need at least 2 observations, have %d", points), nil).
		WithContext("points", points)
}

func NewInvalidHorizonError(years, min, max int) *PipelineError {
	return NewPipelineError(KindInvalidHorizon, fmt.Sprintf("horizon of %d years outside [%d, %d]", years, min, max), nil).
		WithContext("years", years).
		WithContext("min", min).
		WithContext("max", max)
}

func NewForecastFitError(message string, cause error) *PipelineError {
	return NewPipelineError(KindForecastFit, message, cause)
}

// KindOf returns the Kind of the first PipelineError in err's chain, or "".
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries a PipelineError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsDataError reports whether the failure is caused by the input workbook
// rather than by the request or the model.
func IsDataError(err error) bool {
	switch KindOf(err) {
	case KindMissingTable, KindSchemaShape, KindMalformedValue,
		KindDuplicateKey, KindIncompletePeriod, KindInsufficientHistory:
		return true
	}
	return false
}
