package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		err      *PipelineError
		kind     Kind
		sentinel error
		dataErr  bool
	}{
		{"missing table", NewMissingTableError("revenue", "Sheet1", []string{"Other"}), KindMissingTable, ErrMissingTable, true},
		{"schema shape", NewSchemaShapeError("revenue", "Sheet1", 1), KindSchemaShape, ErrSchemaShape, true},
		{"malformed value", NewMalformedValueError("revenue", 3, "abc", nil), KindMalformedValue, ErrMalformedValue, true},
		{"duplicate key", NewDuplicateKeyError("subscribers", 2015, 4, 9), KindDuplicateKey, ErrDuplicateKey, true},
		{"incomplete period", NewIncompletePeriodError(map[string][]int{"net_income": {2011}}), KindIncompletePeriod, ErrIncompletePeriod, true},
		{"insufficient history", NewInsufficientHistoryError(1), KindInsufficientHistory, ErrInsufficientHistory, true},
		{"invalid horizon", NewInvalidHorizonError(11, 1, 10), KindInvalidHorizon, ErrInvalidHorizon, false},
		{"forecast fit", NewForecastFitError("model failed", fmt.Errorf("singular")), KindForecastFit, ErrForecastFit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.True(t, IsKind(tt.err, tt.kind))
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.dataErr, IsDataError(tt.err))
			assert.Contains(t, tt.err.Error(), "["+string(tt.kind)+"]")
		})
	}
}

func TestPipelineError_SentinelDoesNotMatchOtherKinds(t *testing.T) {
	err := NewMalformedValueError("revenue", 2, "x", nil)
	assert.False(t, errors.Is(err, ErrDuplicateKey))
	assert.False(t, errors.Is(err, ErrForecastFit))
}

func TestPipelineError_Wrapped(t *testing.T) {
	inner := NewDuplicateKeyError("revenue", 2012, 3, 4)
	wrapped := fmt.Errorf("load workbook: %w", inner)

	assert.Equal(t, KindDuplicateKey, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrDuplicateKey))

	var pe *PipelineError
	require.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, 2012, pe.Context["key"])
	assert.Equal(t, []int{3, 4}, pe.Context["rows"])
}

func TestPipelineError_ErrorString(t *testing.T) {
	cause := fmt.Errorf("strconv failure")
	err := NewMalformedValueError("content_spend", 7, "$1,2x", cause).WithStage("normalize")

	msg := err.Error()
	assert.Contains(t, msg, "[malformed_value] normalize:")
	assert.Contains(t, msg, "cell=$1,2x")
	assert.Contains(t, msg, "row=7")
	assert.Contains(t, msg, "table=content_spend")
	assert.Contains(t, msg, "strconv failure")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestKindOf_NonPipelineError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, IsDataError(NewConfigError("bad", nil)))
}

func TestAppError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageError("write forecast", cause).WithContext("path", "/tmp/x.csv")

	assert.Equal(t, "[STORAGE] write forecast: disk full", err.Error())
	assert.Equal(t, "/tmp/x.csv", err.Context["path"])
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "[NOT_FOUND] workbook not found", NewNotFoundError("workbook").Error())
}
