package validation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "revforecast/internal/errors"
	"revforecast/internal/shared/testutil"
)

func newValidator() *FileValidator {
	return NewFileValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func errType(t *testing.T, err error) apperrors.ErrorType {
	t.Helper()
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	return ae.Type
}

func TestFileValidator_ValidateWorkbookFile(t *testing.T) {
	workbook := testutil.BuildWorkbook(t, testutil.StandardSheets())

	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantErr       bool
		wantType      apperrors.ErrorType
		errorContains string
	}{
		{
			name: "valid workbook",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteWorkbook(t, t.TempDir(), "netflix.xlsx", testutil.StandardSheets())
			},
		},
		{
			name: "empty path",
			setupFunc: func(t *testing.T) string {
				return ""
			},
			wantErr:  true,
			wantType: apperrors.ErrTypeNotFound,
		},
		{
			name: "non-existent file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.xlsx")
			},
			wantErr:  true,
			wantType: apperrors.ErrTypeNotFound,
		},
		{
			name: "directory",
			setupFunc: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr:       true,
			wantType:      apperrors.ErrTypeSource,
			errorContains: "is a directory",
		},
		{
			name: "wrong extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "data.csv")
				require.NoError(t, os.WriteFile(path, workbook, 0644))
				return path
			},
			wantErr:       true,
			wantType:      apperrors.ErrTypeSource,
			errorContains: "not an Excel workbook",
		},
		{
			name: "excel lock file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "~$netflix.xlsx")
				require.NoError(t, os.WriteFile(path, workbook, 0644))
				return path
			},
			wantErr:       true,
			wantType:      apperrors.ErrTypeSource,
			errorContains: "temporary Excel file",
		},
		{
			name: "not a zip archive",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "fake.xlsx")
				require.NoError(t, os.WriteFile(path, []byte("Year,Revenue\n"), 0644))
				return path
			},
			wantErr:       true,
			wantType:      apperrors.ErrTypeSource,
			errorContains: "not an xlsx workbook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newValidator().ValidateWorkbookFile(tt.setupFunc(t))

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errType(t, err))
			if tt.errorContains != "" {
				assert.Contains(t, err.Error(), tt.errorContains)
			}
		})
	}
}

func TestFileValidator_ValidateUpload(t *testing.T) {
	workbook := testutil.BuildWorkbook(t, testutil.StandardSheets())

	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr bool
	}{
		{"valid", "netflix.xlsx", workbook, false},
		{"valid without name", "", workbook, false},
		{"macro workbook", "netflix.XLSM", workbook, false},
		{"empty", "netflix.xlsx", nil, true},
		{"legacy xls", "netflix.xls", workbook, true},
		{"text disguised as xlsx", "netflix.xlsx", []byte("hello"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newValidator().ValidateUpload(tt.file, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrTypeSource, errType(t, err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := newValidator()

	dir := filepath.Join(t.TempDir(), "reports", "nested")
	require.NoError(t, v.ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)
	assert.NoFileExists(t, filepath.Join(dir, ".write_test"))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	err := v.ValidateOutputDirectory(filepath.Join(blocker, "sub"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, errType(t, err))
}
