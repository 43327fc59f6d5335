package validation

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "revforecast/internal/errors"
)

// xlsx files are zip archives
var zipMagic = []byte("PK\x03\x04")

var workbookExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
}

// FileValidator checks workbooks and output directories before the
// pipeline touches them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateWorkbookFile checks that path names a readable xlsx workbook.
// A missing file is a NotFound error; anything else wrong is a Source error.
func (v *FileValidator) ValidateWorkbookFile(path string) error {
	if path == "" {
		return apperrors.NewNotFoundError("workbook")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Warn("Workbook does not exist", slog.String("file", path))
		return apperrors.NewNotFoundError("workbook").WithContext("path", path)
	}
	if err != nil {
		return apperrors.NewSourceError(fmt.Sprintf("failed to stat workbook %s", path), err)
	}
	if info.IsDir() {
		return apperrors.NewSourceError(fmt.Sprintf("%s is a directory, not a workbook", path), nil)
	}

	if err := v.checkName(path); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Workbook is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewSourceError(fmt.Sprintf("workbook %s is not readable", path), err)
	}
	defer file.Close()

	head := make([]byte, len(zipMagic))
	n, _ := file.Read(head)
	if !bytes.Equal(head[:n], zipMagic) {
		return apperrors.NewSourceError(fmt.Sprintf("%s is not an xlsx workbook", path), nil)
	}

	v.logger.Debug("Workbook validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateUpload checks an uploaded workbook. name may be empty.
func (v *FileValidator) ValidateUpload(name string, data []byte) error {
	if len(data) == 0 {
		return apperrors.NewSourceError("uploaded workbook is empty", nil)
	}
	if name != "" {
		if err := v.checkName(name); err != nil {
			return err
		}
	}
	if !bytes.HasPrefix(data, zipMagic) {
		v.logger.Warn("Upload is not an xlsx workbook",
			slog.String("name", name),
			slog.Int("size", len(data)))
		return apperrors.NewSourceError("uploaded file is not an xlsx workbook", nil).WithContext("name", name)
	}
	return nil
}

// ValidateOutputDirectory ensures dir exists and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

func (v *FileValidator) checkName(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !workbookExtensions[ext] {
		return apperrors.NewSourceError(
			fmt.Sprintf("%s is not an Excel workbook (extension: %q)", filepath.Base(path), ext), nil)
	}

	// Excel lock files
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return apperrors.NewSourceError(
			fmt.Sprintf("%s is a temporary Excel file", filepath.Base(path)), nil)
	}
	return nil
}
