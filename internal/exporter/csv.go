package exporter

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"revforecast/internal/infrastructure"
	"revforecast/pkg/contracts/domain"
)

// CSVWriter persists artifacts under the reports directory
type CSVWriter struct {
	reportsDir string
	opts       FormatOptions
	logger     *slog.Logger
}

// NewCSVWriter creates a writer rooted at reportsDir
func NewCSVWriter(reportsDir string, opts FormatOptions, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		reportsDir: reportsDir,
		opts:       opts,
		logger:     infrastructure.WithComponent(logger, "csv_writer"),
	}
}

// WriteForecastFile writes the forecast artifact and returns its full path
func (w *CSVWriter) WriteForecastFile(name string, points []domain.ForecastPoint) (string, error) {
	return w.writeFile(name, len(points), func(out io.Writer) error {
		return WriteForecast(out, points, w.opts)
	})
}

// WriteRecordsFile writes the reconciled dataset and returns its full path
func (w *CSVWriter) WriteRecordsFile(name string, records []domain.ReconciledRecord) (string, error) {
	return w.writeFile(name, len(records), func(out io.Writer) error {
		return WriteReconciled(out, records, w.opts)
	})
}

func (w *CSVWriter) writeFile(name string, count int, write func(io.Writer) error) (string, error) {
	fullPath := w.resolvePath(name)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", name),
		slog.String("full_path", fullPath),
		slog.Int("record_count", count))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a sibling temp file so readers never see a partial artifact
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer os.Remove(tmp.Name())

	buf := bufio.NewWriter(tmp)
	if err := write(buf); err != nil {
		tmp.Close()
		return "", err
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to flush file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	return fullPath, nil
}

// resolvePath anchors relative names in the reports directory
func (w *CSVWriter) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.reportsDir, name)
}
