package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"revforecast/internal/config"
	"revforecast/internal/dataprocessing"
	apperrors "revforecast/internal/errors"
	"revforecast/internal/exporter"
	"revforecast/internal/operations"
	"revforecast/internal/validation"
	"revforecast/pkg/contracts/domain"
)

// PipelineRunner executes one forecast run over a container
type PipelineRunner interface {
	Run(ctx context.Context, c dataprocessing.Container, years int) (*domain.ForecastRun, error)
	ValidateHorizon(years int) error
}

// SheetsOpener connects to a Google spreadsheet
type SheetsOpener func(ctx context.Context, spreadsheetID, credentialsFile string) (dataprocessing.Container, error)

// Source selects the workbook a run reads. The zero value means the
// configured default source.
type Source struct {
	Upload        []byte
	UploadName    string
	SpreadsheetID string
}

// Describe returns a short label for logs
func (s Source) Describe() string {
	switch {
	case s.Upload != nil:
		return "upload:" + s.UploadName
	case s.SpreadsheetID != "":
		return "sheets:" + s.SpreadsheetID
	}
	return "default"
}

// Artifacts are the files written for a run
type Artifacts struct {
	ForecastCSV string `json:"forecast_csv"`
	RecordsCSV  string `json:"records_csv,omitempty"`
}

// ForecastService selects the data source, bounds concurrent runs and
// persists artifacts
type ForecastService struct {
	pipeline      PipelineRunner
	paths         *config.Paths
	source        config.SourceConfig
	defaultYears  int
	timeout       time.Duration
	exportFile    string
	formatOptions exporter.FormatOptions

	sem        *semaphore.Weighted
	active     atomic.Int64
	writer     *exporter.CSVWriter
	openSheets SheetsOpener
	validator  *validation.FileValidator
	logger     *slog.Logger
}

// NewForecastServiceFromConfig builds the pipeline from cfg and wraps it in a service
func NewForecastServiceFromConfig(cfg *config.Config, paths *config.Paths, tracer *operations.PipelineTracer, logger *slog.Logger) (*ForecastService, error) {
	pipeline, err := operations.NewPipelineFromConfig(cfg, tracer, logger)
	if err != nil {
		return nil, err
	}
	return NewForecastService(cfg, paths, pipeline, logger), nil
}

// NewForecastService creates a forecast service
func NewForecastService(cfg *config.Config, paths *config.Paths, pipeline PipelineRunner, logger *slog.Logger) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("service", "forecast"))

	opts := exporter.FormatOptions{Precision: cfg.Forecast.ExportPrecision, BOMPrefix: cfg.Forecast.ExportBOM}
	maxRuns := cfg.Forecast.MaxConcurrentRuns
	if maxRuns < 1 {
		maxRuns = 1
	}

	return &ForecastService{
		pipeline:      pipeline,
		paths:         paths,
		source:        cfg.Source,
		defaultYears:  cfg.Forecast.DefaultYears,
		timeout:       cfg.Forecast.Timeout,
		exportFile:    cfg.Forecast.ExportFile,
		formatOptions: opts,
		sem:           semaphore.NewWeighted(maxRuns),
		writer:        exporter.NewCSVWriter(paths.ReportsDir, opts, logger),
		openSheets:    openSheets,
		validator:     validation.NewFileValidator(logger),
		logger:        logger,
	}
}

func openSheets(ctx context.Context, id, credentials string) (dataprocessing.Container, error) {
	return dataprocessing.NewSheetsContainer(ctx, id, credentials)
}

// WithSheetsOpener replaces how spreadsheets are opened
func (s *ForecastService) WithSheetsOpener(open SheetsOpener) *ForecastService {
	s.openSheets = open
	return s
}

// DefaultYears is the horizon used when a request does not specify one
func (s *ForecastService) DefaultYears() int {
	return s.defaultYears
}

// ExportFile is the configured artifact name
func (s *ForecastService) ExportFile() string {
	return s.exportFile
}

// ActiveRuns reports how many runs are executing
func (s *ForecastService) ActiveRuns() int64 {
	return s.active.Load()
}

// Forecast runs the pipeline on src. years <= 0 uses the default horizon.
func (s *ForecastService) Forecast(ctx context.Context, src Source, years int) (*domain.ForecastRun, error) {
	if years <= 0 {
		years = s.defaultYears
	}
	// Reject bad horizons before reading any input
	if err := s.pipeline.ValidateHorizon(years); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.logger.WarnContext(ctx, "Forecast capacity exhausted",
			slog.String("source", src.Describe()),
			slog.Duration("waited", s.timeout))
		return nil, apperrors.NewBusyError("too many forecast runs in progress", err)
	}
	defer s.sem.Release(1)

	s.active.Add(1)
	defer s.active.Add(-1)

	c, err := s.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	s.logger.InfoContext(ctx, "Starting forecast",
		slog.String("source", src.Describe()),
		slog.Int("years", years))

	return s.pipeline.Run(ctx, c, years)
}

// Export runs the pipeline and writes the forecast CSV to w
func (s *ForecastService) Export(ctx context.Context, src Source, years int, w io.Writer) (*domain.ForecastRun, error) {
	run, err := s.Forecast(ctx, src, years)
	if err != nil {
		return nil, err
	}

	// Buffer so a write failure never leaves a truncated body behind a 200
	var buf bytes.Buffer
	if err := exporter.WriteForecast(&buf, run.Forecast, s.formatOptions); err != nil {
		return nil, apperrors.NewStorageError("failed to encode forecast", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return nil, fmt.Errorf("failed to write forecast: %w", err)
	}
	return run, nil
}

// SaveArtifacts writes the forecast and the reconciled dataset. Empty names
// fall back to the configured files in the reports directory.
func (s *ForecastService) SaveArtifacts(run *domain.ForecastRun, forecastName, recordsName string) (Artifacts, error) {
	if forecastName == "" {
		forecastName = s.paths.ForecastCSV
	}

	var out Artifacts
	path, err := s.writer.WriteForecastFile(forecastName, run.Forecast)
	if err != nil {
		return out, apperrors.NewStorageError("failed to write forecast artifact", err).WithContext("path", forecastName)
	}
	out.ForecastCSV = path

	if recordsName != "" {
		path, err := s.writer.WriteRecordsFile(recordsName, run.Records)
		if err != nil {
			return out, apperrors.NewStorageError("failed to write records artifact", err).WithContext("path", recordsName)
		}
		out.RecordsCSV = path
	}

	s.logger.Info("Artifacts saved",
		slog.String("run_id", run.ID),
		slog.String("forecast_csv", out.ForecastCSV),
		slog.String("records_csv", out.RecordsCSV))
	return out, nil
}

// open resolves src to a container: upload, then spreadsheet, then the
// configured spreadsheet, then the default workbook
func (s *ForecastService) open(ctx context.Context, src Source) (dataprocessing.Container, error) {
	if src.Upload != nil {
		if err := s.validator.ValidateUpload(src.UploadName, src.Upload); err != nil {
			return nil, err
		}
		name := src.UploadName
		if name == "" {
			name = "upload.xlsx"
		}
		return dataprocessing.OpenExcelReader(bytes.NewReader(src.Upload), name)
	}

	id := src.SpreadsheetID
	if id == "" {
		id = s.source.SpreadsheetID
	}
	if id != "" {
		return s.openSheets(ctx, id, s.paths.CredentialsFile)
	}

	if err := s.validator.ValidateWorkbookFile(s.paths.Workbook); err != nil {
		return nil, err
	}
	return dataprocessing.OpenExcelFile(s.paths.Workbook)
}
