package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved application paths
type Paths struct {
	BaseDir    string
	DataDir    string
	ReportsDir string
	LogsDir    string

	Workbook        string
	CredentialsFile string
	ForecastCSV     string
	RecordsCSV      string
}

// ResolvePaths turns the configured relative paths into absolute ones. Relative
// directories are anchored at Paths.BaseDir, or the working directory when unset.
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base dir: %w", err)
	}

	anchor := func(root, p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	p := &Paths{
		BaseDir:    base,
		DataDir:    anchor(base, c.Paths.DataDir),
		ReportsDir: anchor(base, c.Paths.ReportsDir),
		LogsDir:    anchor(base, c.Paths.LogsDir),
	}
	p.Workbook = anchor(p.DataDir, c.Source.Workbook)
	p.CredentialsFile = anchor(base, c.Source.CredentialsFile)
	p.ForecastCSV = filepath.Join(p.ReportsDir, c.Forecast.ExportFile)
	p.RecordsCSV = filepath.Join(p.ReportsDir, DefaultRecordFile)

	return p, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetReportPath returns the full path for a file in the reports directory
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LogPathResolution logs path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("workbook", p.Workbook),
			slog.String("credentials", p.CredentialsFile),
			slog.String("forecast_csv", p.ForecastCSV),
		))
}
