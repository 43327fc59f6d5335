package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"revforecast/internal/config"
	"revforecast/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     *config.Paths
	source    config.SourceConfig
	forecast  *ForecastService
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version string, cfg *config.Config, paths *config.Paths, forecast *ForecastService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		paths:     paths,
		source:    cfg.Source,
		forecast:  forecast,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether a default forecast could run now
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"source":  hs.checkSource(),
			"reports": hs.checkReports(),
		},
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	build := contracts.GetVersionInfo()
	rt := map[string]interface{}{
		"uptime":      time.Since(hs.startTime).Seconds(),
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"git_commit":  build.GitCommit,
		"build_time":  build.BuildTime,
		"api_version": build.APIVersion,
	}
	if hs.forecast != nil {
		rt["active_runs"] = hs.forecast.ActiveRuns()
	}
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   rt,
	}
}

func (hs *HealthService) checkSource() ServiceHealth {
	if hs.source.SpreadsheetID != "" {
		return ServiceHealth{Status: "ready", Message: "Google Sheets source configured"}
	}
	if !config.FileExists(hs.paths.Workbook) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Default workbook not found: %s", hs.paths.Workbook),
		}
	}
	return ServiceHealth{Status: "ready", Message: "Default workbook available"}
}

func (hs *HealthService) checkReports() ServiceHealth {
	info, err := os.Stat(hs.paths.ReportsDir)
	if err != nil || !info.IsDir() {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Reports directory not found: %s", hs.paths.ReportsDir),
		}
	}
	return ServiceHealth{Status: "ready"}
}
