// Command forecast runs one revenue forecast and writes the CSV artifact.
//
//	forecast -years 5
//	forecast -in "Netflix Revenue and Usage Statistics.xlsx" -out forecast.csv -records-out merged.csv
//	forecast -sheet-id 1AbC... -credentials creds.json -json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"revforecast/internal/config"
	apperrors "revforecast/internal/errors"
	"revforecast/internal/infrastructure"
	"revforecast/internal/insights"
	"revforecast/internal/services"
	"revforecast/pkg/contracts"
)

// options holds the parsed command line
type options struct {
	configFile  string
	in          string
	sheetID     string
	credentials string
	years       int
	out         string
	recordsOut  string
	jsonOutput  bool
	logLevel    string
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configFile, "config", "", "YAML config file (defaults to REVCAST_CONFIG or config.yaml)")
	fs.StringVar(&opts.in, "in", "", "workbook to read instead of the configured default")
	fs.StringVar(&opts.sheetID, "sheet-id", "", "Google spreadsheet ID to read instead of a workbook")
	fs.StringVar(&opts.credentials, "credentials", "", "service account JSON for -sheet-id")
	fs.IntVar(&opts.years, "years", 0, "forecast horizon in years (0 uses the configured default)")
	fs.StringVar(&opts.out, "out", "", "forecast CSV path (defaults to the reports directory)")
	fs.StringVar(&opts.recordsOut, "records-out", "", "also write the merged yearly dataset to this CSV")
	fs.BoolVar(&opts.jsonOutput, "json", false, "print the whole run as JSON instead of the summary lines")
	fs.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.years < 0 {
		return nil, fmt.Errorf("-years must not be negative, got %d", opts.years)
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFile(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	// Paths given on the command line are relative to the working directory
	abs := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		return filepath.Abs(p)
	}
	if opts.in != "" {
		if cfg.Source.Workbook, err = abs(opts.in); err != nil {
			return nil, err
		}
		// An explicit workbook wins over a configured spreadsheet
		cfg.Source.SpreadsheetID = ""
	}
	if opts.credentials != "" {
		if cfg.Source.CredentialsFile, err = abs(opts.credentials); err != nil {
			return nil, err
		}
	}
	if opts.out, err = abs(opts.out); err != nil {
		return nil, err
	}
	if opts.recordsOut, err = abs(opts.recordsOut); err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout carries the result; logs go to stderr
	logger := infrastructure.NewLogger(cfg.Logging, stderr)

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	svc, err := services.NewForecastServiceFromConfig(cfg, paths, nil, logger)
	if err != nil {
		return err
	}

	ctx = infrastructure.WithTraceID(ctx, infrastructure.GenerateTraceID())
	forecastRun, err := svc.Forecast(ctx, services.Source{SpreadsheetID: opts.sheetID}, opts.years)
	if err != nil {
		return err
	}

	artifacts, err := svc.SaveArtifacts(forecastRun, opts.out, opts.recordsOut)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run       interface{}        `json:"run"`
			Messages  []string           `json:"messages"`
			Artifacts services.Artifacts `json:"artifacts"`
		}{forecastRun, insights.Lines(forecastRun.Insights), artifacts})
	}

	for _, line := range insights.Lines(forecastRun.Insights) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintf(stdout, "Forecast written to %s\n", artifacts.ForecastCSV)
	if artifacts.RecordsCSV != "" {
		fmt.Fprintf(stdout, "Merged dataset written to %s\n", artifacts.RecordsCSV)
	}
	return nil
}

// exitCode separates failed runs (1) from flag and setup errors (2)
func exitCode(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var pe *apperrors.PipelineError
	var ae *apperrors.AppError
	if errors.As(err, &pe) || errors.As(err, &ae) {
		return 1
	}
	return 2
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		code := exitCode(err)
		if code != 0 {
			slog.Error("forecast failed",
				slog.String("error", err.Error()),
				slog.String("error_kind", string(apperrors.KindOf(err))))
		}
		stop()
		os.Exit(code)
	}
}
