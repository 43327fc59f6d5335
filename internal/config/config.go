package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. REVCAST_FORECAST_DEFAULT_YEARS.
const EnvPrefix = "REVCAST"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Forecast  ForecastConfig  `yaml:"forecast" envconfig:"FORECAST"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains request limiting configuration
type SecurityConfig struct {
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	MaxUploadBytes int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// SourceConfig selects and describes the input workbook
type SourceConfig struct {
	// Workbook is the default xlsx file, relative to the data directory unless absolute
	Workbook        string      `yaml:"workbook" envconfig:"WORKBOOK"`
	SpreadsheetID   string      `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile string      `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	Sheets          SheetConfig `yaml:"sheets" envconfig:"SHEETS"`
	CurrencySymbol  string      `yaml:"currency_symbol" envconfig:"CURRENCY_SYMBOL"`
	GroupSeparator  string      `yaml:"group_separator" envconfig:"GROUP_SEPARATOR"`
}

// SheetConfig names the sheet holding each metric. Trailing spaces are significant.
type SheetConfig struct {
	Revenue      string `yaml:"revenue" envconfig:"REVENUE" validate:"required"`
	Subscribers  string `yaml:"subscribers" envconfig:"SUBSCRIBERS" validate:"required"`
	ContentSpend string `yaml:"content_spend" envconfig:"CONTENT_SPEND" validate:"required"`
	NetIncome    string `yaml:"net_income" envconfig:"NET_INCOME" validate:"required"`
}

// ForecastConfig contains forecasting and export settings
type ForecastConfig struct {
	DefaultYears      int           `yaml:"default_years" envconfig:"DEFAULT_YEARS" validate:"gtefield=MinYears,ltefield=MaxYears"`
	MinYears          int           `yaml:"min_years" envconfig:"MIN_YEARS" validate:"min=1"`
	MaxYears          int           `yaml:"max_years" envconfig:"MAX_YEARS" validate:"gtefield=MinYears"`
	YearlySeasonality bool          `yaml:"yearly_seasonality" envconfig:"YEARLY_SEASONALITY"`
	FourierOrder      int           `yaml:"fourier_order" envconfig:"FOURIER_ORDER" validate:"min=1,max=20"`
	IntervalWidth     float64       `yaml:"interval_width" envconfig:"INTERVAL_WIDTH" validate:"gt=0,lt=1"`
	JoinStrategy      string        `yaml:"join_strategy" envconfig:"JOIN_STRATEGY" validate:"oneof=inner strict"`
	ExportPrecision   int           `yaml:"export_precision" envconfig:"EXPORT_PRECISION" validate:"eq=-1|min=6,max=12"`
	ExportBOM         bool          `yaml:"export_bom" envconfig:"EXPORT_BOM"`
	ExportFile        string        `yaml:"export_file" envconfig:"EXPORT_FILE" validate:"required"`
	MaxConcurrentRuns int64         `yaml:"max_concurrent_runs" envconfig:"MAX_CONCURRENT_RUNS" validate:"min=1"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// TelemetryConfig controls tracing and metrics export
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TracesEnabled  bool    `yaml:"traces_enabled" envconfig:"TRACES_ENABLED"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Load builds the configuration from defaults, an optional YAML file and
// REVCAST_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are set override; defaults live in Default().
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and normalizes logging settings
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Source.Workbook == "" && c.Source.SpreadsheetID == "" {
		return fmt.Errorf("either source.workbook or source.spreadsheet_id must be set")
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

var validate = validator.New()

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
			MaxUploadBytes: 10 << 20,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ReportsDir: "reports",
			LogsDir:    "logs",
		},
		Source: SourceConfig{
			Workbook: DefaultWorkbook,
			Sheets: SheetConfig{
				Revenue:      DefaultRevenueSheet,
				Subscribers:  DefaultSubscribersSheet,
				ContentSpend: DefaultContentSpendSheet,
				NetIncome:    DefaultNetIncomeSheet,
			},
			CurrencySymbol: "$",
			GroupSeparator: ",",
		},
		Forecast: ForecastConfig{
			DefaultYears:      5,
			MinYears:          1,
			MaxYears:          10,
			YearlySeasonality: true,
			FourierOrder:      10,
			IntervalWidth:     0.8,
			JoinStrategy:      "inner",
			ExportPrecision:   6,
			ExportFile:        DefaultExportFile,
			MaxConcurrentRuns: 2,
			Timeout:           60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "revforecast",
			Environment:    "development",
			MetricsEnabled: true,
			SampleRatio:    1.0,
		},
	}
}
