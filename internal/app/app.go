package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"

	"revforecast/internal/config"
	apperrors "revforecast/internal/errors"
	"revforecast/internal/infrastructure"
	customMiddleware "revforecast/internal/middleware"
	"revforecast/internal/operations"
	"revforecast/internal/services"
	handlers "revforecast/internal/transport/http"
	"revforecast/internal/validation"
)

const (
	Version = infrastructure.ServiceVersion
	AppName = "Netflix Revenue Forecast"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders

	listener net.Listener
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Forecast *services.ForecastService
	Health   *services.HealthService
}

// Option customizes NewApplication
type Option func(*Application)

// WithLogger uses logger instead of initializing the global one from config
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) {
		a.Logger = logger
	}
}

// NewApplication wires configuration, telemetry, services and the router.
// A nil cfg is loaded from the config file and REVCAST_* environment.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	app := &Application{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}

	if app.Logger == nil {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		app.Logger = logger
	}

	app.Logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(app.Logger)
	app.Paths = paths

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	providers, err := infrastructure.InitializeOTel(otelCfg, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	app.OTelProviders = providers

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	app.createServer()
	return app, nil
}

func (a *Application) initializeServices() error {
	tracer, err := operations.NewPipelineTracer()
	if err != nil {
		return fmt.Errorf("failed to create pipeline tracer: %w", err)
	}

	forecast, err := services.NewForecastServiceFromConfig(a.Config, a.Paths, tracer, a.Logger)
	if err != nil {
		return err
	}

	a.Services = &ServiceContainer{
		Forecast: forecast,
		Health:   services.NewHealthService(Version, a.Config, a.Paths, forecast, a.Logger),
	}
	return nil
}

func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(otel.GetTracerProvider(), otel.GetMeterProvider(), a.Logger)
	if err != nil {
		return err
	}

	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				errorHandler,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r, errorHandler)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Scrapes stay outside the rate limiter and request metrics
	r.Handle("/metrics", a.OTelProviders.MetricsHandler())

	a.Router = r
	return nil
}

func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apperrors.ErrorHandler) {
	forecastHandler := handlers.NewForecastHandler(
		a.Services.Forecast,
		a.Config.Security.MaxUploadBytes,
		a.Logger,
		errorHandler,
	)
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/forecast", forecastHandler.Routes())
		r.Mount("/health", healthHandler.Routes())
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           net.JoinHostPort(a.Config.Server.Host, fmt.Sprint(a.Config.Server.Port)),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Addr returns the bound address once Start has succeeded
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Start binds the listener and serves in the background. Serve errors
// cancel the application context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Server error")
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://%s", ln.Addr().String())))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Error shutting down OpenTelemetry")
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted or ctx is done
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// The parent may already be cancelled; shutdown still needs a live context
	return a.Stop(context.WithoutCancel(ctx))
}

// performStartupHealthCheck reports what would make a default forecast fail
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	validator := validation.NewFileValidator(a.Logger)
	for _, dir := range []string{a.Paths.ReportsDir, a.Paths.LogsDir} {
		if err := validator.ValidateOutputDirectory(dir); err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	readiness := a.Services.Health.ReadinessCheck(ctx)
	for name, sh := range readiness.Services {
		if sh.Status != "ready" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", name, sh.Message))
		}
	}

	if a.Config.Source.CredentialsFile != "" && !config.FileExists(a.Paths.CredentialsFile) {
		a.Logger.InfoContext(ctx, "Credentials file not found",
			slog.String("path", a.Paths.CredentialsFile))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
