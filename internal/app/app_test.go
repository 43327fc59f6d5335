package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revforecast/internal/config"
	"revforecast/internal/shared/testutil"
)

// createTestLogger creates a logger that discards output for testing
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// testConfig roots every path in a temp dir and binds an ephemeral port
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	app, err := NewApplication(cfg, WithLogger(createTestLogger()))
	require.NoError(t, err)
	return app
}

func serve(app *Application, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewApplication(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)

	assert.NotNil(t, app.Services.Forecast)
	assert.NotNil(t, app.Services.Health)
	assert.DirExists(t, app.Paths.ReportsDir)
	assert.Equal(t, "127.0.0.1:0", app.Server.Addr)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK},
		{"liveness", http.MethodGet, "/api/health/live", http.StatusOK},
		{"readiness without workbook", http.MethodGet, "/api/health/ready", http.StatusServiceUnavailable},
		{"forecast without workbook", http.MethodGet, "/api/forecast?years=1", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/unknown", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/forecast/export", http.StatusMethodNotAllowed},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.method, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestApplication_ForecastEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	testutil.WriteWorkbook(t, app.Paths.DataDir, config.DefaultWorkbook, testutil.StandardSheets())

	rec := serve(app, http.MethodGet, "/api/forecast?years=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body struct {
		RunID           string            `json:"run_id"`
		HorizonYears    int               `json:"horizon_years"`
		LatestKnownYear int               `json:"latest_known_year"`
		Records         []json.RawMessage `json:"records"`
		Forecast        []json.RawMessage `json:"forecast"`
		Messages        []string          `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, 2, body.HorizonYears)
	assert.Equal(t, 2023, body.LatestKnownYear)
	assert.Len(t, body.Records, 13)
	assert.Len(t, body.Forecast, 13+2*365)
	require.Len(t, body.Messages, 3)
	assert.Contains(t, body.Messages[0], "Predicted Revenue for 2024: $")

	rec = serve(app, http.MethodGet, "/api/forecast?years=11")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_horizon")

	rec = serve(app, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forecast_runs")
	assert.Contains(t, rec.Body.String(), "http_requests")
}

func TestApplication_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	app := newTestApp(t, cfg)

	assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/api/health").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(app, http.MethodGet, "/api/health").Code)

	// Metrics bypass the limiter
	assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/metrics").Code)
}

func TestApplication_StartStop(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", app.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(context.Background()))

	_, err = http.Get(fmt.Sprintf("http://%s/api/health", app.Addr()))
	assert.Error(t, err)
}

func TestApplication_StartPortInUse(t *testing.T) {
	first := newTestApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, first.Start(ctx, cancel))
	defer first.Stop(context.Background())

	cfg := testConfig(t)
	second := newTestApp(t, cfg)
	second.Server.Addr = first.Addr()

	err := second.Start(ctx, cancel)
	assert.Error(t, err)
}

func TestApplication_RunStopsOnContext(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- app.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Application did not shutdown within timeout")
	}
}

func TestApplication_performStartupHealthCheck(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	err := app.performStartupHealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")

	testutil.WriteWorkbook(t, app.Paths.DataDir, config.DefaultWorkbook, testutil.StandardSheets())
	assert.NoError(t, app.performStartupHealthCheck(context.Background()))
}
