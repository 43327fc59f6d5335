package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "revforecast/internal/errors"
	"revforecast/internal/infrastructure"
	"revforecast/internal/insights"
	"revforecast/internal/services"
	"revforecast/pkg/contracts/domain"
)

// ForecastRunner is the part of services.ForecastService the handler needs
type ForecastRunner interface {
	Forecast(ctx context.Context, src services.Source, years int) (*domain.ForecastRun, error)
	Export(ctx context.Context, src services.Source, years int, w io.Writer) (*domain.ForecastRun, error)
	ExportFile() string
}

// ForecastResponse is the JSON body of a successful forecast request
type ForecastResponse struct {
	RunID           string                    `json:"run_id"`
	HorizonYears    int                       `json:"horizon_years"`
	LatestKnownYear int                       `json:"latest_known_year"`
	Records         []domain.ReconciledRecord `json:"records"`
	Insights        domain.ForecastInsights   `json:"insights"`
	Messages        []string                  `json:"messages"`
	Forecast        []domain.ForecastPoint    `json:"forecast"`
	Steps           []domain.StepReport       `json:"steps,omitempty"`
	DurationMS      int64                     `json:"duration_ms"`
}

// Render implements render.Renderer
func (fr *ForecastResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// NewForecastResponse shapes a completed run for the wire
func NewForecastResponse(run *domain.ForecastRun) *ForecastResponse {
	return &ForecastResponse{
		RunID:           run.ID,
		HorizonYears:    run.HorizonYears,
		LatestKnownYear: run.Insights.LatestKnownYear,
		Records:         run.Records,
		Insights:        run.Insights,
		Messages:        insights.Lines(run.Insights),
		Forecast:        run.Forecast,
		Steps:           run.Steps,
		DurationMS:      run.CompletedAt.Sub(run.StartedAt).Milliseconds(),
	}
}

// ForecastHandler serves forecast runs over HTTP
type ForecastHandler struct {
	service        ForecastRunner
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(service ForecastRunner, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ForecastHandler {
	return &ForecastHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         infrastructure.WithComponent(logger, "forecast_handler"),
		errorHandler:   errorHandler,
	}
}

// Routes returns the forecast routes, mounted under /api/forecast
func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(render.SetContentType(render.ContentTypeJSON)).Get("/", h.GetForecast)
	r.With(render.SetContentType(render.ContentTypeJSON)).Post("/", h.PostForecast)

	r.Get("/export", h.GetExport)
	r.Post("/export", h.PostExport)

	return r
}

// GetForecast handles GET /api/forecast on the configured source
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	h.forecast(w, r, false)
}

// PostForecast handles POST /api/forecast with an uploaded workbook
func (h *ForecastHandler) PostForecast(w http.ResponseWriter, r *http.Request) {
	h.forecast(w, r, true)
}

// GetExport handles GET /api/forecast/export
func (h *ForecastHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, false)
}

// PostExport handles POST /api/forecast/export
func (h *ForecastHandler) PostExport(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, true)
}

func (h *ForecastHandler) forecast(w http.ResponseWriter, r *http.Request, upload bool) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	years, src, err := h.parseRequest(w, r, upload)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "forecast requested",
		slog.String("request_id", reqID),
		slog.String("source", src.Describe()),
		slog.Int("years", years),
	)

	run, err := h.service.Forecast(ctx, src, years)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	if err := render.Render(w, r, NewForecastResponse(run)); err != nil {
		h.logger.ErrorContext(ctx, "failed to render forecast", slog.String("error", err.Error()))
	}
}

func (h *ForecastHandler) export(w http.ResponseWriter, r *http.Request, upload bool) {
	ctx := r.Context()

	years, src, err := h.parseRequest(w, r, upload)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Export buffers the whole CSV, so nothing reaches w before the run succeeds
	var body bytes.Buffer
	run, err := h.service.Export(ctx, src, years, &body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", h.service.ExportFile()))
	w.Header().Set("X-Run-ID", run.ID)
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := body.WriteTo(w); err != nil {
		h.logger.WarnContext(ctx, "failed to write export", slog.String("error", err.Error()))
	}
}

// parseRequest reads the horizon and, for uploads, the multipart workbook.
// years of 0 means the configured default.
func (h *ForecastHandler) parseRequest(w http.ResponseWriter, r *http.Request, upload bool) (int, services.Source, error) {
	var src services.Source

	years := 0
	if raw := r.URL.Query().Get("years"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, src, apierrors.InvalidParameter("years", fmt.Errorf("must be an integer, got %q", raw))
		}
		if n <= 0 {
			return 0, src, apierrors.InvalidParameter("years", fmt.Errorf("must be positive, got %d", n))
		}
		years = n
	}

	src.SpreadsheetID = r.URL.Query().Get("sheet_id")
	if !upload {
		return years, src, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return 0, src, apierrors.ErrPayloadTooLarge
		}
		return 0, src, apierrors.InvalidParameter("file", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return 0, src, apierrors.ErrMissingUpload
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return 0, src, apierrors.InvalidParameter("file", err)
	}
	src.Upload = data
	src.UploadName = header.Filename
	return years, src, nil
}
