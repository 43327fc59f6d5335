package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"revforecast/internal/infrastructure"
)

// Common error types following RFC 7807
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypePayloadTooLarge = "/errors/payload-too-large"
)

// Forecast pipeline error types
const (
	TypeMissingTable        = "/errors/data/missing-table"
	TypeSchemaShape         = "/errors/data/schema-shape"
	TypeMalformedValue      = "/errors/data/malformed-value"
	TypeDuplicateKey        = "/errors/data/duplicate-key"
	TypeIncompletePeriod    = "/errors/data/incomplete-period"
	TypeInsufficientHistory = "/errors/data/insufficient-history"
	TypeInvalidHorizon      = "/errors/forecast/invalid-horizon"
	TypeForecastFit         = "/errors/forecast/fit-failed"
	TypeSourceUnreadable    = "/errors/data/source-unreadable"
)

type kindProblem struct {
	status int
	typ    string
	title  string
}

var kindProblems = map[Kind]kindProblem{
	KindMissingTable:        {http.StatusUnprocessableEntity, TypeMissingTable, "Missing Table"},
	KindSchemaShape:         {http.StatusUnprocessableEntity, TypeSchemaShape, "Unexpected Table Shape"},
	KindMalformedValue:      {http.StatusUnprocessableEntity, TypeMalformedValue, "Malformed Value"},
	KindDuplicateKey:        {http.StatusUnprocessableEntity, TypeDuplicateKey, "Duplicate Period"},
	KindIncompletePeriod:    {http.StatusUnprocessableEntity, TypeIncompletePeriod, "Incomplete Period"},
	KindInsufficientHistory: {http.StatusUnprocessableEntity, TypeInsufficientHistory, "Insufficient History"},
	KindInvalidHorizon:      {http.StatusBadRequest, TypeInvalidHorizon, "Invalid Horizon"},
	KindForecastFit:         {http.StatusBadGateway, TypeForecastFit, "Forecast Failed"},
}

// StatusForKind returns the HTTP status a pipeline error kind maps to.
func StatusForKind(kind Kind) int {
	if p, ok := kindProblems[kind]; ok {
		return p.status
	}
	return http.StatusInternalServerError
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       infrastructure.WithComponent(logger, "error_handler"),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipelineErrorToProblem(pipeErr, r)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

func pipelineErrorToProblem(pe *PipelineError, r *http.Request) *ProblemDetails {
	kp, ok := kindProblems[pe.Kind]
	if !ok {
		kp = kindProblem{http.StatusInternalServerError, TypeInternal, "Internal Server Error"}
	}

	detail := pe.Message
	if pe.Cause != nil && pe.Kind == KindForecastFit {
		detail = fmt.Sprintf("%s: %v", pe.Message, pe.Cause)
	}

	problem := NewProblemDetails(kp.status, kp.typ, kp.title, detail, r.URL.Path).
		WithExtension("error_kind", string(pe.Kind))
	if pe.Stage != "" {
		problem.WithExtension("stage", pe.Stage)
	}
	for k, v := range pe.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

func appErrorToProblem(ae *AppError, r *http.Request) *ProblemDetails {
	switch ae.Type {
	case ErrTypeSource:
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeSourceUnreadable,
			"Unreadable Workbook", ae.Error(), r.URL.Path)
	case ErrTypeValidation:
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Validation Failed", ae.Message, r.URL.Path)
	case ErrTypeNotFound:
		return NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Resource Not Found", ae.Message, r.URL.Path)
	case ErrTypeBusy:
		return NewProblemDetails(http.StatusServiceUnavailable, TypeServiceDown,
			"Service Busy", ae.Message, r.URL.Path).WithExtension("retry_after", 5)
	}
	return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred while processing your request", r.URL.Path)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "INVALID_PARAMETER", "MISSING_UPLOAD":
		problemType = TypeValidation
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
