// Package services sits between the transports (HTTP, CLI) and the pipeline.
//
// ForecastService decides which workbook a run reads (an uploaded file, a
// Google spreadsheet or the bundled default workbook), limits how many runs
// execute at once with a weighted semaphore, applies the run timeout and
// writes CSV artifacts. HealthService reports liveness and readiness.
//
// Services take their collaborators through constructors and a *slog.Logger;
// none of them hold global state.
package services
