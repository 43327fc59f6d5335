// Package http implements the HTTP handlers of the forecast server.
//
// Handlers stay thin: they parse the request (horizon, optional
// spreadsheet ID, optional multipart workbook), call the service layer and
// format the result. Errors are never written directly; they go through
// errors.ErrorHandler, which renders RFC 7807 problem documents with the
// status that matches the error's kind.
//
// # Routes
//
//	GET  /api/forecast?years=N          run on the configured source, JSON
//	POST /api/forecast?years=N          run on the uploaded "file" field, JSON
//	GET  /api/forecast/export?years=N   CSV attachment
//	POST /api/forecast/export?years=N   CSV attachment for an upload
//	GET  /api/health[/ready|/live]
//
// Tests drive the handlers through a chi router with httptest.
package http
