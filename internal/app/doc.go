// Package app wires the forecast server together and manages its lifecycle.
//
// NewApplication loads configuration (unless one is passed in), initializes
// the logger and OpenTelemetry providers, builds the forecast and health
// services and mounts their handlers behind the middleware chain:
//
//	RequestID → RealIP → OTel → Logger → Recoverer → Timeout → SecurityHeaders → RateLimit
//
// /metrics is served outside that chain. Run blocks until SIGINT, SIGTERM
// or context cancellation and then shuts the server and telemetry down
// within the configured shutdown timeout.
package app
