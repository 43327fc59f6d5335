// Package operations orchestrates a forecast run.
//
// A run executes these stages strictly in order, each consuming the previous
// stage's output:
//
//	validate → load → normalize → reconcile → build_series → forecast → insights
//
// Every stage is tracked by a StepState, traced as a child span of the run and
// timed in the forecast_stage_duration_seconds histogram. The first failing
// stage ends the run; its error is returned unchanged apart from being tagged
// with the stage name, so callers can classify it with errors.KindOf.
//
// Example usage:
//
//	pipeline, err := operations.NewPipelineFromConfig(cfg, tracer, logger)
//	run, err := pipeline.Run(ctx, container, 5)
package operations
