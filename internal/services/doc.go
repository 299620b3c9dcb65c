// Package services defines shared utilities consumed by the story pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp story IDs, sentence indexes, stages, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the pipeline's failure kinds (rate limited, provider error,
//     playback fallback, recorder fatal, cancelled).
//
// Use these helpers when wiring new pipeline steps so operational behaviour
// (error handling, observability, retries) stays uniform across exports.
package services
