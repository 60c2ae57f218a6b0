// Package services defines shared utilities consumed by the pipeline stage
// services and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp analysis IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so the stage runner can
//     classify failures (timeout, rate limited, invalid response, ...) with
//     errors.Is regardless of which service produced them.
//
// Use these helpers when wiring new stage logic so failure classification and
// observability stay uniform across the pipeline.
package services
