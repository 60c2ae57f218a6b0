// Package api defines wire-format types, converters and clients for the
// daemon HTTP API. It translates analysis records and workflow status into
// transport-friendly DTOs so the CLI and other consumers can render them
// without coupling to internal types.
//
// # Key Types
//
// Analysis: the full record with educational context and stage results.
//
// AnalysisStatus: the lightweight status view clients poll.
//
// WorkflowStatus / DaemonStatus: manager state, queue stats, stage health,
// preflight results and the last watchdog sweep.
//
// # Reading
//
// StatusReporter answers status, describe, results and history queries
// directly from the record store. Every call is a pure read.
//
// # Clients
//
// Client talks to a running daemon over HTTP. Poll and
// Client.WaitForCompletion poll the status view at a constant interval until
// the record reaches completed or error.
//
// # Design Notes
//
// DTOs use snake_case JSON tags matching the original status routes.
// Timestamps use RFC3339 with milliseconds. Stage results are passed through
// as JSON objects.
package api
