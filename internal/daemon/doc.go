// Package daemon coordinates the long-running classcoach process.
//
// It wires configuration, the analysis store, the workflow manager, and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances sharing one database. The daemon accepts submissions
// (storing the upload, creating the record, and nudging the workflow) and
// answers status queries through the api package's reporter.
//
// Keep orchestration logic here: pipeline stages live in their service
// packages and the state machine lives in workflow, while the daemon focuses
// on startup, shutdown, and the outer HTTP surface.
package daemon
