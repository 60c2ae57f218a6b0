// Package logging builds the structured slog loggers shared by the classcoach
// CLI, daemon and pipeline stages.
//
// It owns the console and JSON handlers, level parsing and output fan-out to
// a log file, and exposes context helpers so stage code automatically tags
// lines with analysis IDs, stage names and request correlation IDs. A no-op
// logger is available for tests and wiring code that cannot fail.
package logging
