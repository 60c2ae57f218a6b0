// Package analysis persists classroom recording analyses in SQLite and owns
// the status graph that the pipeline walks.
//
// Each AudioAnalysis moves forward through uploaded, transcribing,
// analyzing_prosody, generating_feedback and completed, or drops to error from
// any processing status. The Store enforces the graph itself: every Update is
// a single guarded statement that only applies while the row still carries
// the expected status, so two drivers racing for the same record cannot both
// win. Result documents are written exactly once, on the edge that leaves
// their stage, and terminal records are never written again.
//
// Schema changes bump schemaVersion in schema.go; an existing database with a
// different version is rejected with ErrSchemaMismatch.
package analysis
