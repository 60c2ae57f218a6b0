// Package workflow drives analysis records through the pipeline.
//
// The Orchestrator runs one record through transcription, prosodic analysis
// and feedback generation, persisting a guarded status transition after every
// stage. Stage failures end the record in the error status with a
// "<stage>: <reason>: <detail>" message; they are never returned to callers.
//
// The Manager polls the store for uploaded records, accepts direct Submit
// triggers from the API, and dispatches each record on its own goroutine with
// a bounded errgroup. The Watchdog sweeps records left in a processing status
// past the stall timeout into error, which covers drivers that died with the
// previous daemon process.
//
// Correctness under duplicate triggers comes from the store's guarded update;
// the Manager's in-flight set only avoids redundant work.
package workflow
