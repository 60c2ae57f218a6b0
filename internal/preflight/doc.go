// Package preflight provides readiness checks for the filesystem paths and
// upstream APIs classcoach depends on.
//
// RunAll holds only local checks (directories, free space, configured API
// keys) and is what the workflow manager records at startup. RunServices
// probes the transcription and chat APIs over the network; the CLI calls it
// on demand because the chat probe spends a completion.
package preflight
