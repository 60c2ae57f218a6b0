// Package transcription wraps an OpenAI-compatible Whisper endpoint and derives
// classroom speech metrics (speaking rate, filler words, punctuation pauses)
// from the returned transcript.
//
// The Service type adapts the client to the stage.Service contract used by the
// workflow orchestrator.
package transcription
