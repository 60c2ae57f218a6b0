// Package feedback produces teaching feedback with the RIC (Reflective
// Instruction Coach) rubric. It summarizes the transcription and prosody
// results together with the lesson context, asks an OpenAI-compatible chat
// model for a JSON evaluation, and validates the reply before it is stored.
package feedback
