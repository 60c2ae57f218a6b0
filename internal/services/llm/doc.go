// Package llm provides an OpenAI-compatible chat client used by the feedback
// stage.
//
// CompleteJSON sends a system and user prompt with the JSON response format
// and returns the raw JSON string; DecodeLLMJSON unmarshals it while tolerating
// code fences and surrounding prose. HealthCheck is used by preflight.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, empty content and network timeouts
// using cenkalti/backoff exponential backoff (base 1s, max 10s, RetryAttempts
// total tries). A Retry-After header replaces the next delay. Context
// cancellation aborts retries immediately. Failures that survive the retries
// carry a services marker (rate limited, unavailable, invalid response, ...).
package llm
