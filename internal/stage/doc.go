// Package stage runs one pipeline stage against its external service.
//
// A Runner wraps a Service with a hard timeout and turns every way a call can
// go wrong (deadline, upstream rate limiting, malformed payload, panic, empty
// result) into a *Failure carrying a stable reason string. The orchestrator
// persists Failure.Error() verbatim as the record's error message, so the
// reason vocabulary here is what operators and polling clients see.
package stage
