package api

import (
	"errors"
	"fmt"

	"classcoach/internal/analysis"
)

var (
	// ErrNotFound is returned for unknown analysis ids. It is the store's
	// sentinel so errors.Is works on both sides of the wire.
	ErrNotFound = analysis.ErrNotFound

	// ErrNotCompleted is returned when results are requested before the
	// record reached completed.
	ErrNotCompleted = errors.New("analysis not completed")

	// ErrPollTimeout is returned when polling exceeds its overall ceiling.
	ErrPollTimeout = errors.New("timed out waiting for analysis")
)

// HTTPError is an unexpected daemon reply.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned http %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned http %d: %s", e.StatusCode, e.Message)
}
