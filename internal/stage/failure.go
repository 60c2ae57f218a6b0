package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classcoach/internal/services"
)

// Reason is the stable failure vocabulary recorded in error messages.
type Reason string

const (
	ReasonTimeout            Reason = "timeout"
	ReasonInvalidResponse    Reason = "invalid_response"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonServiceUnavailable Reason = "service_unavailable"
	ReasonInvalidFormat      Reason = "invalid_format"
	ReasonEmptyResult        Reason = "empty_result"
	ReasonPanic              Reason = "panic"
	ReasonStageError         Reason = "stage_error"
	ReasonCanceled           Reason = "canceled"
)

// Failure describes why a stage did not produce a result. Retryable is
// informational: the pipeline never retries a stage on its own.
type Failure struct {
	Stage     string
	Reason    Reason
	Retryable bool
	Err       error
}

func (f *Failure) Error() string {
	detail := string(f.Reason)
	if f.Err != nil {
		if msg := strings.TrimSpace(f.Err.Error()); msg != "" {
			detail = msg
		}
	}
	return fmt.Sprintf("%s: %s: %s", f.Stage, f.Reason, detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// Classify maps a service error onto a Failure for stage.
func Classify(stage string, err error) *Failure {
	if existing, ok := AsFailure(err); ok {
		return existing
	}
	failure := &Failure{Stage: stage, Err: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		failure.Reason, failure.Retryable = ReasonTimeout, true
	case errors.Is(err, context.Canceled):
		failure.Reason = ReasonCanceled
	case errors.Is(err, services.ErrInvalidResponse):
		failure.Reason = ReasonInvalidResponse
	case errors.Is(err, services.ErrRateLimited):
		failure.Reason, failure.Retryable = ReasonRateLimited, true
	case errors.Is(err, services.ErrUnavailable):
		failure.Reason, failure.Retryable = ReasonServiceUnavailable, true
	case errors.Is(err, services.ErrInvalidFormat):
		failure.Reason = ReasonInvalidFormat
	default:
		failure.Reason = ReasonStageError
		failure.Retryable = errors.Is(err, services.ErrTransient)
	}
	return failure
}
