package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classcoach/internal/analysis"
)

// Result is a successful stage outcome.
type Result struct {
	Payload  analysis.Document
	Duration time.Duration
}

// Runner executes a Service under a fixed timeout.
type Runner struct {
	service Service
	timeout time.Duration
}

// NewRunner wraps service. A non-positive timeout disables the ceiling.
func NewRunner(service Service, timeout time.Duration) *Runner {
	return &Runner{service: service, timeout: timeout}
}

// Name reports the wrapped service's stage name.
func (r *Runner) Name() string {
	return r.service.Name()
}

// Timeout reports the configured ceiling.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// HealthCheck delegates to the wrapped service.
func (r *Runner) HealthCheck(ctx context.Context) Health {
	return r.service.HealthCheck(ctx)
}

type outcome struct {
	payload analysis.Document
	err     error
}

// Run invokes the service once. The call runs on its own goroutine so a
// service that ignores ctx still cannot hold the runner past the timeout.
// Every error returned is a *Failure; when the parent ctx is cancelled the
// Failure has ReasonCanceled and unwraps to the context error.
func (r *Runner) Run(ctx context.Context, in Input) (Result, error) {
	name := r.service.Name()
	start := time.Now()

	var runCtx context.Context
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: &Failure{Stage: name, Reason: ReasonPanic, Err: fmt.Errorf("%v", rec)}}
			}
		}()
		payload, err := r.service.Run(runCtx, in)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if parentErr := ctx.Err(); parentErr != nil {
				return Result{}, &Failure{Stage: name, Reason: ReasonCanceled, Err: parentErr}
			}
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return Result{}, r.timeoutFailure(name)
			}
			return Result{}, Classify(name, out.err)
		}
		if len(out.payload) == 0 {
			return Result{}, &Failure{Stage: name, Reason: ReasonEmptyResult, Err: errors.New("service returned no data")}
		}
		return Result{Payload: out.payload, Duration: time.Since(start)}, nil
	case <-runCtx.Done():
		if parentErr := ctx.Err(); parentErr != nil {
			return Result{}, &Failure{Stage: name, Reason: ReasonCanceled, Err: parentErr}
		}
		return Result{}, r.timeoutFailure(name)
	}
}

func (r *Runner) timeoutFailure(name string) *Failure {
	return &Failure{
		Stage:     name,
		Reason:    ReasonTimeout,
		Retryable: true,
		Err:       fmt.Errorf("no result within %s: %w", r.timeout, context.DeadlineExceeded),
	}
}
