package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

var errStillRunning = errors.New("analysis still running")

// PollOptions controls Poll.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnUpdate is called whenever the observed status changes.
	OnUpdate func(AnalysisStatus)
}

// StatusFetcher reads the current status of one analysis.
type StatusFetcher func(ctx context.Context) (AnalysisStatus, error)

// Poll calls fetch at a constant interval until the status is terminal.
// ErrNotFound ends polling immediately; other fetch errors are retried until
// the overall timeout, which yields ErrPollTimeout together with the last
// observed status.
func Poll(ctx context.Context, fetch StatusFetcher, opts PollOptions) (AnalysisStatus, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		last    AnalysisStatus
		lastErr error
	)
	operation := func() error {
		status, err := fetch(pollCtx)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return backoff.Permanent(err)
			}
			lastErr = err
			return err
		}
		lastErr = nil
		if status.Status != last.Status && opts.OnUpdate != nil {
			opts.OnUpdate(status)
		}
		last = status
		if status.Terminal() {
			return nil
		}
		return errStillRunning
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(interval), pollCtx)
	err := backoff.Retry(operation, policy)
	if err == nil {
		return last, nil
	}
	if errors.Is(err, ErrNotFound) {
		return last, err
	}
	if ctx.Err() != nil {
		return last, ctx.Err()
	}
	if pollCtx.Err() != nil || errors.Is(err, errStillRunning) {
		if lastErr != nil {
			return last, fmt.Errorf("%w after %s (last error: %v)", ErrPollTimeout, timeout, lastErr)
		}
		return last, fmt.Errorf("%w after %s (status %s)", ErrPollTimeout, timeout, last.Status)
	}
	return last, err
}
