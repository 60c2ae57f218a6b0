package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequenceFetcher(statuses ...string) (StatusFetcher, *int) {
	calls := 0
	return func(context.Context) (AnalysisStatus, error) {
		idx := min(calls, len(statuses)-1)
		calls++
		return AnalysisStatus{ID: 7, Status: statuses[idx]}, nil
	}, &calls
}

func TestPollStopsOnTerminalStatus(t *testing.T) {
	fetch, calls := sequenceFetcher("uploaded", "transcribing", "transcribing", "analyzing_prosody", "completed")
	var seen []string
	status, err := Poll(context.Background(), fetch, PollOptions{
		Interval: time.Millisecond,
		Timeout:  5 * time.Second,
		OnUpdate: func(s AnalysisStatus) { seen = append(seen, s.Status) },
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 5, *calls)
	assert.Equal(t, []string{"uploaded", "transcribing", "analyzing_prosody", "completed"}, seen)
}

func TestPollReturnsErrorStatusWithoutError(t *testing.T) {
	fetch, _ := sequenceFetcher("generating_feedback", "error")
	status, err := Poll(context.Background(), fetch, PollOptions{Interval: time.Millisecond, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "error", status.Status)
}

func TestPollNotFoundIsImmediate(t *testing.T) {
	calls := 0
	_, err := Poll(context.Background(), func(context.Context) (AnalysisStatus, error) {
		calls++
		return AnalysisStatus{}, ErrNotFound
	}, PollOptions{Interval: time.Millisecond, Timeout: 5 * time.Second})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestPollTimeout(t *testing.T) {
	fetch, _ := sequenceFetcher("transcribing")
	status, err := Poll(context.Background(), fetch, PollOptions{Interval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond})
	require.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, "transcribing", status.Status)
}

func TestPollRetriesTransientErrors(t *testing.T) {
	calls := 0
	status, err := Poll(context.Background(), func(context.Context) (AnalysisStatus, error) {
		calls++
		if calls < 3 {
			return AnalysisStatus{}, errors.New("connection refused")
		}
		return AnalysisStatus{Status: "completed"}, nil
	}, PollOptions{Interval: time.Millisecond, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 3, calls)
}

func TestPollParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetch, _ := sequenceFetcher("transcribing")
	_, err := Poll(ctx, fetch, PollOptions{Interval: time.Millisecond, Timeout: time.Second})
	assert.ErrorIs(t, err, context.Canceled)
}
