package stage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcoach/internal/analysis"
	"classcoach/internal/services"
	"classcoach/internal/stage"
)

type funcService struct {
	name string
	run  func(ctx context.Context, in stage.Input) (analysis.Document, error)
}

func (s funcService) Name() string { return s.name }

func (s funcService) Run(ctx context.Context, in stage.Input) (analysis.Document, error) {
	return s.run(ctx, in)
}

func (s funcService) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

func TestRunnerReturnsPayload(t *testing.T) {
	svc := funcService{name: "transcription", run: func(_ context.Context, in stage.Input) (analysis.Document, error) {
		assert.Equal(t, "clase.wav", in.SourceRef)
		return analysis.Document{"text": "hola clase"}, nil
	}}
	result, err := stage.NewRunner(svc, time.Second).Run(context.Background(), stage.Input{SourceRef: "clase.wav"})
	require.NoError(t, err)
	assert.Equal(t, analysis.Document{"text": "hola clase"}, result.Payload)
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))
}

func TestRunnerTimesOutEvenWhenServiceIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	svc := funcService{name: "prosody", run: func(context.Context, stage.Input) (analysis.Document, error) {
		<-release
		return analysis.Document{"late": true}, nil
	}}

	start := time.Now()
	_, err := stage.NewRunner(svc, 50*time.Millisecond).Run(context.Background(), stage.Input{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	failure, ok := stage.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, stage.ReasonTimeout, failure.Reason)
	assert.True(t, failure.Retryable)
	assert.Equal(t, "prosody", failure.Stage)
	assert.Contains(t, err.Error(), "prosody: timeout: ")
}

func TestRunnerClassifiesServiceErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		reason    stage.Reason
		retryable bool
	}{
		{"invalid response", services.Wrap(services.ErrInvalidResponse, "feedback", "parse", "missing scores", nil), stage.ReasonInvalidResponse, false},
		{"rate limited", services.Wrap(services.ErrRateLimited, "transcription", "post", "429", nil), stage.ReasonRateLimited, true},
		{"unavailable", services.Wrap(services.ErrUnavailable, "transcription", "post", "503", nil), stage.ReasonServiceUnavailable, true},
		{"invalid format", services.Wrap(services.ErrInvalidFormat, "prosody", "decode", "not audio", nil), stage.ReasonInvalidFormat, false},
		{"upstream timeout", services.Wrap(services.ErrTimeout, "llm", "complete", "408", nil), stage.ReasonTimeout, true},
		{"transient", services.Wrap(services.ErrTransient, "x", "y", "z", nil), stage.ReasonStageError, true},
		{"plain", errors.New("boom"), stage.ReasonStageError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := funcService{name: "feedback", run: func(context.Context, stage.Input) (analysis.Document, error) {
				return nil, tt.err
			}}
			_, err := stage.NewRunner(svc, time.Second).Run(context.Background(), stage.Input{})
			failure, ok := stage.AsFailure(err)
			require.True(t, ok, "expected *Failure, got %T", err)
			assert.Equal(t, tt.reason, failure.Reason)
			assert.Equal(t, tt.retryable, failure.Retryable)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRunnerEmptyPayloadFails(t *testing.T) {
	svc := funcService{name: "feedback", run: func(context.Context, stage.Input) (analysis.Document, error) {
		return analysis.Document{}, nil
	}}
	_, err := stage.NewRunner(svc, time.Second).Run(context.Background(), stage.Input{})
	failure, ok := stage.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, stage.ReasonEmptyResult, failure.Reason)
}

func TestRunnerRecoversPanics(t *testing.T) {
	svc := funcService{name: "prosody", run: func(context.Context, stage.Input) (analysis.Document, error) {
		panic("decoder exploded")
	}}
	_, err := stage.NewRunner(svc, time.Second).Run(context.Background(), stage.Input{})
	failure, ok := stage.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, stage.ReasonPanic, failure.Reason)
	assert.Contains(t, failure.Error(), "decoder exploded")
}

func TestRunnerParentCancellationIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	svc := funcService{name: "transcription", run: func(ctx context.Context, _ stage.Input) (analysis.Document, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	go func() {
		<-started
		cancel()
	}()
	_, err := stage.NewRunner(svc, time.Minute).Run(ctx, stage.Input{})
	failure, ok := stage.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, stage.ReasonCanceled, failure.Reason)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailureErrorFormat(t *testing.T) {
	f := &stage.Failure{Stage: "transcription", Reason: stage.ReasonRateLimited, Err: errors.New("slow down")}
	assert.Equal(t, "transcription: rate_limited: slow down", f.Error())

	bare := &stage.Failure{Stage: "feedback", Reason: stage.ReasonEmptyResult}
	assert.Equal(t, "feedback: empty_result: empty_result", bare.Error())
}

// parentContext counts the child contexts currently registered against it.
// The context package registers children through AfterFunc when the parent
// is not one of its own types, and calls the returned stop func once the
// child is cancelled.
type parentContext struct {
	done chan struct{}

	mu       sync.Mutex
	children int
}

func newParentContext() *parentContext {
	return &parentContext{done: make(chan struct{})}
}

func (p *parentContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (p *parentContext) Done() <-chan struct{}       { return p.done }
func (p *parentContext) Err() error                  { return nil }
func (p *parentContext) Value(any) any               { return nil }

func (p *parentContext) AfterFunc(func()) func() bool {
	p.mu.Lock()
	p.children++
	p.mu.Unlock()
	var once sync.Once
	return func() bool {
		once.Do(func() {
			p.mu.Lock()
			p.children--
			p.mu.Unlock()
		})
		return true
	}
}

func (p *parentContext) active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.children
}

func TestRunnerReleasesChildContexts(t *testing.T) {
	svc := funcService{name: "prosody", run: func(context.Context, stage.Input) (analysis.Document, error) {
		return analysis.Document{"speech_rate": 145.0}, nil
	}}

	for _, timeout := range []time.Duration{time.Minute, 0} {
		parent := newParentContext()
		runner := stage.NewRunner(svc, timeout)
		for range 200 {
			_, err := runner.Run(parent, stage.Input{})
			require.NoError(t, err)
		}
		assert.Zero(t, parent.active(), "timeout %s left child contexts attached", timeout)
	}
}
