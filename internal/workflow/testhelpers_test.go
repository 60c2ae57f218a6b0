package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/notifications"
	"classcoach/internal/stage"
	"classcoach/internal/testsupport"
)

type stubStage struct {
	name    string
	payload analysis.Document
	err     error
	panics  bool
	block   bool
	gate    chan struct{}
	calls   atomic.Int32
	lastIn  atomic.Pointer[stage.Input]
}

func newStubStage(name string, payload analysis.Document) *stubStage {
	return &stubStage{name: name, payload: payload}
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Run(ctx context.Context, in stage.Input) (analysis.Document, error) {
	s.calls.Add(1)
	s.lastIn.Store(&in)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

type stubPipeline struct {
	transcription *stubStage
	prosody       *stubStage
	feedback      *stubStage
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{
		transcription: newStubStage(stage.NameTranscription, analysis.Document{"text": "hola clase"}),
		prosody:       newStubStage(stage.NameProsody, analysis.Document{"speech_rate": 145.0}),
		feedback:      newStubStage(stage.NameFeedback, analysis.Document{"scores": map[string]any{"clarity": 80.0}}),
	}
}

func (p *stubPipeline) set() StageSet {
	return StageSet{Transcription: p.transcription, Prosody: p.prosody, Feedback: p.feedback}
}

type publishedEvent struct {
	event   notifications.Event
	payload notifications.Payload
}

type stubNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, publishedEvent{event: event, payload: payload})
	return s.err
}

func (s *stubNotifier) snapshot() []publishedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]publishedEvent(nil), s.events...)
}

type harness struct {
	cfg      *config.Config
	store    *analysis.Store
	pipeline *stubPipeline
	notifier *stubNotifier
	orch     *Orchestrator
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Transcription.TimeoutSeconds = 1
	cfg.Prosody.TimeoutSeconds = 1
	cfg.LLM.StageTimeoutSeconds = 1
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:      cfg,
		store:    store,
		pipeline: newStubPipeline(),
		notifier: &stubNotifier{},
	}
	h.orch = NewOrchestrator(cfg, store, h.pipeline.set(), h.notifier, nil)
	return h
}

func (h *harness) get(t *testing.T, id int64) *analysis.AudioAnalysis {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	return rec
}

func waitForStatus(t *testing.T, store *analysis.Store, id int64, want analysis.Status) *analysis.AudioAnalysis {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		if rec.Status == want {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("analysis %d status = %s, want %s", id, rec.Status, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForCalls(t *testing.T, s *stubStage, want int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.calls.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("%s calls = %d, want %d", s.name, s.calls.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
