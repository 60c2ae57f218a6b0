package daemon

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/stage"
	"classcoach/internal/testsupport"
	"classcoach/internal/workflow"
)

type fixedStage struct {
	name    string
	payload analysis.Document
}

func (s fixedStage) Name() string { return s.name }

func (s fixedStage) Run(context.Context, stage.Input) (analysis.Document, error) {
	return s.payload, nil
}

func (s fixedStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

func fixedStages() workflow.StageSet {
	return workflow.StageSet{
		Transcription: fixedStage{name: stage.NameTranscription, payload: analysis.Document{"text": "buenos días", "wpm": 120.0}},
		Prosody:       fixedStage{name: stage.NameProsody, payload: analysis.Document{"speech_rate": 130.0}},
		Feedback:      fixedStage{name: stage.NameFeedback, payload: analysis.Document{"scores": map[string]any{"overall": 75.0}}},
	}
}

func newTestDaemon(t *testing.T, mutate ...func(*config.Config)) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, fixedStages(), nil)
	d, err := New(cfg, store, nil, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// serveHandler exposes the API routes without starting the daemon.
func serveHandler(t *testing.T, d *Daemon) string {
	t.Helper()
	srv := httptest.NewServer(d.api.handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func waitForTerminal(t *testing.T, d *Daemon, id int64) *analysis.AudioAnalysis {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := d.store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		if rec.IsTerminal() {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("analysis %d still %s", id, rec.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
