package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"classcoach/internal/stage"
	"classcoach/internal/testsupport"
)

func TestStagesUseProductionServices(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := Stages(cfg, nil)

	got := []string{set.Transcription.Name(), set.Prosody.Name(), set.Feedback.Name()}
	want := []string{stage.NameTranscription, stage.NameProsody, stage.NameFeedback}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage %d = %q, want %q", i, got[i], want[i])
		}
	}
	if health := set.Feedback.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("feedback not ready with api key configured: %+v", health)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunReturnsWhenContextEnds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, cfg, Options{LogLevel: "error"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, pidFileName)); !os.IsNotExist(err) {
		t.Fatalf("pid file not removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, logFileName)); err != nil {
		t.Fatalf("log file missing: %v", err)
	}
}
