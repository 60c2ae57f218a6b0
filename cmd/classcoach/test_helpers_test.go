package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/daemon"
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

func cliStages() workflow.StageSet {
	return workflow.StageSet{
		Transcription: fixedStage{name: stage.NameTranscription, payload: analysis.Document{"text": "buenos días", "wpm": 118.0, "filler_rate": 1.5}},
		Prosody:       fixedStage{name: stage.NameProsody, payload: analysis.Document{"speech_rate": 130.0}},
		Feedback: fixedStage{name: stage.NameFeedback, payload: analysis.Document{
			"scores":          map[string]any{"overall": 82.0, "clarity": 78.0},
			"recommendations": []any{"Pausa después de cada pregunta"},
		}},
	}
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *analysis.Store
	daemon     *daemon.Daemon
	configPath string
	apiURL     string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Upload.MaxSizeMB = 1
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "classcoach.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, cliStages(), nil)
	d, err := daemon.New(cfg, store, nil, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		configPath: configPath,
		apiURL:     "http://" + d.APIAddress(),
		baseDir:    base,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath, "--api", e.apiURL}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeRecording(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteWAV(t, path, 8000,
		testsupport.Segment{Seconds: 0.5, Amplitude: 0.4},
		testsupport.Segment{Seconds: 0.3},
	)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
