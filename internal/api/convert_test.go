package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcoach/internal/analysis"
	"classcoach/internal/preflight"
	"classcoach/internal/stage"
	"classcoach/internal/workflow"
)

func TestFromStatusSummary(t *testing.T) {
	sweptAt := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	summary := workflow.StatusSummary{
		Running:    true,
		InFlight:   2,
		LastError:  "persist stage result: database is locked",
		QueueStats: map[analysis.Status]int{analysis.StatusCompleted: 3, analysis.StatusTranscribing: 1},
		StageHealth: map[string]stage.Health{
			stage.NameFeedback:      stage.Unhealthy(stage.NameFeedback, "api key missing"),
			stage.NameTranscription: stage.Healthy(stage.NameTranscription),
			stage.NameProsody:       stage.Healthy(stage.NameProsody),
		},
		Preflight: []preflight.Result{{Name: "Upload directory", Passed: true, Detail: "ok"}},
		LastItem:  &analysis.AudioAnalysis{ID: 5, Status: analysis.StatusCompleted, OriginalFilename: "clase.mp3"},
		LastSweep: workflow.SweepResult{At: sweptAt, Marked: 1},
	}

	got := FromStatusSummary(summary)
	assert.True(t, got.Running)
	assert.Equal(t, 2, got.InFlight)
	assert.Equal(t, 3, got.QueueStats["completed"])
	assert.Equal(t, 1, got.QueueStats["transcribing"])
	assert.Equal(t, 0, got.QueueStats["uploaded"])
	assert.Len(t, got.QueueStats, len(analysis.AllStatuses()))

	require.Len(t, got.StageHealth, 3)
	assert.Equal(t, []string{"transcription", "prosody", "feedback"},
		[]string{got.StageHealth[0].Name, got.StageHealth[1].Name, got.StageHealth[2].Name})
	assert.False(t, got.StageHealth[2].Ready)

	require.NotNil(t, got.LastItem)
	assert.Equal(t, "clase.mp3", got.LastItem.OriginalFilename)
	require.NotNil(t, got.LastSweep)
	assert.Equal(t, "2026-03-02T10:30:00.000Z", got.LastSweep.At)
	assert.Equal(t, []CheckResult{{Name: "Upload directory", Passed: true, Detail: "ok"}}, got.Preflight)
}

func TestFromStatusSummaryOmitsEmptySweep(t *testing.T) {
	got := FromStatusSummary(workflow.StatusSummary{})
	assert.Nil(t, got.LastSweep)
	assert.Nil(t, got.LastItem)
	assert.Empty(t, got.StageHealth)
}

func TestFeedbackHelpers(t *testing.T) {
	feedback := analysis.Document{
		"scores": map[string]any{
			"overall":    74.0,
			"pacing":     61.0,
			"clarity":    80.0,
			"engagement": "n/a",
		},
		"recommendations": []any{"Reduzca muletillas.", " ", "Varíe la entonación."},
	}

	overall, ok := OverallScore(feedback)
	require.True(t, ok)
	assert.Equal(t, 74.0, overall)
	assert.Equal(t, []ScoreEntry{
		{Dimension: "overall", Score: 74},
		{Dimension: "clarity", Score: 80},
		{Dimension: "pacing", Score: 61},
	}, Scores(feedback))
	assert.Equal(t, []string{"Reduzca muletillas.", "Varíe la entonación."}, Recommendations(feedback))

	assert.Equal(t, []string{"Hable más despacio."}, Recommendations(analysis.Document{"recommendations": "Hable más despacio."}))
	_, ok = OverallScore(analysis.Document{})
	assert.False(t, ok)
	assert.Nil(t, Scores(nil))
}

func TestParseTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 5, 8, 0, 0, 123000000, time.UTC)
	parsed, ok := ParseTime(formatTime(now))
	require.True(t, ok)
	assert.True(t, parsed.Equal(now))
	_, ok = ParseTime("")
	assert.False(t, ok)
}
