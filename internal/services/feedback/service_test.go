package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcoach/internal/analysis"
	"classcoach/internal/services"
	"classcoach/internal/stage"
	"classcoach/internal/testsupport"
)

type stubCompleter struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (s *stubCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	s.lastSystem = system
	s.lastUser = user
	return s.reply, s.err
}

func sampleInput() stage.Input {
	return stage.Input{
		AnalysisID: 7,
		Transcription: analysis.Document{
			"text":    "Bueno, hoy vamos a ver fracciones.",
			"wpm":     132.5,
			"fillers": map[string]any{"bueno": 3.0, "este": 1.0},
			"pauses":  map[string]any{"count": 4.0, "avg_ms": 500.0},
		},
		Prosody: analysis.Document{
			"f0_mean_hz":         180.0,
			"f0_range_hz":        160.0,
			"jitter_local":       0.8,
			"shimmer_local":      4.5,
			"intensity_mean_db":  68.0,
			"intensity_range_db": 25.0,
		},
		Context: analysis.EducationalContext{Subject: "Matemáticas", GradeLevel: "5to", LessonTopic: "Fracciones"},
	}
}

func newStubService(stub *stubCompleter) *Service {
	svc := NewServiceWithClient(stub, "gpt-4o", nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestRunAddsMetadata(t *testing.T) {
	stub := &stubCompleter{reply: `{"scores":{"clarity":80},"recommendations":"Reduce las muletillas.","summary":"Buena clase"}`}
	doc, err := newStubService(stub).Run(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.Equal(t, "1.0", doc["ric_version"])
	assert.Equal(t, "2026-03-04T10:00:00Z", doc["analysis_timestamp"])
	assert.Equal(t, "gpt-4o", doc["model"])
	assert.Equal(t, "Buena clase", doc["summary"])
	scores, ok := doc.Object("scores")
	require.True(t, ok)
	assert.Equal(t, 80.0, scores["clarity"])
	assert.Contains(t, stub.lastSystem, "Reflective Instruction Coach")
	assert.Contains(t, stub.lastSystem, `"scores"`)
}

func TestRunAcceptsRecommendationList(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"scores\":{\"overall\":72,\"vocal_variety\":64.5},\"recommendations\":[\"Haz pausas\",\"Varía el tono\"]}\n```"}
	doc, err := newStubService(stub).Run(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Len(t, doc["recommendations"], 2)
}

func TestRunDerivesScoresFromRubricLayout(t *testing.T) {
	reply := map[string]any{
		"overall_score": 78,
		"detailed_analysis": map[string]any{
			"speech_delivery": map[string]any{"score": 80, "feedback": "Clara"},
			"vocal_variety":   map[string]any{"score": 70, "feedback": "Monótona"},
		},
		"action_plan": []string{"Practica pausas", "Usa ejemplos concretos"},
	}
	encoded, err := json.Marshal(reply)
	require.NoError(t, err)

	doc, err := newStubService(&stubCompleter{reply: string(encoded)}).Run(context.Background(), sampleInput())
	require.NoError(t, err)
	scores, ok := doc.Object("scores")
	require.True(t, ok)
	assert.Equal(t, 78.0, scores["overall"])
	assert.Equal(t, 80.0, scores["speech_delivery"])
	assert.Equal(t, 70.0, scores["vocal_variety"])
	assert.Len(t, doc["recommendations"], 2)
}

func TestRunRejectsInvalidReplies(t *testing.T) {
	cases := map[string]string{
		"not json":              `la clase fue buena`,
		"array":                 `[1,2,3]`,
		"missing scores":        `{"recommendations":"ok"}`,
		"empty scores":          `{"scores":{},"recommendations":"ok"}`,
		"scores not object":     `{"scores":[80],"recommendations":"ok"}`,
		"score not number":      `{"scores":{"clarity":"alto"},"recommendations":"ok"}`,
		"score above range":     `{"scores":{"clarity":130},"recommendations":"ok"}`,
		"score below range":     `{"scores":{"clarity":-1},"recommendations":"ok"}`,
		"missing recs":          `{"scores":{"clarity":80}}`,
		"empty recs":            `{"scores":{"clarity":80},"recommendations":"  "}`,
		"recs wrong type":       `{"scores":{"clarity":80},"recommendations":{"a":1}}`,
		"recs list with number": `{"scores":{"clarity":80},"recommendations":["ok",3]}`,
		"null":                  `null`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newStubService(&stubCompleter{reply: reply}).Run(context.Background(), sampleInput())
			require.Error(t, err)
			assert.ErrorIs(t, err, services.ErrInvalidResponse)
			failure := stage.Classify(stage.NameFeedback, err)
			assert.Equal(t, stage.ReasonInvalidResponse, failure.Reason)
		})
	}
}

func TestRunPropagatesClientErrors(t *testing.T) {
	clientErr := services.Wrap(services.ErrRateLimited, "llm", "complete", "failed after 3 attempt(s)", errors.New("http 429"))
	_, err := newStubService(&stubCompleter{err: clientErr}).Run(context.Background(), sampleInput())
	assert.ErrorIs(t, err, services.ErrRateLimited)
}

func TestRunRequiresTranscription(t *testing.T) {
	in := sampleInput()
	in.Transcription = nil
	_, err := newStubService(&stubCompleter{}).Run(context.Background(), in)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestHealthCheckReflectsAPIKey(t *testing.T) {
	assert.True(t, newStubService(&stubCompleter{}).HealthCheck(context.Background()).Ready)
	assert.True(t, NewService(testsupport.NewConfig(t), nil).HealthCheck(context.Background()).Ready)

	health := NewService(testsupport.NewConfig(t, testsupport.WithoutAPIKeys()), nil).HealthCheck(context.Background())
	assert.False(t, health.Ready)
	assert.Equal(t, "api key missing", health.Detail)
}

func TestNewServiceTalksToChatAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			assert.Equal(t, "gpt-4o", body.Model)
			assert.Equal(t, 0.7, body.Temperature)
			if assert.Len(t, body.Messages, 2) {
				assert.Contains(t, body.Messages[1].Content, "Materia: Matemáticas")
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": `{"scores":{"clarity":80},"recommendations":"Más pausas"}`},
			}},
		})
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithServiceURL(server.URL))
	doc, err := NewService(cfg, nil).Run(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "Más pausas", doc["recommendations"])
}
