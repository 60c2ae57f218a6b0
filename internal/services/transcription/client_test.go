package transcription

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcoach/internal/services"
	"classcoach/internal/stage"
	"classcoach/internal/testsupport"
)

type instantTimer struct {
	waits []time.Duration
	ch    chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{ch: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.ch <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.ch }

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clase.mp3")
	testsupport.WriteFile(t, path, 2048)
	return path
}

func verboseJSON() map[string]any {
	return map[string]any{
		"task":     "transcribe",
		"language": "spanish",
		"duration": 6.0,
		"text":     "Bueno, hoy vamos a ver fracciones. Este tema es importante.",
		"segments": []any{
			map[string]any{"id": 0, "start": 0.0, "end": 3.0, "text": "Bueno, hoy vamos a ver fracciones.", "avg_logprob": -0.2, "no_speech_prob": 0.01},
			map[string]any{"id": 1, "start": 3.0, "end": 6.0, "text": "Este tema es importante.", "avg_logprob": -0.3, "no_speech_prob": 0.02},
		},
	}
}

func TestTranscribeSendsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			assert.Equal(t, "whisper-1", r.FormValue("model"))
			assert.Equal(t, "es", r.FormValue("language"))
			assert.Equal(t, "verbose_json", r.FormValue("response_format"))
			file, header, err := r.FormFile("file")
			if assert.NoError(t, err) {
				defer file.Close()
				assert.Equal(t, "clase.mp3", header.Filename)
				data, _ := io.ReadAll(file)
				assert.Len(t, data, 2048)
			}
		}
		_ = json.NewEncoder(w).Encode(verboseJSON())
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	resp, err := client.Transcribe(context.Background(), writeAudio(t), "")
	require.NoError(t, err)
	assert.Equal(t, 6.0, resp.Duration)
	assert.Len(t, resp.Segments, 2)
	assert.Equal(t, -0.3, resp.Segments[1].AvgLogprob)
}

func TestTranscribeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(verboseJSON())
	}))
	defer server.Close()

	timer := newInstantTimer()
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithTimer(timer))
	_, err := client.Transcribe(context.Background(), writeAudio(t), "es")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, timer.waits, 1)
}

func TestTranscribeStatusMarkers(t *testing.T) {
	cases := []struct {
		status int
		marker error
		calls  int32
	}{
		{http.StatusTooManyRequests, services.ErrRateLimited, 3},
		{http.StatusBadGateway, services.ErrUnavailable, 3},
		{http.StatusUnsupportedMediaType, services.ErrInvalidFormat, 1},
		{http.StatusBadRequest, services.ErrInvalidFormat, 1},
		{http.StatusUnauthorized, services.ErrConfiguration, 1},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				calls.Add(1)
				http.Error(w, `{"error":{"message":"nope"}}`, tc.status)
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithTimer(newInstantTimer()))
			_, err := client.Transcribe(context.Background(), writeAudio(t), "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.marker)
			assert.Equal(t, tc.calls, calls.Load())
		})
	}
}

func TestTranscribeRejectsEmptyTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"text":"   ","segments":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Transcribe(context.Background(), writeAudio(t), "")
	assert.ErrorIs(t, err, services.ErrInvalidResponse)
}

func TestTranscribeMalformedJSONIsInvalidResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		calls.Add(1)
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithTimer(newInstantTimer()))
	_, err := client.Transcribe(context.Background(), writeAudio(t), "")
	assert.ErrorIs(t, err, services.ErrInvalidResponse)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTranscribeMissingFile(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), "")
	assert.ErrorIs(t, err, services.ErrInvalidFormat)
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), writeAudio(t), "")
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestServiceRunProducesMetricsDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = json.NewEncoder(w).Encode(verboseJSON())
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithServiceURL(server.URL))
	svc := NewService(cfg, nil)
	require.Equal(t, stage.NameTranscription, svc.Name())

	doc, err := svc.Run(context.Background(), stage.Input{SourceRef: writeAudio(t), Language: "es"})
	require.NoError(t, err)

	text, ok := doc.String("text")
	require.True(t, ok)
	assert.Contains(t, text, "fracciones")
	wpm, ok := doc.Float("wpm")
	require.True(t, ok)
	assert.Equal(t, 90.0, wpm)
	fillers, ok := doc.Object("fillers")
	require.True(t, ok)
	assert.Equal(t, 1.0, fillers["bueno"])
	assert.Equal(t, 1.0, fillers["este"])
	pauses, ok := doc.Object("pauses")
	require.True(t, ok)
	assert.Equal(t, 3.0, pauses["count"])
}

func TestServiceHealthCheckUsesConfiguration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	assert.True(t, NewService(cfg, nil).HealthCheck(context.Background()).Ready)

	cfg = testsupport.NewConfig(t, testsupport.WithoutAPIKeys())
	health := NewService(cfg, nil).HealthCheck(context.Background())
	assert.False(t, health.Ready)
	assert.Equal(t, "api key missing", health.Detail)
}

func TestClientHealthCheckProbesModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" && r.Header.Get("Authorization") == "Bearer test" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	require.NoError(t, NewClient(Config{APIKey: "test", BaseURL: server.URL}).HealthCheck(context.Background()))
	err := NewClient(Config{APIKey: "wrong", BaseURL: server.URL}).HealthCheck(context.Background())
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
