package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcoach/internal/services"
)

// instantTimer fires immediately and records requested waits.
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

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": content},
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		writeCompletion(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "```json\n{\"ok\":true}\n```")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestClientUnauthorizedIsConfigurationError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"}, WithTimer(newInstantTimer()))
	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrConfiguration), "got %v", err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestCompleteJSONSendsTemperatureAndModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
		}
		writeCompletion(t, w, `{"scores":{"clarity":80}}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "gpt-4o", Temperature: 0.7})
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"scores":{"clarity":80}}`, content)
}

func TestClientRetriesOnHTTP429HonoringRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCompletion(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	timer := newInstantTimer()
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo", RetryAttempts: 5},
		WithRetryBackoff(0, 10*time.Second),
		WithTimer(timer),
	)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, timer.waits)
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := ""
		if calls.Add(1) >= 3 {
			content = `{"ok":true}`
		}
		writeCompletion(t, w, content)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo", RetryAttempts: 5},
		WithRetryBackoff(0, 0),
		WithTimer(newInstantTimer()),
	)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientExhaustedRetriesCarryMarker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		marker error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, marker: services.ErrRateLimited},
		{name: "unavailable", status: http.StatusBadGateway, marker: services.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(
				Config{APIKey: "test", BaseURL: server.URL, Model: "demo", RetryAttempts: 3},
				WithRetryBackoff(0, 0),
				WithTimer(newInstantTimer()),
			)
			_, err := client.CompleteJSON(context.Background(), "system", "user")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.marker), "got %v", err)
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestEmptyContentErrorIncludesSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "")
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo", RetryAttempts: 1},
		WithTimer(newInstantTimer()),
	)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInvalidResponse))
	assert.Contains(t, err.Error(), "response_snippet=")
}

func TestCompleteJSONRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	assert.True(t, errors.Is(err, services.ErrConfiguration))
}

func TestDecodeLLMJSON(t *testing.T) {
	var target map[string]any
	require.NoError(t, DecodeLLMJSON("Here you go:\n```json\n{\"a\":1}\n```", &target))
	assert.Equal(t, float64(1), target["a"])

	target = nil
	require.NoError(t, DecodeLLMJSON("prefix {\"b\":2} suffix", &target))
	assert.Equal(t, float64(2), target["b"])

	assert.Error(t, DecodeLLMJSON("   ", &target))
	assert.Error(t, DecodeLLMJSON("not json at all", &target))
}
