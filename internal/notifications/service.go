package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"classcoach/internal/config"
)

const userAgent = "classcoach/0.1"

// Event identifies a notification type.
type Event string

const (
	EventAnalysisCompleted Event = "analysis_completed"
	EventAnalysisFailed    Event = "analysis_failed"
	EventStalledSwept      Event = "stalled_swept"
	EventTest              Event = "test"
)

// Payload carries event-specific fields.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		errors:    cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	errors    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventAnalysisCompleted:
		return n.completed
	case EventAnalysisFailed, EventStalledSwept:
		return n.errors
	default:
		return true
	}
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventAnalysisCompleted:
		body := fmt.Sprintf("✅ Feedback ready: %s", label(payload))
		if score, ok := payload["score"]; ok && score != nil {
			body = fmt.Sprintf("%s (score %v)", body, score)
		}
		return message{
			title: "ClassCoach - Analysis Complete",
			body:  body,
			tags:  []string{"classcoach", "analysis", "completed"},
		}, true
	case EventAnalysisFailed:
		body := fmt.Sprintf("❌ Analysis failed: %s", label(payload))
		if reason := text(payload, "error"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title:    "ClassCoach - Analysis Failed",
			body:     body,
			tags:     []string{"classcoach", "error", "alert"},
			priority: "high",
		}, true
	case EventStalledSwept:
		return message{
			title:    "ClassCoach - Stalled Analyses",
			body:     fmt.Sprintf("⏱️ Marked %v stalled analyses as failed", payload["count"]),
			tags:     []string{"classcoach", "stalled", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "ClassCoach - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"classcoach", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func label(payload Payload) string {
	id := payload["id"]
	name := text(payload, "filename")
	switch {
	case name != "" && id != nil:
		return fmt.Sprintf("%s (#%v)", name, id)
	case name != "":
		return name
	case id != nil:
		return fmt.Sprintf("#%v", id)
	default:
		return "unknown recording"
	}
}

func text(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
