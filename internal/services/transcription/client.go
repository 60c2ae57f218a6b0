package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"classcoach/internal/services"
)

const (
	stageName             = "transcription"
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "whisper-1"
	defaultLanguage       = "es"
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 20 * time.Second
	responseFormat        = "verbose_json"
)

// Config captures the settings required to reach the transcription API.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Language      string
	RetryAttempts int
}

// Client posts recordings to /audio/transcriptions.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseDelay  time.Duration
	maxDelay   time.Duration
	timer      backoff.Timer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry delays.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithTimer overrides how retry waits are performed.
func WithTimer(timer backoff.Timer) Option {
	return func(c *Client) {
		c.timer = timer
	}
}

// NewClient builds a transcription client. The HTTP client carries no
// timeout of its own; the stage runner bounds each call through ctx.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		baseDelay:  defaultRetryBaseDelay,
		maxDelay:   defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Segment is one timed span of the Whisper verbose_json response.
type Segment struct {
	ID               int     `json:"id"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}

// Response is the subset of verbose_json the pipeline keeps.
type Response struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

// Transcribe uploads the file at path and returns the decoded transcript.
// language overrides the configured language when non-empty.
func (c *Client) Transcribe(ctx context.Context, path, language string) (Response, error) {
	if c.cfg.APIKey == "" {
		return Response{}, services.Wrap(services.ErrConfiguration, stageName, "transcribe", "api key required", nil)
	}
	if strings.TrimSpace(language) == "" {
		language = c.cfg.Language
	}
	info, err := os.Stat(path)
	if err != nil {
		return Response{}, services.Wrap(services.ErrInvalidFormat, stageName, "open", "source file unavailable", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return Response{}, services.Wrap(services.ErrInvalidFormat, stageName, "open", "source file is empty", nil)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.baseDelay
	expo.MaxInterval = c.maxDelay
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.cfg.RetryAttempts-1)), ctx)

	var resp Response
	attempts := 0
	op := func() error {
		attempts++
		out, err := c.send(ctx, path, language)
		if err != nil {
			return retryable(err)
		}
		resp = out
		return nil
	}
	if err := backoff.RetryNotifyWithTimer(op, policy, nil, c.timer); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		return Response{}, wrapFailure(attempts, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Response{}, services.Wrap(services.ErrInvalidResponse, stageName, "transcribe", "empty transcript", nil)
	}
	return resp, nil
}

// HealthCheck verifies the endpoint answers and accepts the API key.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "health", "api key required", nil)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models")
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, stageName, "health", "request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.MarkerForStatus(resp.StatusCode), stageName, "health", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) send(ctx context.Context, path, language string) (Response, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "audio", "transcriptions")
	if err != nil {
		return Response{}, fmt.Errorf("build url: %w", err)
	}

	body, contentType := c.multipartBody(path, language)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post audio: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, &statusError{code: resp.StatusCode, body: snippet(raw)}
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, services.Wrap(services.ErrInvalidResponse, stageName, "decode", snippet(raw), err)
	}
	return out, nil
}

// multipartBody streams the form through a pipe so large recordings are never
// buffered in memory.
func (c *Client) multipartBody(path, language string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		err := writeForm(form, path, c.cfg.Model, language)
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, form.FormDataContentType()
}

func writeForm(form *multipart.Writer, path, model, language string) error {
	fields := [][2]string{
		{"model", model},
		{"language", language},
		{"response_format", responseFormat},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func retryable(err error) error {
	var status *statusError
	if errors.As(err, &status) {
		if status.code == http.StatusRequestTimeout || status.code == http.StatusTooManyRequests || status.code >= http.StatusInternalServerError {
			return err
		}
		return backoff.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	if errors.Is(err, services.ErrInvalidResponse) {
		return backoff.Permanent(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return err
	}
	return backoff.Permanent(err)
}

func wrapFailure(attempts int, err error) error {
	if errors.Is(err, services.ErrInvalidResponse) {
		return err
	}
	message := fmt.Sprintf("failed after %d attempt(s)", attempts)
	var status *statusError
	if errors.As(err, &status) {
		return services.Wrap(services.MarkerForStatus(status.code), stageName, "transcribe", message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, stageName, "transcribe", message, err)
	}
	return services.Wrap(services.ErrUnavailable, stageName, "transcribe", message, err)
}

func snippet(raw []byte) string {
	text := strings.Join(strings.Fields(string(raw)), " ")
	const limit = 240
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
