package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id of an API call.
const RequestIDHeader = "X-Request-ID"

// Form field names accepted by POST /api/analyses.
const (
	FieldAudioFile         = "audio_file"
	FieldSubject           = "subject"
	FieldGradeLevel        = "grade_level"
	FieldLessonTopic       = "lesson_topic"
	FieldAdditionalContext = "additional_context"
)

// SubmitRequest describes a recording to upload.
type SubmitRequest struct {
	Path    string
	Context EducationalContext
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient constructs a client for the daemon at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns daemon and workflow status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.getJSON(ctx, "/api/status", &out)
	return out, err
}

// Submit uploads a recording and returns the new record id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	file, err := os.Open(req.Path)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeSubmitForm(form, filepath.Base(req.Path), file, req.Context))
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/analyses", body)
	if err != nil {
		body.Close()
		return SubmitResponse{}, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	var out SubmitResponse
	if err := c.do(httpReq, &out); err != nil {
		return SubmitResponse{}, err
	}
	return out, nil
}

func writeSubmitForm(form *multipart.Writer, name string, content io.Reader, lesson EducationalContext) error {
	fields := []struct{ key, value string }{
		{FieldSubject, lesson.Subject},
		{FieldGradeLevel, lesson.GradeLevel},
		{FieldLessonTopic, lesson.LessonTopic},
		{FieldAdditionalContext, lesson.AdditionalContext},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		if err := form.WriteField(f.key, f.value); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile(FieldAudioFile, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return form.Close()
}

// GetStatus returns the polling view of id.
func (c *Client) GetStatus(ctx context.Context, id int64) (AnalysisStatus, error) {
	var out AnalysisStatus
	err := c.getJSON(ctx, fmt.Sprintf("/api/analyses/%d/status", id), &out)
	return out, err
}

// Describe returns the full record.
func (c *Client) Describe(ctx context.Context, id int64) (Analysis, error) {
	var out Analysis
	err := c.getJSON(ctx, fmt.Sprintf("/api/analyses/%d", id), &out)
	return out, err
}

// Results returns the stage outputs of a completed record.
func (c *Client) Results(ctx context.Context, id int64) (AnalysisResults, error) {
	var out AnalysisResults
	err := c.getJSON(ctx, fmt.Sprintf("/api/analyses/%d/results", id), &out)
	return out, err
}

// History returns up to limit records, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]Analysis, error) {
	path := "/api/analyses"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out AnalysisListResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// WaitForCompletion polls the status of id until it is terminal.
func (c *Client) WaitForCompletion(ctx context.Context, id int64, opts PollOptions) (AnalysisStatus, error) {
	return Poll(ctx, func(ctx context.Context) (AnalysisStatus, error) {
		return c.GetStatus(ctx, id)
	}, opts)
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload ErrorResponse
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	switch {
	case resp.StatusCode == http.StatusNotFound && (message == "" || message == ErrNotFound.Error()):
		return ErrNotFound
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case resp.StatusCode == http.StatusBadRequest && message == ErrNotCompleted.Error():
		return ErrNotCompleted
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: message}
}

// IsHTTPStatus reports whether err is an HTTPError with the given code.
func IsHTTPStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}
