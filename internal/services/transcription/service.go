package transcription

import (
	"context"
	"log/slog"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/logging"
	"classcoach/internal/stage"
)

// Result is the persisted transcription payload.
type Result struct {
	Response
	SpeechMetrics
}

// Service adapts Client to the stage.Service contract.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService builds the transcription stage from configuration.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	client := NewClient(Config{
		APIKey:   cfg.Transcription.APIKey,
		BaseURL:  cfg.Transcription.BaseURL,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
	}, opts...)
	return &Service{client: client, logger: logging.NewComponentLogger(logger, "transcription")}
}

// Name implements stage.Service.
func (s *Service) Name() string {
	return stage.NameTranscription
}

// Run transcribes the source recording and attaches speech metrics.
func (s *Service) Run(ctx context.Context, in stage.Input) (analysis.Document, error) {
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()
	resp, err := s.client.Transcribe(ctx, in.SourceRef, in.Language)
	if err != nil {
		return nil, err
	}
	metrics := ComputeMetrics(resp.Text, resp.Segments, resp.Duration)
	logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Int("word_count", metrics.WordCount),
		logging.Float64("wpm", metrics.WPM),
		logging.Int("filler_count", metrics.FillerCount),
		logging.Int("segments", len(resp.Segments)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return analysis.ToDocument(Result{Response: resp, SpeechMetrics: metrics})
}

// HealthCheck implements stage.Service from configuration alone; the live
// endpoint probe is Client.HealthCheck.
func (s *Service) HealthCheck(context.Context) stage.Health {
	if s.client.cfg.APIKey == "" {
		return stage.Unhealthy(stage.NameTranscription, "api key missing")
	}
	return stage.Healthy(stage.NameTranscription)
}
