package prosody

import (
	"context"
	"log/slog"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/logging"
	"classcoach/internal/stage"
)

// Service adapts Analyzer to the stage.Service contract.
type Service struct {
	analyzer *Analyzer
	logger   *slog.Logger
}

// NewService builds the prosody stage from configuration.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		analyzer: NewAnalyzer(Config{
			SilenceThresholdDB: cfg.Prosody.SilenceThresholdDB,
			MinPauseMS:         cfg.Prosody.MinPauseMS,
			FrameMS:            cfg.Prosody.FrameMS,
		}),
		logger: logging.NewComponentLogger(logger, "prosody"),
	}
}

// Name implements stage.Service.
func (s *Service) Name() string {
	return stage.NameProsody
}

// Run analyses the source recording.
func (s *Service) Run(ctx context.Context, in stage.Input) (analysis.Document, error) {
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()
	res, err := s.analyzer.Analyze(ctx, in.SourceRef)
	if err != nil {
		return nil, err
	}
	if res.Method == MethodEstimated {
		logging.WarnWithContext(logger, "prosody estimated from file size", "prosody_estimated",
			logging.String("source", in.SourceRef),
			logging.String(logging.FieldErrorHint, "submit WAV recordings for measured prosody"),
			logging.String(logging.FieldImpact, "pitch and intensity values are typical defaults"),
		)
	}
	logger.Info("prosody analysis complete",
		logging.String(logging.FieldEventType, "prosody_complete"),
		logging.String("method", res.Method),
		logging.Float64("duration_seconds", res.Duration),
		logging.Float64("speech_rate", res.SpeechRate),
		logging.Duration("elapsed", time.Since(start)),
	)
	return analysis.ToDocument(res)
}

// HealthCheck implements stage.Service. The analyzer is local and always ready.
func (s *Service) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stage.NameProsody)
}
