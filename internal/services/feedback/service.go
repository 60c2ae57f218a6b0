package feedback

import (
	"context"
	"log/slog"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/logging"
	"classcoach/internal/services"
	"classcoach/internal/services/llm"
	"classcoach/internal/stage"
)

const (
	stageName  = "feedback"
	ricVersion = "1.0"
)

// Completer is the slice of the chat client the feedback stage needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Service adapts the RIC coach to the stage.Service contract.
type Service struct {
	client Completer
	model  string
	ready  bool
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the feedback stage on top of an llm.Client.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...llm.Option) *Service {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		RetryAttempts:  cfg.LLM.RetryAttempts,
	}, opts...)
	svc := NewServiceWithClient(client, cfg.LLM.Model, logger)
	svc.ready = cfg.LLM.APIKey != ""
	return svc
}

// NewServiceWithClient builds the stage around an existing completer.
func NewServiceWithClient(client Completer, model string, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		model:  model,
		ready:  true,
		logger: logging.NewComponentLogger(logger, "feedback"),
		now:    time.Now,
	}
}

// Name implements stage.Service.
func (s *Service) Name() string {
	return stage.NameFeedback
}

// Run asks the model for an evaluation of the lesson and validates the reply.
func (s *Service) Run(ctx context.Context, in stage.Input) (analysis.Document, error) {
	logger := logging.WithContext(ctx, s.logger)
	if len(in.Transcription) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "prompt", "transcription result required", nil)
	}

	start := time.Now()
	raw, err := s.client.CompleteJSON(ctx, SystemPrompt(), BuildUserPrompt(in.Context, in.Transcription, in.Prosody))
	if err != nil {
		return nil, err
	}

	var doc analysis.Document
	if err := llm.DecodeLLMJSON(raw, &doc); err != nil {
		return nil, services.Wrap(services.ErrInvalidResponse, stageName, "decode", "reply is not a JSON object", err)
	}
	if doc == nil {
		return nil, invalid("reply is empty")
	}
	normalize(doc)
	if err := validate(doc); err != nil {
		logging.WarnWithContext(logger, "feedback reply rejected", "feedback_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the model ignored the required scores/recommendations format"),
			logging.String(logging.FieldImpact, "analysis will be marked as failed"),
		)
		return nil, err
	}

	doc["ric_version"] = ricVersion
	doc["analysis_timestamp"] = s.now().UTC().Format(time.RFC3339)
	if s.model != "" {
		doc["model"] = s.model
	}

	scores, _ := doc.Object("scores")
	logger.Info("feedback generated",
		logging.String(logging.FieldEventType, "feedback_complete"),
		logging.Int("score_count", len(scores)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return doc, nil
}

// HealthCheck implements stage.Service from configuration alone so status
// polling never spends a model call.
func (s *Service) HealthCheck(context.Context) stage.Health {
	if !s.ready {
		return stage.Unhealthy(stage.NameFeedback, "api key missing")
	}
	return stage.Healthy(stage.NameFeedback)
}
