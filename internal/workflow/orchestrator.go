package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/logging"
	"classcoach/internal/notifications"
	"classcoach/internal/services"
	"classcoach/internal/stage"
)

// StageSet bundles the three pipeline services.
type StageSet struct {
	Transcription stage.Service
	Prosody       stage.Service
	Feedback      stage.Service
}

// step describes one stage of the linear pipeline: the status the record sits
// in while the stage runs and the status it moves to on success.
type step struct {
	runner  *stage.Runner
	status  analysis.Status
	next    analysis.Status
	input   func(*analysis.AudioAnalysis) stage.Input
	advance func(analysis.Document) analysis.Mutation
}

// Orchestrator runs single records through the pipeline.
type Orchestrator struct {
	store    *analysis.Store
	notifier notifications.Service
	logger   *slog.Logger
	language string
	steps    []step
}

// NewOrchestrator wires the stage services with their configured timeouts.
func NewOrchestrator(cfg *config.Config, store *analysis.Store, stages StageSet, notifier notifications.Service, logger *slog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	o := &Orchestrator{
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "workflow-orchestrator"),
		language: cfg.Transcription.Language,
	}
	o.steps = []step{
		{
			runner: stage.NewRunner(stages.Transcription, cfg.TranscriptionTimeout()),
			status: analysis.StatusTranscribing,
			next:   analysis.StatusAnalyzingProsody,
			input: func(rec *analysis.AudioAnalysis) stage.Input {
				return stage.Input{AnalysisID: rec.ID, SourceRef: rec.SourceRef, Language: o.language}
			},
			advance: func(doc analysis.Document) analysis.Mutation {
				return analysis.Mutation{Transcription: doc}
			},
		},
		{
			runner: stage.NewRunner(stages.Prosody, cfg.ProsodyTimeout()),
			status: analysis.StatusAnalyzingProsody,
			next:   analysis.StatusGeneratingFeedback,
			input: func(rec *analysis.AudioAnalysis) stage.Input {
				return stage.Input{AnalysisID: rec.ID, SourceRef: rec.SourceRef}
			},
			advance: func(doc analysis.Document) analysis.Mutation {
				return analysis.Mutation{Prosody: doc}
			},
		},
		{
			runner: stage.NewRunner(stages.Feedback, cfg.FeedbackTimeout()),
			status: analysis.StatusGeneratingFeedback,
			next:   analysis.StatusCompleted,
			input: func(rec *analysis.AudioAnalysis) stage.Input {
				return stage.Input{
					AnalysisID:    rec.ID,
					Transcription: rec.Transcription,
					Prosody:       rec.Prosody,
					Context:       rec.Context,
				}
			},
			advance: func(doc analysis.Document) analysis.Mutation {
				return analysis.Mutation{Feedback: doc}
			},
		},
	}
	return o
}

// Runners exposes the stage runners, mainly for health reporting.
func (o *Orchestrator) Runners() []*stage.Runner {
	runners := make([]*stage.Runner, len(o.steps))
	for i, s := range o.steps {
		runners[i] = s.runner
	}
	return runners
}

// Run drives record id from uploaded to a terminal status. Stage failures are
// persisted on the record, not returned. The returned error is one of:
// analysis.ErrNotFound, a *analysis.StorageError, or the context error when
// ctx ends mid-run (the record keeps its last persisted status).
func (o *Orchestrator) Run(ctx context.Context, id int64) error {
	_, err := o.drive(ctx, id)
	return err
}

// drive is Run that also reports the last record state it observed.
func (o *Orchestrator) drive(ctx context.Context, id int64) (*analysis.AudioAnalysis, error) {
	ctx = services.WithAnalysisID(ctx, id)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, o.logger)

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsTerminal() {
		logger.Debug("analysis already finished", logging.String("status", string(rec.Status)))
		return rec, nil
	}
	if rec.Status != analysis.StatusUploaded {
		logger.Debug("analysis owned by another driver", logging.String("status", string(rec.Status)))
		return rec, nil
	}

	claimed, err := o.store.Update(ctx, id, analysis.Mutation{From: analysis.StatusUploaded, To: analysis.StatusTranscribing})
	if err != nil {
		if errors.Is(err, analysis.ErrStaleWrite) {
			logger.Debug("analysis claimed by another driver", logging.Error(err))
			return rec, nil
		}
		return rec, o.storageFault(ctx, logger, "claim", err)
	}
	rec = claimed
	logger.Info("analysis claimed",
		logging.String(logging.FieldEventType, "analysis_claimed"),
		logging.String("source_ref", rec.SourceRef),
	)

	for _, s := range o.steps {
		next, done, err := o.runStep(ctx, s, rec)
		if err != nil || done {
			if next != nil {
				rec = next
			}
			return rec, err
		}
		rec = next
	}
	o.notifyCompleted(ctx, logger, rec)
	return rec, nil
}

// runStep executes one stage and persists its outcome. done reports that the
// run must stop, either because the record failed or because another writer
// moved it.
func (o *Orchestrator) runStep(ctx context.Context, s step, rec *analysis.AudioAnalysis) (*analysis.AudioAnalysis, bool, error) {
	name := s.runner.Name()
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, o.logger)

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("status", string(s.status)),
		logging.Duration("timeout", s.runner.Timeout()),
	)

	result, runErr := s.runner.Run(stageCtx, s.input(rec))
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Debug("stage interrupted by shutdown", logging.Error(runErr))
			return rec, true, ctxErr
		}
		return o.fail(stageCtx, logger, s, rec, runErr)
	}

	mutation := s.advance(result.Payload)
	mutation.From = s.status
	mutation.To = s.next
	updated, err := o.store.Update(stageCtx, rec.ID, mutation)
	if err != nil {
		if errors.Is(err, analysis.ErrStaleWrite) {
			logger.Debug("stage result discarded; record moved on", logging.Error(err))
			return rec, true, nil
		}
		return rec, true, o.storageFault(stageCtx, logger, "persist stage result", err)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(s.next)),
		logging.Duration("stage_duration", result.Duration),
	)
	return updated, false, nil
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, s step, rec *analysis.AudioAnalysis, runErr error) (*analysis.AudioAnalysis, bool, error) {
	failure, ok := stage.AsFailure(runErr)
	if !ok {
		failure = stage.Classify(s.runner.Name(), runErr)
	}
	message := failure.Error()

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("reason", string(failure.Reason)),
		logging.Bool("retryable", failure.Retryable),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, hintForReason(failure.Reason)),
		logging.Alert("stage_failure"),
	)

	updated, err := o.store.Update(ctx, rec.ID, analysis.Mutation{
		From:         s.status,
		To:           analysis.StatusError,
		ErrorMessage: message,
	})
	if err != nil {
		if errors.Is(err, analysis.ErrStaleWrite) {
			logger.Debug("failure not recorded; record moved on", logging.Error(err))
			return rec, true, nil
		}
		return rec, true, o.storageFault(ctx, logger, "persist stage failure", err)
	}
	o.notifyFailed(ctx, logger, updated, failure)
	return updated, true, nil
}

// storageFault logs a persistence failure. Context errors pass through
// unchanged so callers can tell shutdown from a broken database.
func (o *Orchestrator) storageFault(ctx context.Context, logger *slog.Logger, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logging.ErrorWithContext(logger, "analysis store write failed", "storage_failure",
		logging.String("operation", op),
		logging.Error(err),
		logging.Alert("storage_failure"),
		logging.String(logging.FieldErrorHint, "check database file permissions and disk space"),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func (o *Orchestrator) notifyCompleted(ctx context.Context, logger *slog.Logger, rec *analysis.AudioAnalysis) {
	payload := notifications.Payload{"id": rec.ID, "filename": rec.OriginalFilename}
	if scores, ok := rec.Feedback.Object("scores"); ok {
		if overall, ok := scores.Float("overall"); ok {
			payload["score"] = overall
		}
	}
	logger.Info("analysis completed",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Duration("total_duration", analysisDuration(rec)),
	)
	o.publish(ctx, logger, notifications.EventAnalysisCompleted, payload)
}

func (o *Orchestrator) notifyFailed(ctx context.Context, logger *slog.Logger, rec *analysis.AudioAnalysis, failure *stage.Failure) {
	o.publish(ctx, logger, notifications.EventAnalysisFailed, notifications.Payload{
		"id":       rec.ID,
		"filename": rec.OriginalFilename,
		"stage":    failure.Stage,
		"reason":   string(failure.Reason),
		"error":    rec.ErrorMessage,
	})
}

func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, notification skipped", logging.String("event", string(event)))
			return
		}
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func analysisDuration(rec *analysis.AudioAnalysis) time.Duration {
	if rec.CompletedAt == nil {
		return 0
	}
	return rec.CompletedAt.Sub(rec.CreatedAt)
}

func hintForReason(reason stage.Reason) string {
	switch reason {
	case stage.ReasonTimeout:
		return "raise the stage timeout or check upstream latency"
	case stage.ReasonRateLimited:
		return "upstream API quota exhausted; resubmit later"
	case stage.ReasonServiceUnavailable:
		return "upstream API unavailable; resubmit later"
	case stage.ReasonInvalidFormat:
		return "recording could not be read; check the file format"
	case stage.ReasonInvalidResponse, stage.ReasonEmptyResult:
		return "upstream returned unusable data"
	case stage.ReasonPanic:
		return "stage crashed; inspect logs for the stack"
	default:
		return "check logs for details"
	}
}
