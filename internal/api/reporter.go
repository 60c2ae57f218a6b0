package api

import (
	"context"

	"classcoach/internal/analysis"
)

// RecordReader abstracts the store reads the reporter needs.
type RecordReader interface {
	Get(ctx context.Context, id int64) (*analysis.AudioAnalysis, error)
	List(ctx context.Context, opts analysis.ListOptions) ([]*analysis.AudioAnalysis, error)
}

// StatusReporter answers read-only queries about analyses.
type StatusReporter struct {
	store RecordReader
}

// NewStatusReporter constructs a StatusReporter around the provided reader.
func NewStatusReporter(store RecordReader) *StatusReporter {
	return &StatusReporter{store: store}
}

// GetStatus returns the polling view of id.
func (r *StatusReporter) GetStatus(ctx context.Context, id int64) (AnalysisStatus, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return AnalysisStatus{}, err
	}
	return StatusView(rec), nil
}

// Describe returns the full record.
func (r *StatusReporter) Describe(ctx context.Context, id int64) (Analysis, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return Analysis{}, err
	}
	return FromAnalysis(rec), nil
}

// Results returns the stage outputs of a completed record, or
// ErrNotCompleted for any other status.
func (r *StatusReporter) Results(ctx context.Context, id int64) (AnalysisResults, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return AnalysisResults{}, err
	}
	if rec.Status != analysis.StatusCompleted {
		return AnalysisResults{}, ErrNotCompleted
	}
	return AnalysisResults{
		ID:            rec.ID,
		Transcription: rec.Transcription,
		Prosody:       rec.Prosody,
		Feedback:      rec.Feedback,
		CompletedAt:   formatTimePtr(rec.CompletedAt),
	}, nil
}

// History returns up to limit records, newest first. A non-positive limit
// returns everything.
func (r *StatusReporter) History(ctx context.Context, limit int) ([]Analysis, error) {
	records, err := r.store.List(ctx, analysis.ListOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	return FromAnalyses(records), nil
}
