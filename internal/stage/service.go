package stage

import (
	"context"

	"classcoach/internal/analysis"
)

// Stage names, also used as log and error-message prefixes.
const (
	NameTranscription = "transcription"
	NameProsody       = "prosody"
	NameFeedback      = "feedback"
)

// Input carries everything a stage may need. Each service reads only the
// fields relevant to it.
type Input struct {
	AnalysisID    int64
	SourceRef     string
	Language      string
	Transcription analysis.Document
	Prosody       analysis.Document
	Context       analysis.EducationalContext
}

// Service is the contract every external stage integration satisfies.
type Service interface {
	Name() string
	Run(ctx context.Context, in Input) (analysis.Document, error)
	HealthCheck(ctx context.Context) Health
}
