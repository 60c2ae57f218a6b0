package analysis

import (
	"strings"
	"time"
)

// Status is the lifecycle position of an analysis record.
type Status string

const (
	StatusUploaded           Status = "uploaded"
	StatusTranscribing       Status = "transcribing"
	StatusAnalyzingProsody   Status = "analyzing_prosody"
	StatusGeneratingFeedback Status = "generating_feedback"
	StatusCompleted          Status = "completed"
	StatusError              Status = "error"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusTranscribing,
	StatusAnalyzingProsody,
	StatusGeneratingFeedback,
	StatusCompleted,
	StatusError,
}

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input into a known status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Document is a free-form JSON object produced by a pipeline stage.
type Document map[string]any

// EducationalContext describes the lesson a recording was taken from.
type EducationalContext struct {
	Subject           string `json:"subject"`
	GradeLevel        string `json:"grade_level"`
	LessonTopic       string `json:"lesson_topic"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// WithDefaults fills blank fields with the placeholders used in feedback prompts.
func (c EducationalContext) WithDefaults() EducationalContext {
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = "General"
	}
	if strings.TrimSpace(c.GradeLevel) == "" {
		c.GradeLevel = "No especificado"
	}
	if strings.TrimSpace(c.LessonTopic) == "" {
		c.LessonTopic = "Tema general"
	}
	return c
}

// AudioAnalysis is one submission and everything the pipeline learned about it.
type AudioAnalysis struct {
	ID               int64
	Status           Status
	SourceRef        string
	OriginalFilename string
	Context          EducationalContext
	Transcription    Document
	Prosody          Document
	Feedback         Document
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// IsTerminal reports whether the record has finished processing.
func (a *AudioAnalysis) IsTerminal() bool {
	return a != nil && a.Status.IsTerminal()
}

// NewAnalysis carries the fields a submission starts with.
type NewAnalysis struct {
	SourceRef        string
	OriginalFilename string
	Context          EducationalContext
}

// Mutation describes a single guarded status change. From must match the
// persisted status for the change to apply. Exactly the result produced by the
// stage being left must be set; ErrorMessage is set only when To is error.
type Mutation struct {
	From          Status
	To            Status
	Transcription Document
	Prosody       Document
	Feedback      Document
	ErrorMessage  string
}

// ListOptions filters List results.
type ListOptions struct {
	Statuses []Status
	Limit    int
}

// HealthSummary aggregates record counts for diagnostics.
type HealthSummary struct {
	Total      int `json:"total"`
	Uploaded   int `json:"uploaded"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// DatabaseHealth describes the state of the backing database file.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present,omitempty"`
	MissingColumns   []string `json:"missing_columns,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalRecords     int      `json:"total_records"`
	Error            string   `json:"error,omitempty"`
}
