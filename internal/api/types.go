package api

import "classcoach/internal/analysis"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// EducationalContext describes the lesson a recording came from.
type EducationalContext struct {
	Subject           string `json:"subject"`
	GradeLevel        string `json:"grade_level"`
	LessonTopic       string `json:"lesson_topic"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// Analysis describes a full analysis record.
type Analysis struct {
	ID               int64              `json:"id"`
	Status           string             `json:"status"`
	OriginalFilename string             `json:"original_filename"`
	SourceRef        string             `json:"source_ref"`
	Context          EducationalContext `json:"context"`
	Transcription    analysis.Document  `json:"transcription,omitempty"`
	Prosody          analysis.Document  `json:"prosody,omitempty"`
	Feedback         analysis.Document  `json:"feedback,omitempty"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	CreatedAt        string             `json:"created_at,omitempty"`
	UpdatedAt        string             `json:"updated_at,omitempty"`
	CompletedAt      string             `json:"completed_at,omitempty"`
}

// AnalysisStatus is the polling view of a record.
type AnalysisStatus struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// Terminal reports whether the status will not change again.
func (s AnalysisStatus) Terminal() bool {
	status, ok := analysis.ParseStatus(s.Status)
	return ok && status.IsTerminal()
}

// AnalysisResults carries the three stage outputs of a completed record.
type AnalysisResults struct {
	ID            int64             `json:"id"`
	Transcription analysis.Document `json:"transcription"`
	Prosody       analysis.Document `json:"prosody"`
	Feedback      analysis.Document `json:"feedback"`
	CompletedAt   string            `json:"completed_at,omitempty"`
}

// AnalysisListResponse wraps a collection of records.
type AnalysisListResponse struct {
	Items []Analysis `json:"items"`
}

// SubmitResponse acknowledges a new submission.
type SubmitResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// SweepStatus reports the most recent stalled-record sweep.
type SweepStatus struct {
	At     string `json:"at,omitempty"`
	Marked int    `json:"marked"`
	Error  string `json:"error,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	InFlight    int            `json:"in_flight"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error,omitempty"`
	LastItem    *Analysis      `json:"last_item,omitempty"`
	StageHealth []StageHealth  `json:"stage_health"`
	Preflight   []CheckResult  `json:"preflight,omitempty"`
	LastSweep   *SweepStatus   `json:"last_sweep,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockFilePath string         `json:"lock_file_path"`
	UploadDir    string         `json:"upload_dir"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
