package api

import (
	"slices"
	"strings"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/preflight"
	"classcoach/internal/stage"
	"classcoach/internal/workflow"
)

// FromAnalysis converts a store record to its API representation.
func FromAnalysis(rec *analysis.AudioAnalysis) Analysis {
	if rec == nil {
		return Analysis{}
	}
	return Analysis{
		ID:               rec.ID,
		Status:           string(rec.Status),
		OriginalFilename: rec.OriginalFilename,
		SourceRef:        rec.SourceRef,
		Context: EducationalContext{
			Subject:           rec.Context.Subject,
			GradeLevel:        rec.Context.GradeLevel,
			LessonTopic:       rec.Context.LessonTopic,
			AdditionalContext: rec.Context.AdditionalContext,
		},
		Transcription: rec.Transcription,
		Prosody:       rec.Prosody,
		Feedback:      rec.Feedback,
		ErrorMessage:  rec.ErrorMessage,
		CreatedAt:     formatTime(rec.CreatedAt),
		UpdatedAt:     formatTime(rec.UpdatedAt),
		CompletedAt:   formatTimePtr(rec.CompletedAt),
	}
}

// FromAnalyses converts a slice of store records into API DTOs.
func FromAnalyses(records []*analysis.AudioAnalysis) []Analysis {
	out := make([]Analysis, 0, len(records))
	for _, rec := range records {
		out = append(out, FromAnalysis(rec))
	}
	return out
}

// StatusView projects the polling fields of a record.
func StatusView(rec *analysis.AudioAnalysis) AnalysisStatus {
	if rec == nil {
		return AnalysisStatus{}
	}
	return AnalysisStatus{
		ID:           rec.ID,
		Status:       string(rec.Status),
		ErrorMessage: rec.ErrorMessage,
		CompletedAt:  formatTimePtr(rec.CompletedAt),
	}
}

// FromStatusSummary converts workflow diagnostics into the API shape.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		InFlight:    summary.InFlight,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
		StageHealth: StageHealthSlice(summary.StageHealth),
		Preflight:   FromPreflight(summary.Preflight),
	}
	if summary.LastItem != nil {
		item := FromAnalysis(summary.LastItem)
		status.LastItem = &item
	}
	if sweep := summary.LastSweep; !sweep.At.IsZero() {
		status.LastSweep = &SweepStatus{
			At:     formatTime(sweep.At),
			Marked: sweep.Marked,
			Error:  sweep.Error,
		}
	}
	return status
}

// MergeQueueStats keys counts by status string and fills in every known
// status so consumers always see the full set.
func MergeQueueStats(stats map[analysis.Status]int) map[string]int {
	out := make(map[string]int, len(analysis.AllStatuses()))
	for _, status := range analysis.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] += count
	}
	return out
}

// StageHealthSlice returns stage health in a deterministic order.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	order := map[string]int{stage.NameTranscription: 0, stage.NameProsody: 1, stage.NameFeedback: 2}
	slices.SortFunc(out, func(a, b StageHealth) int {
		ra, okA := order[a.Name]
		rb, okB := order[b.Name]
		switch {
		case okA && okB:
			return ra - rb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return strings.Compare(a.Name, b.Name)
		}
	})
	return out
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// ParseTime parses a timestamp produced by this package.
func ParseTime(value string) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, value)
	}
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
