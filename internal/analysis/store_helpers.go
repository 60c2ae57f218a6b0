package analysis

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = "id, status, source_ref, original_filename, subject, grade_level, lesson_topic, additional_context, transcription_json, prosody_json, feedback_json, error_message, created_at, updated_at, completed_at"

// timeLayout has fixed-width fractional seconds so stored timestamps compare
// correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*AudioAnalysis, error) {
	var (
		id                int64
		status            string
		sourceRef         string
		originalFilename  sql.NullString
		subject           sql.NullString
		gradeLevel        sql.NullString
		lessonTopic       sql.NullString
		additionalContext sql.NullString
		transcriptionRaw  sql.NullString
		prosodyRaw        sql.NullString
		feedbackRaw       sql.NullString
		errorMessage      sql.NullString
		createdRaw        string
		updatedRaw        string
		completedRaw      sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&status,
		&sourceRef,
		&originalFilename,
		&subject,
		&gradeLevel,
		&lessonTopic,
		&additionalContext,
		&transcriptionRaw,
		&prosodyRaw,
		&feedbackRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	record := &AudioAnalysis{
		ID:               id,
		Status:           Status(status),
		SourceRef:        sourceRef,
		OriginalFilename: originalFilename.String,
		Context: EducationalContext{
			Subject:           subject.String,
			GradeLevel:        gradeLevel.String,
			LessonTopic:       lessonTopic.String,
			AdditionalContext: additionalContext.String,
		},
		ErrorMessage: errorMessage.String,
	}

	var err error
	if record.Transcription, err = decodeDocument(transcriptionRaw); err != nil {
		return nil, fmt.Errorf("decode transcription result: %w", err)
	}
	if record.Prosody, err = decodeDocument(prosodyRaw); err != nil {
		return nil, fmt.Errorf("decode prosody result: %w", err)
	}
	if record.Feedback, err = decodeDocument(feedbackRaw); err != nil {
		return nil, fmt.Errorf("decode feedback result: %w", err)
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			record.CompletedAt = &completed
		}
	}
	return record, nil
}

func encodeDocument(doc Document) (any, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeDocument(raw sql.NullString) (Document, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw.String), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func statusArgs(statuses []Status) []any {
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return args
}
