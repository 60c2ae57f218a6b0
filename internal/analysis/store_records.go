package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Create inserts a new record in the uploaded status.
func (s *Store) Create(ctx context.Context, input NewAnalysis) (*AudioAnalysis, error) {
	ref := strings.TrimSpace(input.SourceRef)
	if ref == "" {
		return nil, errors.New("create analysis: source ref is required")
	}
	created, err := parseTimeString(formatTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	record := &AudioAnalysis{
		Status:           StatusUploaded,
		SourceRef:        ref,
		OriginalFilename: strings.TrimSpace(input.OriginalFilename),
		Context: EducationalContext{
			Subject:           strings.TrimSpace(input.Context.Subject),
			GradeLevel:        strings.TrimSpace(input.Context.GradeLevel),
			LessonTopic:       strings.TrimSpace(input.Context.LessonTopic),
			AdditionalContext: strings.TrimSpace(input.Context.AdditionalContext),
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	timestamp := formatTime(created)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO analyses (
            status, source_ref, original_filename, subject, grade_level,
            lesson_topic, additional_context, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(record.Status),
		record.SourceRef,
		nullableString(record.OriginalFilename),
		nullableString(record.Context.Subject),
		nullableString(record.Context.GradeLevel),
		nullableString(record.Context.LessonTopic),
		nullableString(record.Context.AdditionalContext),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, storageErr("create", err)
	}
	// The row exists from here on.
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("create: last insert id", err)
	}
	record.ID = id
	return record, nil
}

// Get fetches a record by identifier.
func (s *Store) Get(ctx context.Context, id int64) (*AudioAnalysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM analyses WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return record, nil
}

// Update applies a guarded status change. The write only lands while the row
// still carries m.From; otherwise ErrStaleWrite is returned (or ErrNotFound for
// an unknown id). Entering a terminal status stamps completed_at.
func (s *Store) Update(ctx context.Context, id int64, m Mutation) (*AudioAnalysis, error) {
	column, result, err := m.validate()
	if err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(m.To), now}
	if column != "" {
		encoded, err := encodeDocument(result)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", column, err)
		}
		sets = append(sets, column+" = ?")
		args = append(args, encoded)
	}
	if m.To == StatusError {
		sets = append(sets, "error_message = ?")
		args = append(args, m.ErrorMessage)
	}
	if m.To.IsTerminal() {
		sets = append(sets, "completed_at = ?")
		args = append(args, now)
	}
	args = append(args, id, string(m.From))

	res, err := s.execWithRetry(ctx,
		`UPDATE analyses SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return nil, storageErr("update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr("update: rows affected", err)
	}
	if affected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: analysis %d is %s, expected %s", ErrStaleWrite, id, current.Status, m.From)
	}
	return s.Get(ctx, id)
}

// List returns records newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*AudioAnalysis, error) {
	query := `SELECT ` + recordColumns + ` FROM analyses`
	var args []any
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		args = append(args, statusArgs(opts.Statuses)...)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	return s.query(ctx, "list", query, args...)
}

// ListUploaded returns records waiting to be claimed, oldest first.
func (s *Store) ListUploaded(ctx context.Context, limit int) ([]*AudioAnalysis, error) {
	query := `SELECT ` + recordColumns + ` FROM analyses WHERE status = ? ORDER BY id ASC`
	args := []any{string(StatusUploaded)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, "list uploaded", query, args...)
}

// ListStalled returns processing records whose last write is older than cutoff.
func (s *Store) ListStalled(ctx context.Context, cutoff time.Time) ([]*AudioAnalysis, error) {
	processing := ProcessingStatuses()
	args := append(statusArgs(processing), formatTime(cutoff))
	return s.query(ctx, "list stalled",
		`SELECT `+recordColumns+` FROM analyses
         WHERE status IN (`+makePlaceholders(len(processing))+`) AND updated_at < ?
         ORDER BY updated_at ASC`,
		args...,
	)
}

// MarkStalled moves a processing record to error through the same guarded
// update a driver uses, so a live driver that advanced the record first wins.
func (s *Store) MarkStalled(ctx context.Context, id int64, from Status, reason string) (*AudioAnalysis, error) {
	if reason == "" {
		reason = "stalled"
	}
	return s.Update(ctx, id, Mutation{From: from, To: StatusError, ErrorMessage: reason})
}

func (s *Store) query(ctx context.Context, op, query string, args ...any) ([]*AudioAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var records []*AudioAnalysis
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return records, nil
}
