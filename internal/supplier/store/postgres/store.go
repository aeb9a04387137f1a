// Package postgres implements the supplier pipeline store over
// PostgreSQL. Processing logs are append-only; scored submissions carry
// their field errors and extracted data as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Louguiman/tekra-store-sub002/internal/supplier"
)

type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed supplier pipeline store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the pipeline tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processing_logs (
			id UUID PRIMARY KEY,
			submission_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			processing_time_ms BIGINT NOT NULL DEFAULT 0,
			error_message TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_logs_submission ON processing_logs (submission_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS template_submissions (
			id UUID PRIMARY KEY,
			submission_id TEXT NOT NULL,
			result TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			validation_errors JSONB,
			extracted_data JSONB,
			processing_time_ms BIGINT NOT NULL DEFAULT 0,
			feedback TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_template_submissions_created ON template_submissions (created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure supplier schema: %w", err)
		}
	}
	return nil
}

func (s *Store) InsertLog(ctx context.Context, log supplier.ProcessingLog) error {
	metadata, err := marshalJSON(log.Metadata)
	if err != nil {
		return fmt.Errorf("marshal log metadata: %w", err)
	}

	query := `
		INSERT INTO processing_logs (
			id, submission_id, stage, status, processing_time_ms,
			error_message, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		log.ID,
		log.SubmissionID,
		string(log.Stage),
		string(log.Status),
		log.ProcessingTimeMs,
		nullable(log.ErrorMessage),
		metadata,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert processing log: %w", err)
	}
	return nil
}

func (s *Store) ListBySubmission(ctx context.Context, submissionID string) ([]supplier.ProcessingLog, error) {
	query := `
		SELECT id, submission_id, stage, status, processing_time_ms,
			error_message, metadata, created_at
		FROM processing_logs
		WHERE submission_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list processing logs: %w", err)
	}
	defer rows.Close()

	var out []supplier.ProcessingLog
	for rows.Next() {
		var (
			log      supplier.ProcessingLog
			errMsg   sql.NullString
			metadata []byte
		)
		if err := rows.Scan(
			&log.ID,
			&log.SubmissionID,
			&log.Stage,
			&log.Status,
			&log.ProcessingTimeMs,
			&errMsg,
			&metadata,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan processing log: %w", err)
		}
		log.ErrorMessage = errMsg.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &log.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal log metadata: %w", err)
			}
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

func (s *Store) InsertSubmission(ctx context.Context, sub supplier.TemplateSubmission) error {
	validationErrors, err := marshalJSON(sub.ValidationErrors)
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}
	extracted, err := marshalJSON(sub.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}

	query := `
		INSERT INTO template_submissions (
			id, submission_id, result, confidence_score, validation_errors,
			extracted_data, processing_time_ms, feedback, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		sub.ID,
		sub.SubmissionID,
		string(sub.Result),
		sub.ConfidenceScore,
		validationErrors,
		extracted,
		sub.ProcessingTimeMs,
		nullable(sub.Feedback),
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template submission: %w", err)
	}
	return nil
}

func (s *Store) ListSubmissions(ctx context.Context, start, end *time.Time) ([]supplier.TemplateSubmission, error) {
	query := `
		SELECT id, submission_id, result, confidence_score, validation_errors,
			extracted_data, processing_time_ms, feedback, created_at
		FROM template_submissions
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("list template submissions: %w", err)
	}
	defer rows.Close()

	var out []supplier.TemplateSubmission
	for rows.Next() {
		var (
			sub              supplier.TemplateSubmission
			validationErrors []byte
			extracted        []byte
			feedback         sql.NullString
		)
		if err := rows.Scan(
			&sub.ID,
			&sub.SubmissionID,
			&sub.Result,
			&sub.ConfidenceScore,
			&validationErrors,
			&extracted,
			&sub.ProcessingTimeMs,
			&feedback,
			&sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan template submission: %w", err)
		}
		sub.Feedback = feedback.String
		if len(validationErrors) > 0 {
			if err := json.Unmarshal(validationErrors, &sub.ValidationErrors); err != nil {
				return nil, fmt.Errorf("unmarshal validation errors: %w", err)
			}
		}
		if len(extracted) > 0 {
			if err := json.Unmarshal(extracted, &sub.ExtractedData); err != nil {
				return nil, fmt.Errorf("unmarshal extracted data: %w", err)
			}
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

var _ supplier.Store = (*Store)(nil)
