package supplier

import (
	"context"
	"time"
)

// ProcessingLogStore persists the append-only pipeline stage log.
type ProcessingLogStore interface {
	InsertLog(ctx context.Context, log ProcessingLog) error
	// ListBySubmission returns a submission's stage log ordered by CreatedAt
	// ascending, the order the stages were attempted in.
	ListBySubmission(ctx context.Context, submissionID string) ([]ProcessingLog, error)
}

// SubmissionStore persists scored submission attempts.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, sub TemplateSubmission) error
	ListSubmissions(ctx context.Context, start, end *time.Time) ([]TemplateSubmission, error)
}

// Store combines the supplier pipeline's two persistence concerns.
type Store interface {
	ProcessingLogStore
	SubmissionStore
}
