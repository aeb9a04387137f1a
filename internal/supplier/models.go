// Package supplier maps the supplier-submission pipeline (registration,
// authentication, WhatsApp submission, AI extraction, human validation,
// inventory integration) onto the generic audit trail, and keeps the
// pipeline's own processing-log and scoring records.
package supplier

import (
	"time"

	"github.com/google/uuid"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

// ContentType is the closed set of submission payload kinds.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentPDF   ContentType = "pdf"
	ContentVoice ContentType = "voice"
)

var validContentTypes = map[ContentType]struct{}{
	ContentText: {}, ContentImage: {}, ContentPDF: {}, ContentVoice: {},
}

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	_, ok := validContentTypes[c]
	return ok
}

// Stage is one step of the submission pipeline.
type Stage string

const (
	StageWebhook         Stage = "webhook"
	StageAIExtraction    Stage = "ai_extraction"
	StageValidation      Stage = "validation"
	StageInventoryUpdate Stage = "inventory_update"
)

var validStages = map[Stage]struct{}{
	StageWebhook: {}, StageAIExtraction: {}, StageValidation: {}, StageInventoryUpdate: {},
}

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool {
	_, ok := validStages[s]
	return ok
}

// StageStatus is the outcome of one stage attempt.
type StageStatus string

const (
	StageStarted   StageStatus = "started"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

var validStageStatuses = map[StageStatus]struct{}{
	StageStarted: {}, StageCompleted: {}, StageFailed: {},
}

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	_, ok := validStageStatuses[s]
	return ok
}

// ProcessingLog is one row per attempted stage transition. A submission
// accumulates these append-only; failures never delete prior rows.
type ProcessingLog struct {
	ID               uuid.UUID      `json:"id"`
	SubmissionID     string         `json:"submissionId"`
	Stage            Stage          `json:"processingStage"`
	Status           StageStatus    `json:"processingStatus"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	ErrorMessage     string         `json:"errorMessage,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// SubmissionResult grades one scored submission attempt.
type SubmissionResult string

const (
	ResultSuccess        SubmissionResult = "success"
	ResultPartialSuccess SubmissionResult = "partial_success"
	ResultFailed         SubmissionResult = "failed"
)

var validResults = map[SubmissionResult]struct{}{
	ResultSuccess: {}, ResultPartialSuccess: {}, ResultFailed: {},
}

// Valid reports whether r is a known submission result.
func (r SubmissionResult) Valid() bool {
	_, ok := validResults[r]
	return ok
}

// FieldErrorKind classifies a field-level validation failure.
type FieldErrorKind string

const (
	FieldMissing       FieldErrorKind = "missing"
	FieldInvalidFormat FieldErrorKind = "invalid_format"
	FieldOutOfRange    FieldErrorKind = "out_of_range"
	FieldInvalidValue  FieldErrorKind = "invalid_value"
)

var validFieldErrorKinds = map[FieldErrorKind]struct{}{
	FieldMissing: {}, FieldInvalidFormat: {}, FieldOutOfRange: {}, FieldInvalidValue: {},
}

// Valid reports whether k is a known field error kind.
func (k FieldErrorKind) Valid() bool {
	_, ok := validFieldErrorKinds[k]
	return ok
}

// FieldError is one field-level validation error on a scored submission.
type FieldError struct {
	Field          string         `json:"field"`
	Kind           FieldErrorKind `json:"kind"`
	Message        string         `json:"message"`
	ExpectedFormat string         `json:"expectedFormat,omitempty"`
	ActualValue    string         `json:"actualValue,omitempty"`
}

// TemplateSubmission records one scored submission attempt.
type TemplateSubmission struct {
	ID               uuid.UUID        `json:"id"`
	SubmissionID     string           `json:"submissionId"`
	Result           SubmissionResult `json:"result"`
	ConfidenceScore  float64          `json:"confidenceScore"` // 0-100
	ValidationErrors []FieldError     `json:"validationErrors,omitempty"`
	ExtractedData    map[string]any   `json:"extractedData,omitempty"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	Feedback         string           `json:"feedback,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// RegistrationEvent is a new supplier joining the platform.
type RegistrationEvent struct {
	SupplierID string
	Name       string
	Phone      string
}

// AuthenticationEvent is a supplier login attempt, successful or not.
type AuthenticationEvent struct {
	SupplierID   string
	IPAddress    string
	UserAgent    string
	Success      bool
	ErrorMessage string
}

// SubmissionEvent is a product submission arriving through the messaging
// webhook.
type SubmissionEvent struct {
	SubmissionID string
	SupplierID   string
	ContentType  ContentType
	MessageID    string // external messaging-provider id
}

// AIProcessingEvent is the outcome of one AI extraction run.
type AIProcessingEvent struct {
	SubmissionID      string
	SupplierID        string
	ExtractedProducts int
	AvgConfidence     float64
	ProcessingTimeMs  int64
	Model             string
	Success           bool
	ErrorMessage      string
}

// validationActions are the audit actions a human validation may map to.
var validationActions = map[audit.Action]struct{}{
	audit.ActionApprove:     {},
	audit.ActionReject:      {},
	audit.ActionBulkApprove: {},
	audit.ActionBulkReject:  {},
}

// ValidationEvent is a human validator's decision on extracted products.
type ValidationEvent struct {
	SubmissionID string
	SupplierID   string
	ValidatorID  string
	Action       audit.Action // approve, reject, bulk_approve, bulk_reject
	ProductCount int
	Edits        map[string]any
	Feedback     string
}

// Validate rejects validation events whose action is outside the four
// validation verbs.
func (e ValidationEvent) Validate() error {
	if _, ok := validationActions[e.Action]; !ok {
		return dErrors.Newf(dErrors.CodeValidation, "invalid validation action %q", e.Action)
	}
	return nil
}

// IntegrationOp is what the inventory integration did with a validated
// product.
type IntegrationOp string

const (
	IntegrationCreate IntegrationOp = "create"
	IntegrationUpdate IntegrationOp = "update"
)

// InventoryIntegrationEvent is one validated product landing in inventory.
type InventoryIntegrationEvent struct {
	SubmissionID string
	SupplierID   string
	ProductID    string
	InventoryID  string
	Operation    IntegrationOp
	Success      bool
	ErrorMessage string
}
