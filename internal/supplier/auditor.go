package supplier

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
	"github.com/Louguiman/tekra-store-sub002/pkg/requestcontext"
)

// Metadata keys used for submission/supplier attribution. ResourceID is
// the canonical key; these survive as a read shim for events attributed
// to the other side of the relationship.
const (
	metaSupplierID   = "supplierId"
	metaSubmissionID = "submissionId"
)

// EventRecorder is the slice of the audit recorder the facade writes
// through.
type EventRecorder interface {
	Record(ctx context.Context, in audit.EventInput) (audit.Event, error)
}

// TrailReader is the slice of the event store the facade reads trails
// from.
type TrailReader interface {
	ListTrail(ctx context.Context, resource audit.Resource, metadataKey, id string, filter audit.EventFilter) ([]audit.Event, error)
}

// Auditor maps supplier pipeline domain events onto generic audit events.
// Each Log method is a thin mapping: validation of the underlying business
// data belongs to the producing stage, not here.
type Auditor struct {
	recorder EventRecorder
	trail    TrailReader
	store    Store
	logger   *slog.Logger
}

// Option configures the Auditor.
type Option func(*Auditor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) { a.logger = logger }
}

// WithStore attaches the processing-log and scoring store. Without it the
// facade still records audit events but RecordStage and
// RecordSubmissionResult are unavailable.
func WithStore(store Store) Option {
	return func(a *Auditor) { a.store = store }
}

// NewAuditor constructs the supplier audit facade.
func NewAuditor(recorder EventRecorder, trail TrailReader, opts ...Option) (*Auditor, error) {
	if recorder == nil {
		return nil, errors.New("event recorder is required")
	}
	if trail == nil {
		return nil, errors.New("trail reader is required")
	}

	a := &Auditor{recorder: recorder, trail: trail}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// LogSupplierRegistration records a new supplier joining the platform.
func (a *Auditor) LogSupplierRegistration(ctx context.Context, e RegistrationEvent) (audit.Event, error) {
	return a.recorder.Record(ctx, audit.EventInput{
		ActorID:     e.SupplierID,
		Action:      audit.ActionSupplierRegistration,
		Resource:    audit.ResourceSupplier,
		ResourceID:  e.SupplierID,
		Description: "supplier registered: " + e.Name,
		Metadata: map[string]any{
			metaSupplierID: e.SupplierID,
			"name":         e.Name,
			"phone":        e.Phone,
		},
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	})
}

// LogSupplierAuthentication records a supplier login attempt. Failed
// attempts are recorded at medium severity so the security monitor's
// brute-force check has the signal it counts.
func (a *Auditor) LogSupplierAuthentication(ctx context.Context, e AuthenticationEvent) (audit.Event, error) {
	severity := audit.SeverityLow
	if !e.Success {
		severity = audit.SeverityMedium
	}
	return a.recorder.Record(ctx, audit.EventInput{
		ActorID:      e.SupplierID,
		Action:       audit.ActionLogin,
		Resource:     audit.ResourceAuth,
		ResourceID:   e.SupplierID,
		Severity:     severity,
		Description:  "supplier authentication",
		Metadata:     map[string]any{metaSupplierID: e.SupplierID},
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		Success:      &e.Success,
		ErrorMessage: e.ErrorMessage,
	})
}

// LogSupplierSubmission records a product submission arriving through the
// messaging webhook.
func (a *Auditor) LogSupplierSubmission(ctx context.Context, e SubmissionEvent) (audit.Event, error) {
	if !e.ContentType.Valid() {
		return audit.Event{}, dErrors.Newf(dErrors.CodeValidation, "invalid content type %q", e.ContentType)
	}
	return a.recorder.Record(ctx, audit.EventInput{
		ActorID:     e.SupplierID,
		Action:      audit.ActionSupplierSubmission,
		Resource:    audit.ResourceSupplierSubmission,
		ResourceID:  e.SubmissionID,
		Description: "supplier submission received (" + string(e.ContentType) + ")",
		Metadata: map[string]any{
			metaSupplierID:   e.SupplierID,
			metaSubmissionID: e.SubmissionID,
			"contentType":    string(e.ContentType),
			"messageId":      e.MessageID,
		},
	})
}

// LogAIProcessing records the outcome of one AI extraction run.
func (a *Auditor) LogAIProcessing(ctx context.Context, e AIProcessingEvent) (audit.Event, error) {
	severity := audit.SeverityLow
	metadata := map[string]any{
		metaSupplierID:   e.SupplierID,
		metaSubmissionID: e.SubmissionID,
		"model":          e.Model,
	}
	if e.Success {
		metadata["extractedProducts"] = e.ExtractedProducts
		metadata["avgConfidence"] = e.AvgConfidence
		metadata["processingTimeMs"] = e.ProcessingTimeMs
	} else {
		// A failed run extracted nothing and has no confidence to report;
		// leaving the keys out keeps them out of the averages.
		severity = audit.SeverityMedium
	}
	return a.recorder.Record(ctx, audit.EventInput{
		ActorID:      e.SupplierID,
		Action:       audit.ActionAIProcessing,
		Resource:     audit.ResourceSupplierSubmission,
		ResourceID:   e.SubmissionID,
		Severity:     severity,
		Description:  "AI extraction run",
		Metadata:     metadata,
		Success:      &e.Success,
		ErrorMessage: e.ErrorMessage,
	})
}

// LogValidation records a human validator's decision on extracted
// products.
func (a *Auditor) LogValidation(ctx context.Context, e ValidationEvent) (audit.Event, error) {
	if err := e.Validate(); err != nil {
		return audit.Event{}, err
	}
	return a.recorder.Record(ctx, audit.EventInput{
		ActorID:     e.ValidatorID,
		Action:      e.Action,
		Resource:    audit.ResourceSupplierSubmission,
		ResourceID:  e.SubmissionID,
		Description: "human validation: " + string(e.Action),
		Metadata: map[string]any{
			metaSupplierID:   e.SupplierID,
			metaSubmissionID: e.SubmissionID,
			"productCount":   e.ProductCount,
			"edits":          e.Edits,
			"feedback":       e.Feedback,
		},
	})
}

// LogInventoryIntegration records one validated product landing in
// inventory.
func (a *Auditor) LogInventoryIntegration(ctx context.Context, e InventoryIntegrationEvent) (audit.Event, error) {
	severity := audit.SeverityLow
	if !e.Success {
		severity = audit.SeverityMedium
	}
	return a.recorder.Record(ctx, audit.EventInput{
		ActorID:     e.SupplierID,
		Action:      audit.ActionInventoryIntegration,
		Resource:    audit.ResourceInventory,
		ResourceID:  e.ProductID,
		Severity:    severity,
		Description: "inventory integration: " + string(e.Operation),
		Metadata: map[string]any{
			metaSupplierID:   e.SupplierID,
			metaSubmissionID: e.SubmissionID,
			"inventoryId":    e.InventoryID,
			"operation":      string(e.Operation),
		},
		Success:      &e.Success,
		ErrorMessage: e.ErrorMessage,
	})
}

// supplierTrailResources are the resource kinds a supplier's lifecycle
// events land under: registration on the supplier itself, logins on auth,
// the pipeline stages on the submission, and product landings on
// inventory. Every writer stamps the supplierId metadata key, so each
// resource is queried with the same dual-key lookup.
var supplierTrailResources = []audit.Resource{
	audit.ResourceSupplier,
	audit.ResourceAuth,
	audit.ResourceSupplierSubmission,
	audit.ResourceInventory,
}

// GetSupplierAuditTrail returns every event attributed to the supplier,
// whether the supplier was the primary resource or only referenced in the
// event's metadata, newest first.
func (a *Auditor) GetSupplierAuditTrail(ctx context.Context, supplierID string, filter audit.EventFilter) ([]audit.Event, error) {
	if supplierID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "supplier id is required")
	}
	filter.Normalize()

	var merged []audit.Event
	for _, resource := range supplierTrailResources {
		events, err := a.trail.ListTrail(ctx, resource, metaSupplierID, supplierID, filter)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load supplier trail")
		}
		merged = append(merged, events...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

// GetSubmissionAuditTrail returns every event attributed to the
// submission, newest first. Events carrying the submission id only in
// metadata are included.
func (a *Auditor) GetSubmissionAuditTrail(ctx context.Context, submissionID string) ([]audit.Event, error) {
	if submissionID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "submission id is required")
	}

	events, err := a.trail.ListTrail(ctx, audit.ResourceSupplierSubmission, metaSubmissionID, submissionID, audit.EventFilter{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load submission trail")
	}
	return events, nil
}

// RecordStage appends one row to the submission's processing log.
func (a *Auditor) RecordStage(ctx context.Context, submissionID string, stage Stage, status StageStatus, durationMs int64, errMsg string, metadata map[string]any) (ProcessingLog, error) {
	if a.store == nil {
		return ProcessingLog{}, dErrors.New(dErrors.CodeUnavailable, "processing log store not configured")
	}
	if submissionID == "" {
		return ProcessingLog{}, dErrors.New(dErrors.CodeValidation, "submission id is required")
	}
	if !stage.Valid() {
		return ProcessingLog{}, dErrors.Newf(dErrors.CodeValidation, "invalid processing stage %q", stage)
	}
	if !status.Valid() {
		return ProcessingLog{}, dErrors.Newf(dErrors.CodeValidation, "invalid processing status %q", status)
	}

	log := ProcessingLog{
		ID:               uuid.New(),
		SubmissionID:     submissionID,
		Stage:            stage,
		Status:           status,
		ProcessingTimeMs: durationMs,
		ErrorMessage:     errMsg,
		Metadata:         metadata,
		CreatedAt:        requestcontext.Now(ctx),
	}
	if err := a.store.InsertLog(ctx, log); err != nil {
		return ProcessingLog{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert processing log")
	}

	if status == StageFailed && a.logger != nil {
		a.logger.WarnContext(ctx, "submission stage failed",
			"submission_id", submissionID,
			"stage", stage,
			"error", errMsg,
		)
	}
	return log, nil
}

// GetProcessingLogs returns the submission's stage log in attempt order.
func (a *Auditor) GetProcessingLogs(ctx context.Context, submissionID string) ([]ProcessingLog, error) {
	if a.store == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "processing log store not configured")
	}
	logs, err := a.store.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list processing logs")
	}
	return logs, nil
}

// RecordSubmissionResult stores one scored submission attempt.
func (a *Auditor) RecordSubmissionResult(ctx context.Context, sub TemplateSubmission) (TemplateSubmission, error) {
	if a.store == nil {
		return TemplateSubmission{}, dErrors.New(dErrors.CodeUnavailable, "submission store not configured")
	}
	if sub.SubmissionID == "" {
		return TemplateSubmission{}, dErrors.New(dErrors.CodeValidation, "submission id is required")
	}
	if !sub.Result.Valid() {
		return TemplateSubmission{}, dErrors.Newf(dErrors.CodeValidation, "invalid submission result %q", sub.Result)
	}
	if sub.ConfidenceScore < 0 || sub.ConfidenceScore > 100 {
		return TemplateSubmission{}, dErrors.Newf(dErrors.CodeValidation, "confidence score %v outside 0-100", sub.ConfidenceScore)
	}
	for _, fe := range sub.ValidationErrors {
		if !fe.Kind.Valid() {
			return TemplateSubmission{}, dErrors.Newf(dErrors.CodeValidation, "invalid field error kind %q", fe.Kind)
		}
	}

	sub.ID = uuid.New()
	sub.CreatedAt = requestcontext.Now(ctx)
	if err := a.store.InsertSubmission(ctx, sub); err != nil {
		return TemplateSubmission{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert template submission")
	}
	return sub, nil
}
