// Package recorder implements the audit recorder: validate, persist,
// notify. It computes nothing about the events it records; pattern
// detection lives in the security monitor.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/internal/audit/notify"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/metrics"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
	"github.com/Louguiman/tekra-store-sub002/pkg/requestcontext"
)

// notifySeverity is the floor above which recorded events fan out to the
// operational notification sinks.
const notifySeverity = audit.SeverityHigh

// Notifier delivers best-effort operational notifications.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Recorder validates and persists audit events and security alerts.
type Recorder struct {
	store        audit.Store
	notifier     Notifier
	logger       *slog.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration
	tracer       trace.Tracer
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithNotifier sets the notification sink for high-severity events and
// raised alerts.
func WithNotifier(n Notifier) Option {
	return func(r *Recorder) { r.notifier = n }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithWriteTimeout bounds every store write. A timed-out write is a
// persistence failure: it propagates to the caller, never silently drops.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// New constructs a Recorder over the given store.
func New(store audit.Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}

	r := &Recorder{
		store:        store,
		writeTimeout: 5 * time.Second,
		tracer:       otel.Tracer("audit/recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record validates the input and persists one immutable audit event.
// Success defaults to true unless explicitly false. A store failure
// propagates to the caller: downstream security decisions depend on the
// write having happened, so it is never swallowed here.
func (r *Recorder) Record(ctx context.Context, in audit.EventInput) (audit.Event, error) {
	ctx, span := r.tracer.Start(ctx, "recorder.Record",
		trace.WithAttributes(
			attribute.String("audit.action", string(in.Action)),
			attribute.String("audit.resource", string(in.Resource)),
		))
	defer span.End()

	if err := in.Validate(); err != nil {
		return audit.Event{}, err
	}

	success := true
	if in.Success != nil {
		success = *in.Success
	}
	severity := in.Severity
	if severity == "" {
		severity = audit.SeverityLow
	}

	// Missing error message on a failure is a data-quality smell worth
	// surfacing, not a reason to reject the event.
	if !success && in.ErrorMessage == "" && r.logger != nil {
		r.logger.WarnContext(ctx, "failed audit event recorded without error message",
			"action", in.Action,
			"resource", in.Resource,
			"actor_id", in.ActorID,
		)
	}

	event := audit.Event{
		ID:           uuid.New(),
		ActorID:      in.ActorID,
		Action:       in.Action,
		Resource:     in.Resource,
		ResourceID:   in.ResourceID,
		Severity:     severity,
		Description:  in.Description,
		Metadata:     in.Metadata,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
		SessionID:    in.SessionID,
		Success:      success,
		ErrorMessage: in.ErrorMessage,
		CreatedAt:    requestcontext.Now(ctx),
	}

	if err := r.append(ctx, event); err != nil {
		return audit.Event{}, err
	}

	if r.metrics != nil {
		r.metrics.IncEventsRecorded(string(event.Severity))
	}
	if event.Severity.AtLeast(notifySeverity) {
		r.notify(ctx, notify.FromEvent(event))
	}

	return event, nil
}

// RecordAlert persists a new security alert. Alerts always start open
// regardless of input, and always fan out a notification.
func (r *Recorder) RecordAlert(ctx context.Context, in audit.AlertInput) (audit.Alert, error) {
	ctx, span := r.tracer.Start(ctx, "recorder.RecordAlert",
		trace.WithAttributes(attribute.String("alert.type", string(in.Type))))
	defer span.End()

	if err := in.Validate(); err != nil {
		return audit.Alert{}, err
	}

	severity := in.Severity
	if severity == "" {
		severity = audit.SeverityMedium
	}

	alert := audit.Alert{
		ID:             uuid.New(),
		Type:           in.Type,
		Severity:       severity,
		Description:    in.Description,
		Details:        in.Details,
		AffectedUserID: in.AffectedUserID,
		IPAddress:      in.IPAddress,
		UserAgent:      in.UserAgent,
		Status:         audit.AlertStatusOpen,
		CreatedAt:      requestcontext.Now(ctx),
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()
	if err := r.store.Insert(writeCtx, alert); err != nil {
		return audit.Alert{}, classifyWriteError(err, "insert security alert")
	}

	if r.metrics != nil {
		r.metrics.IncAlertsRaised(string(alert.Type))
	}
	r.notify(ctx, notify.FromAlert(alert))

	return alert, nil
}

// Resolve transitions an alert out of open. Re-resolving an already
// resolved alert overwrites the resolution metadata: the relaxed
// last-writer-wins policy, not a strict state machine.
func (r *Recorder) Resolve(ctx context.Context, alertID uuid.UUID, resolvedBy, notes string, status audit.AlertStatus) (audit.Alert, error) {
	ctx, span := r.tracer.Start(ctx, "recorder.Resolve",
		trace.WithAttributes(attribute.String("alert.id", alertID.String())))
	defer span.End()

	if status != audit.AlertStatusResolved && status != audit.AlertStatusDismissed {
		return audit.Alert{}, dErrors.Newf(dErrors.CodeValidation, "invalid resolution status %q", status)
	}
	if resolvedBy == "" {
		return audit.Alert{}, dErrors.New(dErrors.CodeValidation, "resolvedBy is required")
	}

	alert, err := r.store.Get(ctx, alertID)
	if err != nil {
		if dErrors.IsCode(err, dErrors.CodeNotFound) {
			return audit.Alert{}, err
		}
		return audit.Alert{}, dErrors.Wrap(err, dErrors.CodeInternal, "load security alert")
	}

	now := requestcontext.Now(ctx)
	alert.Status = status
	alert.ResolvedBy = resolvedBy
	alert.ResolutionNotes = notes
	alert.ResolvedAt = &now

	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()
	if err := r.store.UpdateResolution(writeCtx, alert); err != nil {
		if dErrors.IsCode(err, dErrors.CodeNotFound) {
			return audit.Alert{}, err
		}
		return audit.Alert{}, classifyWriteError(err, "update alert resolution")
	}

	if r.metrics != nil {
		r.metrics.AlertsResolved.Inc()
	}

	return alert, nil
}

// QueryEvents returns a page of events matching the filter.
func (r *Recorder) QueryEvents(ctx context.Context, filter audit.EventFilter) (audit.Page[audit.Event], error) {
	filter.Normalize()
	page, err := r.store.QueryEvents(ctx, filter)
	if err != nil {
		return page, dErrors.Wrap(err, dErrors.CodeInternal, "query audit events")
	}
	return page, nil
}

// QueryAlerts returns a page of alerts matching the filter.
func (r *Recorder) QueryAlerts(ctx context.Context, filter audit.AlertFilter) (audit.Page[audit.Alert], error) {
	filter.Normalize()
	page, err := r.store.QueryAlerts(ctx, filter)
	if err != nil {
		return page, dErrors.Wrap(err, dErrors.CodeInternal, "query security alerts")
	}
	return page, nil
}

func (r *Recorder) append(ctx context.Context, event audit.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.store.Append(writeCtx, event); err != nil {
		return classifyWriteError(err, "append audit event")
	}
	return nil
}

func (r *Recorder) notify(ctx context.Context, n notify.Notification) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, n); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "failed to deliver audit notification",
			"kind", n.Kind,
			"id", n.ID,
			"error", err,
		)
	}
}

// classifyWriteError distinguishes timeouts (retryable, CodeUnavailable)
// from other store failures (CodeInternal).
func classifyWriteError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg+": store write timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
