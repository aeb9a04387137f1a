// Package access implements the role-based access decision point. The
// decision itself is a pure function of the required-role set and the
// acting principal; the audit side effects on denial are what make it a
// service.
package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/metrics"
	pstrings "github.com/Louguiman/tekra-store-sub002/pkg/platform/strings"
	"github.com/Louguiman/tekra-store-sub002/pkg/requestcontext"
)

// Recorder is the slice of the audit recorder the decision point writes
// through on denial.
type Recorder interface {
	Record(ctx context.Context, in audit.EventInput) (audit.Event, error)
	RecordAlert(ctx context.Context, in audit.AlertInput) (audit.Alert, error)
}

// Principal is the acting identity. A zero UserID means anonymous.
type Principal struct {
	UserID string
	Role   string
}

// RequestInfo carries the forensic context attached to a denial event.
type RequestInfo struct {
	Method   string
	Endpoint string
}

// Decider evaluates required-role sets and audits denials.
type Decider struct {
	recorder Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Decider.
type Option func(*Decider)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decider) { d.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Decider) { d.metrics = m }
}

// New constructs a Decider writing denials through the given recorder.
func New(recorder Recorder, opts ...Option) (*Decider, error) {
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}

	d := &Decider{recorder: recorder}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Decide evaluates whether the principal may perform the guarded
// operation. An empty requiredRoles set means the operation is public.
//
// The boolean is always valid. A non-nil error means the decision was
// deny AND the audit side effects could not be persisted; callers decide
// whether an unauditable denial may still be served.
//
// Anonymous denials produce no audit side effect: there is no actor to
// attribute them to, and crawlers hitting protected routes are expected
// traffic, not signal.
func (d *Decider) Decide(ctx context.Context, principal Principal, requiredRoles []string, req RequestInfo) (bool, error) {
	requiredRoles = pstrings.DedupeAndTrim(requiredRoles)
	if len(requiredRoles) == 0 {
		return true, nil
	}
	if principal.UserID == "" {
		return false, nil
	}
	for _, role := range requiredRoles {
		if principal.Role == role {
			return true, nil
		}
	}

	if d.metrics != nil {
		d.metrics.AccessDenials.Inc()
	}
	if d.logger != nil {
		d.logger.WarnContext(ctx, "access denied",
			"actor_id", principal.UserID,
			"role", principal.Role,
			"endpoint", req.Endpoint,
			"method", req.Method,
		)
	}

	return false, d.auditDenial(ctx, principal, requiredRoles, req)
}

func (d *Decider) auditDenial(ctx context.Context, principal Principal, requiredRoles []string, req RequestInfo) error {
	failed := false
	_, err := d.recorder.Record(ctx, audit.EventInput{
		ActorID:      principal.UserID,
		Action:       audit.ActionAccessDenied,
		Resource:     audit.ResourceSystem,
		Severity:     audit.SeverityHigh,
		Description:  "attempt to access a resource without sufficient permissions",
		Success:      &failed,
		ErrorMessage: "Insufficient permissions",
		Metadata: map[string]any{
			"requiredRoles": requiredRoles,
			"userRole":      principal.Role,
			"endpoint":      req.Endpoint,
			"method":        req.Method,
		},
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		SessionID: requestcontext.SessionID(ctx),
	})
	if err != nil {
		return err
	}

	_, err = d.recorder.RecordAlert(ctx, audit.AlertInput{
		Type:        audit.AlertUnauthorizedAccess,
		Severity:    audit.SeverityMedium,
		Description: "unauthorized access attempt on " + req.Method + " " + req.Endpoint,
		Details: map[string]any{
			"requiredRoles": requiredRoles,
			"userRole":      principal.Role,
			"endpoint":      req.Endpoint,
			"method":        req.Method,
		},
		AffectedUserID: principal.UserID,
		IPAddress:      requestcontext.ClientIP(ctx),
		UserAgent:      requestcontext.UserAgent(ctx),
	})
	return err
}
