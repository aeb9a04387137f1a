// Package notify delivers best-effort operational notifications for
// high-severity audit events and freshly raised alerts. Delivery never
// blocks or fails the recorder's store write: sinks are buffered, failures
// are counted and logged, and overflow drops the oldest notification.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
)

// Kind distinguishes what a notification is about.
type Kind string

const (
	KindEvent Kind = "event"
	KindAlert Kind = "alert"
)

// Notification is the sink-agnostic payload pushed to operational channels.
type Notification struct {
	Kind        Kind
	ID          uuid.UUID
	Action      string // set for events
	AlertType   string // set for alerts
	Severity    string
	Description string
	ActorID     string
	IPAddress   string
	CreatedAt   time.Time
}

// FromEvent builds a notification for a recorded high-severity event.
func FromEvent(e audit.Event) Notification {
	return Notification{
		Kind:        KindEvent,
		ID:          e.ID,
		Action:      string(e.Action),
		Severity:    string(e.Severity),
		Description: e.Description,
		ActorID:     e.ActorID,
		IPAddress:   e.IPAddress,
		CreatedAt:   e.CreatedAt,
	}
}

// FromAlert builds a notification for a raised alert.
func FromAlert(a audit.Alert) Notification {
	return Notification{
		Kind:        KindAlert,
		ID:          a.ID,
		AlertType:   string(a.Type),
		Severity:    string(a.Severity),
		Description: a.Description,
		ActorID:     a.AffectedUserID,
		IPAddress:   a.IPAddress,
		CreatedAt:   a.CreatedAt,
	}
}

// Notifier is one operational sink.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// FailureCounter is the slice of the metrics registry the fanout needs.
type FailureCounter interface {
	Inc()
}

// Fanout delivers a notification to every configured sink. A failing sink
// is logged and counted; it never stops delivery to the others and never
// surfaces an error to the recorder.
type Fanout struct {
	sinks    []Notifier
	logger   *slog.Logger
	failures FailureCounter
}

// Option configures the Fanout.
type Option func(*Fanout)

// WithLogger sets the logger for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fanout) { f.logger = logger }
}

// WithFailureCounter sets the counter incremented on sink failures.
func WithFailureCounter(c FailureCounter) Option {
	return func(f *Fanout) { f.failures = c }
}

// NewFanout builds a fanout over the given sinks. Nil sinks are skipped so
// callers can pass optionally-configured sinks directly.
func NewFanout(sinks []Notifier, opts ...Option) *Fanout {
	f := &Fanout{}
	for _, sink := range sinks {
		if sink != nil {
			f.sinks = append(f.sinks, sink)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Notify delivers n to every sink, best effort.
func (f *Fanout) Notify(ctx context.Context, n Notification) error {
	for _, sink := range f.sinks {
		if err := sink.Notify(ctx, n); err != nil {
			if f.failures != nil {
				f.failures.Inc()
			}
			if f.logger != nil {
				f.logger.WarnContext(ctx, "notification sink failed",
					"kind", n.Kind,
					"id", n.ID,
					"error", err,
				)
			}
		}
	}
	return nil
}
