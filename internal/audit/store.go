package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventStore is append-only persistence for audit events. Implementations
// never expose update or delete of event rows.
type EventStore interface {
	// Append persists one immutable event row.
	Append(ctx context.Context, event Event) error

	// QueryEvents returns a page of events matching the filter, newest first.
	QueryEvents(ctx context.Context, filter EventFilter) (Page[Event], error)

	// ListRange returns all events in [start, end] for aggregation.
	// Nil bounds are open-ended.
	ListRange(ctx context.Context, start, end *time.Time) ([]Event, error)

	// CountFailedLogins counts failed login events from an IP since the
	// window start. Feeds the brute-force check.
	CountFailedLogins(ctx context.Context, ipAddress string, since time.Time) (int, error)

	// ListLoginSources returns the distinct (ip, user-agent) pairs from an
	// actor's successful logins since the lookback start.
	ListLoginSources(ctx context.Context, actorID string, since time.Time) ([]LoginSource, error)

	// ListTrail returns events for a resource attributed either by the
	// primary ResourceID column or by a metadata key carrying the same id.
	// The metadata fallback is a read compatibility shim; ResourceID is the
	// canonical attribution going forward.
	ListTrail(ctx context.Context, resource Resource, metadataKey, id string, filter EventFilter) ([]Event, error)
}

// AlertStore persists security alerts. Insert-once plus the single
// resolution mutation; concurrent resolutions are last-writer-wins.
type AlertStore interface {
	// Insert persists a new alert.
	Insert(ctx context.Context, alert Alert) error

	// Get returns the alert with the given id.
	Get(ctx context.Context, id uuid.UUID) (Alert, error)

	// UpdateResolution overwrites the resolution fields of an alert.
	UpdateResolution(ctx context.Context, alert Alert) error

	// QueryAlerts returns a page of alerts matching the filter, newest first.
	QueryAlerts(ctx context.Context, filter AlertFilter) (Page[Alert], error)
}

// Store combines event and alert persistence. The postgres and memory
// implementations satisfy it with a single backing instance.
type Store interface {
	EventStore
	AlertStore
}
