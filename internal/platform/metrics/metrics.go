package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the audit pipeline.
type Metrics struct {
	EventsRecorded *prometheus.CounterVec
	AlertsRaised   *prometheus.CounterVec
	AlertsResolved prometheus.Counter
	AccessDenials  prometheus.Counter
	NotifyDropped  prometheus.Counter
	NotifyFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tekra_audit_events_recorded_total",
			Help: "Total number of audit events persisted, by severity",
		}, []string{"severity"}),
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tekra_audit_alerts_raised_total",
			Help: "Total number of security alerts raised, by type",
		}, []string{"type"}),
		AlertsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tekra_audit_alerts_resolved_total",
			Help: "Total number of security alerts resolved or dismissed",
		}),
		AccessDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tekra_audit_access_denials_total",
			Help: "Total number of access decisions that denied an authenticated principal",
		}),
		NotifyDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tekra_audit_notify_dropped_total",
			Help: "Total number of notifications dropped by the bounded buffer",
		}),
		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tekra_audit_notify_failures_total",
			Help: "Total number of notification sink publish failures",
		}),
	}
}

// IncEventsRecorded increments the recorded-events counter for a severity.
func (m *Metrics) IncEventsRecorded(severity string) {
	m.EventsRecorded.WithLabelValues(severity).Inc()
}

// IncAlertsRaised increments the raised-alerts counter for an alert type.
func (m *Metrics) IncAlertsRaised(alertType string) {
	m.AlertsRaised.WithLabelValues(alertType).Inc()
}
