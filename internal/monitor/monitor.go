// Package monitor detects security patterns in the recorded audit trail.
// It is stateless between calls: every check derives its answer from the
// event store, so horizontally scaled instances agree without coordination.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/config"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
	"github.com/Louguiman/tekra-store-sub002/pkg/requestcontext"
)

// AlertRecorder persists the alerts the monitor raises.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, in audit.AlertInput) (audit.Alert, error)
}

// SourceStore is the slice of the event store the monitor reads.
type SourceStore interface {
	CountFailedLogins(ctx context.Context, ip string, since time.Time) (int, error)
	ListLoginSources(ctx context.Context, actorID string, since time.Time) ([]audit.LoginSource, error)
}

// Monitor runs on-demand security checks over the audit trail.
type Monitor struct {
	store    SourceStore
	recorder AlertRecorder
	cfg      config.MonitorConfig
	logger   *slog.Logger
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithConfig overrides the default thresholds.
func WithConfig(cfg config.MonitorConfig) Option {
	return func(m *Monitor) { m.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// New constructs a Monitor over the given store and alert recorder.
func New(store SourceStore, recorder AlertRecorder, opts ...Option) (*Monitor, error) {
	if store == nil {
		return nil, errors.New("source store is required")
	}
	if recorder == nil {
		return nil, errors.New("alert recorder is required")
	}

	m := &Monitor{
		store:    store,
		recorder: recorder,
		cfg:      config.DefaultMonitorConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CheckFailedLoginAttempts counts failed logins from ip inside the
// configured window and raises a brute_force alert once the threshold is
// reached. Severity escalates with the failure count: the threshold gets
// medium, twice the threshold high, four times critical (multipliers are
// configuration).
func (m *Monitor) CheckFailedLoginAttempts(ctx context.Context, ip string) (*audit.Alert, error) {
	if ip == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "ip address is required")
	}

	since := requestcontext.Now(ctx).Add(-m.cfg.FailedLoginWindow)
	count, err := m.store.CountFailedLogins(ctx, ip, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count failed logins")
	}
	if count < m.cfg.FailedLoginThreshold {
		return nil, nil
	}

	alert, err := m.recorder.RecordAlert(ctx, audit.AlertInput{
		Type:     audit.AlertBruteForce,
		Severity: m.bruteForceSeverity(count),
		Description: fmt.Sprintf("%d failed login attempts from %s within %s",
			count, ip, m.cfg.FailedLoginWindow),
		Details: map[string]any{
			"ip":             ip,
			"failedAttempts": count,
			"windowMinutes":  int(m.cfg.FailedLoginWindow.Minutes()),
		},
		IPAddress: ip,
	})
	if err != nil {
		return nil, err
	}

	if m.logger != nil {
		m.logger.WarnContext(ctx, "brute force pattern detected",
			"ip", ip,
			"failed_attempts", count,
			"severity", alert.Severity,
		)
	}
	return &alert, nil
}

// CheckUnusualActivity compares the current login against the user's
// recent successful login sources. When neither the IP nor the browser
// family has been seen inside the lookback period, it raises an
// unusual_activity alert. A user with no history raises nothing: there is
// no baseline to deviate from.
func (m *Monitor) CheckUnusualActivity(ctx context.Context, userID, ip, userAgent string) (*audit.Alert, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}

	since := requestcontext.Now(ctx).Add(-m.cfg.ActivityLookback)
	sources, err := m.store.ListLoginSources(ctx, userID, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list login sources")
	}
	if len(sources) == 0 {
		return nil, nil
	}

	family := browserFamily(userAgent)
	knownIP, knownBrowser := false, false
	for _, src := range sources {
		if src.IPAddress == ip {
			knownIP = true
		}
		if browserFamily(src.UserAgent) == family {
			knownBrowser = true
		}
	}
	if knownIP || knownBrowser {
		return nil, nil
	}

	alert, err := m.recorder.RecordAlert(ctx, audit.AlertInput{
		Type:        audit.AlertUnusualActivity,
		Severity:    audit.SeverityMedium,
		Description: fmt.Sprintf("login for user %s from unrecognized location and device", userID),
		Details: map[string]any{
			"ip":           ip,
			"browser":      family,
			"knownSources": len(sources),
		},
		AffectedUserID: userID,
		IPAddress:      ip,
		UserAgent:      userAgent,
	})
	if err != nil {
		return nil, err
	}

	if m.logger != nil {
		m.logger.WarnContext(ctx, "unusual login activity detected",
			"user_id", userID,
			"ip", ip,
			"browser", family,
		)
	}
	return &alert, nil
}

// browserFamily reduces a raw user-agent string to its browser name so
// that version bumps of the same browser do not read as a new device.
func browserFamily(raw string) string {
	if raw == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	if name == "" {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return "unknown"
		}
		return strings.ToLower(fields[0])
	}
	return strings.ToLower(name)
}

func (m *Monitor) bruteForceSeverity(count int) audit.Severity {
	threshold := m.cfg.FailedLoginThreshold
	switch {
	case m.cfg.CriticalMultiplier > 0 && count >= threshold*m.cfg.CriticalMultiplier:
		return audit.SeverityCritical
	case m.cfg.HighMultiplier > 0 && count >= threshold*m.cfg.HighMultiplier:
		return audit.SeverityHigh
	default:
		return audit.SeverityMedium
	}
}
