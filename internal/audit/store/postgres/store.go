// Package postgres implements the audit store over PostgreSQL. The store is
// pure I/O: enum validation, defaulting, and resolution policy belong to the
// recorder. Metadata and alert details travel as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit tables if they do not exist. Events and
// alerts are separate tables; event rows carry no updated_at because they
// are never updated.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			actor_id TEXT,
			action TEXT NOT NULL,
			resource TEXT NOT NULL,
			resource_id TEXT,
			severity TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			ip_address TEXT,
			user_agent TEXT,
			session_id TEXT,
			success BOOLEAN NOT NULL DEFAULT TRUE,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events (actor_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events (resource, resource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_login ON audit_events (ip_address, created_at DESC) WHERE action = 'login'`,
		`CREATE TABLE IF NOT EXISTS security_alerts (
			id UUID PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			details JSONB,
			affected_user_id TEXT,
			ip_address TEXT,
			user_agent TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			resolved_by TEXT,
			resolution_notes TEXT,
			resolved_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_alerts_status ON security_alerts (status, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
	}
	return nil
}

// Append inserts one immutable event row. Duplicate IDs are rejected by the
// primary key; there is no upsert because history is never rewritten.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	metadata, err := marshalJSON(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, actor_id, action, resource, resource_id, severity,
			description, metadata, ip_address, user_agent, session_id,
			success, error_message, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		nullable(event.ActorID),
		string(event.Action),
		string(event.Resource),
		nullable(event.ResourceID),
		string(event.Severity),
		event.Description,
		metadata,
		nullable(event.IPAddress),
		nullable(event.UserAgent),
		nullable(event.SessionID),
		event.Success,
		nullable(event.ErrorMessage),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const eventColumns = `id, actor_id, action, resource, resource_id, severity,
	description, metadata, ip_address, user_agent, session_id,
	success, error_message, created_at`

func (s *Store) QueryEvents(ctx context.Context, filter audit.EventFilter) (audit.Page[audit.Event], error) {
	filter.Normalize()

	where, args := eventWhere(filter)
	page := audit.Page[audit.Event]{Page: filter.Page, Limit: filter.Limit}

	countQuery := `SELECT COUNT(*) FROM audit_events` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count audit events: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_events%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		eventColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	page.Items, err = scanEvents(rows)
	return page, err
}

func (s *Store) ListRange(ctx context.Context, start, end *time.Time) ([]audit.Event, error) {
	where, args := eventWhere(audit.EventFilter{Start: start, End: end})
	query := fmt.Sprintf(`SELECT %s FROM audit_events%s ORDER BY created_at`, eventColumns, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) CountFailedLogins(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM audit_events
		WHERE action = 'login' AND success = FALSE
		  AND ip_address = $1 AND created_at >= $2
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, ipAddress, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed logins: %w", err)
	}
	return count, nil
}

func (s *Store) ListLoginSources(ctx context.Context, actorID string, since time.Time) ([]audit.LoginSource, error) {
	query := `
		SELECT DISTINCT COALESCE(ip_address, ''), COALESCE(user_agent, '')
		FROM audit_events
		WHERE action = 'login' AND success = TRUE
		  AND actor_id = $1 AND created_at >= $2
	`
	rows, err := s.db.QueryContext(ctx, query, actorID, since)
	if err != nil {
		return nil, fmt.Errorf("list login sources: %w", err)
	}
	defer rows.Close()

	var sources []audit.LoginSource
	for rows.Next() {
		var src audit.LoginSource
		if err := rows.Scan(&src.IPAddress, &src.UserAgent); err != nil {
			return nil, fmt.Errorf("scan login source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// ListTrail implements the dual-key attribution: the canonical resource_id
// column, or the same id carried under a metadata key. The metadata branch
// is a read shim for rows written before resource_id became canonical.
func (s *Store) ListTrail(ctx context.Context, resource audit.Resource, metadataKey, id string, filter audit.EventFilter) ([]audit.Event, error) {
	filter.Normalize()

	args := []any{string(resource), id, metadataKey}
	query := fmt.Sprintf(`SELECT %s FROM audit_events
		WHERE resource = $1 AND (resource_id = $2 OR metadata->>$3 = $2)`, eventColumns)

	if len(filter.Actions) > 0 {
		args = append(args, pq.Array(actionStrings(filter.Actions)))
		query += fmt.Sprintf(` AND action = ANY($%d::text[])`, len(args))
	}
	if filter.Start != nil {
		args = append(args, *filter.Start)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		query += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) Insert(ctx context.Context, alert audit.Alert) error {
	details, err := marshalJSON(alert.Details)
	if err != nil {
		return fmt.Errorf("marshal alert details: %w", err)
	}

	query := `
		INSERT INTO security_alerts (
			id, type, severity, description, details, affected_user_id,
			ip_address, user_agent, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		alert.ID,
		string(alert.Type),
		string(alert.Severity),
		alert.Description,
		details,
		nullable(alert.AffectedUserID),
		nullable(alert.IPAddress),
		nullable(alert.UserAgent),
		string(alert.Status),
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security alert: %w", err)
	}
	return nil
}

const alertColumns = `id, type, severity, description, details, affected_user_id,
	ip_address, user_agent, status, resolved_by, resolution_notes, resolved_at, created_at`

func (s *Store) Get(ctx context.Context, id uuid.UUID) (audit.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM security_alerts WHERE id = $1`, alertColumns)
	alert, err := scanAlertRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return audit.Alert{}, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}
		return audit.Alert{}, fmt.Errorf("get security alert: %w", err)
	}
	return alert, nil
}

// UpdateResolution overwrites the resolution fields only. Concurrent
// resolutions are last-writer-wins; there is no compare-and-swap guard.
func (s *Store) UpdateResolution(ctx context.Context, alert audit.Alert) error {
	query := `
		UPDATE security_alerts
		SET status = $2, resolved_by = $3, resolution_notes = $4, resolved_at = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		alert.ID,
		string(alert.Status),
		nullable(alert.ResolvedBy),
		nullable(alert.ResolutionNotes),
		alert.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update alert resolution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert resolution: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	return nil
}

func (s *Store) QueryAlerts(ctx context.Context, filter audit.AlertFilter) (audit.Page[audit.Alert], error) {
	filter.Normalize()

	where, args := alertWhere(filter)
	page := audit.Page[audit.Alert]{Page: filter.Page, Limit: filter.Limit}

	countQuery := `SELECT COUNT(*) FROM security_alerts` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count security alerts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM security_alerts%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		alertColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("query security alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, alert)
	}
	return page, rows.Err()
}

// --- helpers ---

func eventWhere(filter audit.EventFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	} else if len(filter.Actions) > 0 {
		add("action = ANY($%d::text[])", pq.Array(actionStrings(filter.Actions)))
	}
	if filter.Resource != "" {
		add("resource = $%d", string(filter.Resource))
	}
	if filter.Severity != "" {
		add("severity = $%d", string(filter.Severity))
	}
	if filter.Start != nil {
		add("created_at >= $%d", *filter.Start)
	}
	if filter.End != nil {
		add("created_at <= $%d", *filter.End)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func alertWhere(filter audit.AlertFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Severity != "" {
		add("severity = $%d", string(filter.Severity))
	}
	if filter.Start != nil {
		add("created_at >= $%d", *filter.Start)
	}
	if filter.End != nil {
		add("created_at <= $%d", *filter.End)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			e                                          audit.Event
			actorID, resourceID, ip, ua, sid, errorMsg sql.NullString
			action, resource, severity                 string
			metadata                                   []byte
		)
		err := rows.Scan(
			&e.ID, &actorID, &action, &resource, &resourceID, &severity,
			&e.Description, &metadata, &ip, &ua, &sid,
			&e.Success, &errorMsg, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		e.ActorID = actorID.String
		e.Action = audit.Action(action)
		e.Resource = audit.Resource(resource)
		e.ResourceID = resourceID.String
		e.Severity = audit.Severity(severity)
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		e.SessionID = sid.String
		e.ErrorMessage = errorMsg.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlertRow(row rowScanner) (audit.Alert, error) {
	var (
		a                                   audit.Alert
		alertType, severity, status         string
		affected, ip, ua, resolvedBy, notes sql.NullString
		resolvedAt                          sql.NullTime
		details                             []byte
	)
	err := row.Scan(
		&a.ID, &alertType, &severity, &a.Description, &details, &affected,
		&ip, &ua, &status, &resolvedBy, &notes, &resolvedAt, &a.CreatedAt,
	)
	if err != nil {
		return audit.Alert{}, err
	}

	a.Type = audit.AlertType(alertType)
	a.Severity = audit.Severity(severity)
	a.Status = audit.AlertStatus(status)
	a.AffectedUserID = affected.String
	a.IPAddress = ip.String
	a.UserAgent = ua.String
	a.ResolvedBy = resolvedBy.String
	a.ResolutionNotes = notes.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return audit.Alert{}, fmt.Errorf("unmarshal alert details: %w", err)
		}
	}
	return a, nil
}

func actionStrings(actions []audit.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ audit.Store = (*Store)(nil)
