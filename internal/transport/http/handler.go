// Package http is the thin HTTP layer over the audit subsystem. Handlers
// parse and delegate; every piece of business logic lives in the services.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Louguiman/tekra-store-sub002/internal/access"
	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/internal/stats"
	"github.com/Louguiman/tekra-store-sub002/internal/supplier"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
	"github.com/Louguiman/tekra-store-sub002/pkg/platform/httputil"
	pstrings "github.com/Louguiman/tekra-store-sub002/pkg/platform/strings"
	"github.com/Louguiman/tekra-store-sub002/pkg/requestcontext"
)

// RecorderService is the audit recorder surface the handlers delegate to.
type RecorderService interface {
	QueryEvents(ctx context.Context, filter audit.EventFilter) (audit.Page[audit.Event], error)
	QueryAlerts(ctx context.Context, filter audit.AlertFilter) (audit.Page[audit.Alert], error)
	Resolve(ctx context.Context, alertID uuid.UUID, resolvedBy, notes string, status audit.AlertStatus) (audit.Alert, error)
}

// TrailService is the supplier facade surface the handlers delegate to.
type TrailService interface {
	LogSupplierAuthentication(ctx context.Context, e supplier.AuthenticationEvent) (audit.Event, error)
	GetSupplierAuditTrail(ctx context.Context, supplierID string, filter audit.EventFilter) ([]audit.Event, error)
	GetSubmissionAuditTrail(ctx context.Context, submissionID string) ([]audit.Event, error)
	GetProcessingLogs(ctx context.Context, submissionID string) ([]supplier.ProcessingLog, error)
}

// MonitorService runs the security checks after an authentication attempt
// is recorded.
type MonitorService interface {
	CheckFailedLoginAttempts(ctx context.Context, ip string) (*audit.Alert, error)
	CheckUnusualActivity(ctx context.Context, userID, ip, userAgent string) (*audit.Alert, error)
}

// StatsService computes the advisory statistics.
type StatsService interface {
	Statistics(ctx context.Context, start, end *time.Time) (stats.Statistics, error)
}

// Handler serves the audit query and alert-resolution endpoints.
type Handler struct {
	logger   *slog.Logger
	recorder RecorderService
	trail    TrailService
	stats    StatsService
	monitor  MonitorService
}

// New creates the audit HTTP handler.
func New(recorder RecorderService, trail TrailService, statistics StatsService, monitor MonitorService, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		recorder: recorder,
		trail:    trail,
		stats:    statistics,
		monitor:  monitor,
	}
}

// Register mounts the audit routes on r. Access guards are applied by the
// router, not here.
// RoutePolicy is the static operation-to-roles table for the audit API.
// Trail and query endpoints are for humans reviewing the log; the
// authentication report endpoint is called by the platform's own services.
var RoutePolicy = access.Policy{
	"GET /audit/events":                          {"admin", "auditor"},
	"GET /audit/alerts":                          {"admin", "auditor"},
	"POST /audit/alerts/{id}/resolve":            {"admin", "auditor"},
	"GET /audit/statistics":                      {"admin", "auditor"},
	"GET /audit/suppliers/{id}/trail":            {"admin", "auditor"},
	"GET /audit/submissions/{id}/trail":          {"admin", "auditor"},
	"GET /audit/submissions/{id}/processing-log": {"admin", "auditor"},
	"POST /audit/authentication":                 {"admin", "service"},
}

// GuardFunc builds the route guard for a required-role set.
type GuardFunc func(roles ...string) func(http.Handler) http.Handler

// Register mounts the audit API, guarding each route with the roles the
// policy table declares for it.
func (h *Handler) Register(r chi.Router, guard GuardFunc) {
	route := func(method, pattern string, fn http.HandlerFunc) {
		roles := RoutePolicy.Roles(method + " " + pattern)
		r.With(guard(roles...)).Method(method, pattern, fn)
	}

	route(http.MethodGet, "/audit/events", h.handleListEvents)
	route(http.MethodGet, "/audit/alerts", h.handleListAlerts)
	route(http.MethodPost, "/audit/alerts/{id}/resolve", h.handleResolveAlert)
	route(http.MethodGet, "/audit/statistics", h.handleStatistics)
	route(http.MethodGet, "/audit/suppliers/{id}/trail", h.handleSupplierTrail)
	route(http.MethodGet, "/audit/submissions/{id}/trail", h.handleSubmissionTrail)
	route(http.MethodGet, "/audit/submissions/{id}/processing-log", h.handleProcessingLog)
	route(http.MethodPost, "/audit/authentication", h.handleRecordAuthentication)
}

type authAttemptRequest struct {
	SupplierID   string `json:"supplierId"`
	IPAddress    string `json:"ipAddress"`
	UserAgent    string `json:"userAgent"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

type authAttemptResponse struct {
	Event audit.Event  `json:"event"`
	Alert *audit.Alert `json:"alert,omitempty"`
}

// handleRecordAuthentication records an authentication attempt reported by
// the business layer and runs the matching security check: failed attempts
// feed the brute-force counter, successful ones are compared against the
// supplier's known login sources.
func (h *Handler) handleRecordAuthentication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[authAttemptRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.SupplierID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "supplierId is required"))
		return
	}

	event, err := h.trail.LogSupplierAuthentication(ctx, supplier.AuthenticationEvent{
		SupplierID:   req.SupplierID,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		Success:      req.Success,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Without a source IP there is no pattern to check against.
	var alert *audit.Alert
	if req.IPAddress != "" {
		if req.Success {
			alert, err = h.monitor.CheckUnusualActivity(ctx, req.SupplierID, req.IPAddress, req.UserAgent)
		} else {
			alert, err = h.monitor.CheckFailedLoginAttempts(ctx, req.IPAddress)
		}
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "security check failed",
			"request_id", requestcontext.RequestID(ctx),
			"supplier_id", req.SupplierID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, authAttemptResponse{Event: event, Alert: alert})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseEventFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.recorder.QueryEvents(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "query events failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseAlertFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.recorder.QueryAlerts(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "query alerts failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

type resolveRequest struct {
	Status audit.AlertStatus `json:"status"`
	Notes  string            `json:"notes"`
}

func (h *Handler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid alert id"))
		return
	}

	req, ok := httputil.Decode[resolveRequest](w, r, h.logger)
	if !ok {
		return
	}

	resolvedBy := requestcontext.ActorID(ctx)
	alert, err := h.recorder.Resolve(ctx, alertID, resolvedBy, req.Notes, req.Status)
	if err != nil {
		if !dErrors.IsCode(err, dErrors.CodeNotFound) && !dErrors.IsCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "resolve alert failed",
				"request_id", requestcontext.RequestID(ctx),
				"alert_id", alertID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "alert resolved",
		"alert_id", alertID,
		"status", alert.Status,
		"resolved_by", resolvedBy,
	)
	httputil.WriteJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, err := parseTime(r.URL.Query().Get("start"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	end, err := parseTime(r.URL.Query().Get("end"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.stats.Statistics(ctx, start, end)
	if err != nil {
		h.logger.ErrorContext(ctx, "statistics query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSupplierTrail(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.trail.GetSupplierAuditTrail(r.Context(), chi.URLParam(r, "id"), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleSubmissionTrail(w http.ResponseWriter, r *http.Request) {
	events, err := h.trail.GetSubmissionAuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleProcessingLog(w http.ResponseWriter, r *http.Request) {
	logs, err := h.trail.GetProcessingLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func parseEventFilter(r *http.Request) (audit.EventFilter, error) {
	q := r.URL.Query()

	filter := audit.EventFilter{
		ActorID:  q.Get("actorId"),
		Action:   audit.Action(q.Get("action")),
		Resource: audit.Resource(q.Get("resource")),
		Severity: audit.Severity(q.Get("severity")),
	}
	if filter.Action != "" && !filter.Action.Valid() {
		return filter, dErrors.Newf(dErrors.CodeValidation, "unknown action %q", filter.Action)
	}
	// `actions` takes a comma-separated list and matches any of them;
	// it is ignored when the singular `action` is present.
	for _, raw := range pstrings.DedupeAndTrimLower(strings.Split(q.Get("actions"), ",")) {
		a := audit.Action(raw)
		if !a.Valid() {
			return filter, dErrors.Newf(dErrors.CodeValidation, "unknown action %q", a)
		}
		filter.Actions = append(filter.Actions, a)
	}
	if filter.Resource != "" && !filter.Resource.Valid() {
		return filter, dErrors.Newf(dErrors.CodeValidation, "unknown resource %q", filter.Resource)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return filter, dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", filter.Severity)
	}

	var err error
	if filter.Start, err = parseTime(q.Get("start")); err != nil {
		return filter, err
	}
	if filter.End, err = parseTime(q.Get("end")); err != nil {
		return filter, err
	}
	filter.Page = parseIntDefault(q.Get("page"), 0)
	filter.Limit = parseIntDefault(q.Get("limit"), 0)
	return filter, nil
}

func parseAlertFilter(r *http.Request) (audit.AlertFilter, error) {
	q := r.URL.Query()

	filter := audit.AlertFilter{
		Type:     audit.AlertType(q.Get("type")),
		Status:   audit.AlertStatus(q.Get("status")),
		Severity: audit.Severity(q.Get("severity")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return filter, dErrors.Newf(dErrors.CodeValidation, "unknown alert type %q", filter.Type)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return filter, dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", filter.Severity)
	}

	var err error
	if filter.Start, err = parseTime(q.Get("start")); err != nil {
		return filter, err
	}
	if filter.End, err = parseTime(q.Get("end")); err != nil {
		return filter, err
	}
	filter.Page = parseIntDefault(q.Get("page"), 0)
	filter.Limit = parseIntDefault(q.Get("limit"), 0)
	return filter, nil
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid timestamp %q, want RFC3339", raw)
	}
	return &ts, nil
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
