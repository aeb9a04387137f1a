// Package audit defines the event and alert model for the platform's
// audit trail. Events are immutable history: once persisted they are never
// updated or deleted. Alerts are derived signals that permit exactly one
// kind of mutation, the resolution.
package audit

import (
	"time"

	"github.com/google/uuid"

	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

// Action is the closed set of auditable actions.
type Action string

const (
	ActionCreate            Action = "create"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionLogin             Action = "login"
	ActionLogout            Action = "logout"
	ActionAccessDenied      Action = "access_denied"
	ActionRoleChange        Action = "role_change"
	ActionStockAdjustment   Action = "stock_adjustment"
	ActionOrderStatusChange Action = "order_status_change"
	ActionProductManagement Action = "product_management"
	ActionUserManagement    Action = "user_management"
	ActionSystemConfig      Action = "system_config"
	ActionSupplierRegistration Action = "supplier_registration"
	ActionSupplierSubmission   Action = "supplier_submission"
	ActionAIProcessing         Action = "ai_processing"
	ActionHumanValidation      Action = "human_validation"
	ActionInventoryIntegration Action = "inventory_integration"
	ActionApprove              Action = "approve"
	ActionReject               Action = "reject"
	ActionBulkApprove          Action = "bulk_approve"
	ActionBulkReject           Action = "bulk_reject"
)

var validActions = map[Action]struct{}{
	ActionCreate: {}, ActionUpdate: {}, ActionDelete: {},
	ActionLogin: {}, ActionLogout: {}, ActionAccessDenied: {},
	ActionRoleChange: {}, ActionStockAdjustment: {}, ActionOrderStatusChange: {},
	ActionProductManagement: {}, ActionUserManagement: {}, ActionSystemConfig: {},
	ActionSupplierRegistration: {}, ActionSupplierSubmission: {},
	ActionAIProcessing: {}, ActionHumanValidation: {}, ActionInventoryIntegration: {},
	ActionApprove: {}, ActionReject: {}, ActionBulkApprove: {}, ActionBulkReject: {},
}

// Valid reports whether a is a member of the closed action enum.
func (a Action) Valid() bool {
	_, ok := validActions[a]
	return ok
}

// Resource is the closed set of resource kinds an action can touch.
type Resource string

const (
	ResourceUser               Resource = "user"
	ResourceProduct            Resource = "product"
	ResourceOrder              Resource = "order"
	ResourceInventory          Resource = "inventory"
	ResourcePayment            Resource = "payment"
	ResourceCategory           Resource = "category"
	ResourceCountry            Resource = "country"
	ResourceDelivery           Resource = "delivery"
	ResourceSystem             Resource = "system"
	ResourceAuth               Resource = "auth"
	ResourceSupplier           Resource = "supplier"
	ResourceSupplierSubmission Resource = "supplier_submission"
)

var validResources = map[Resource]struct{}{
	ResourceUser: {}, ResourceProduct: {}, ResourceOrder: {},
	ResourceInventory: {}, ResourcePayment: {}, ResourceCategory: {},
	ResourceCountry: {}, ResourceDelivery: {}, ResourceSystem: {},
	ResourceAuth: {}, ResourceSupplier: {}, ResourceSupplierSubmission: {},
}

// Valid reports whether r is a member of the closed resource enum.
func (r Resource) Valid() bool {
	_, ok := validResources[r]
	return ok
}

// Severity grades events and alerts for routing and notification.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Event is one immutable row of audit history.
type Event struct {
	ID           uuid.UUID      `json:"id"`
	ActorID      string         `json:"actorId,omitempty"` // empty for anonymous actions
	Action       Action         `json:"action"`
	Resource     Resource       `json:"resource"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Severity     Severity       `json:"severity"`
	Description  string         `json:"description,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	SessionID    string         `json:"sessionId,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"` // present iff Success is false
	CreatedAt    time.Time      `json:"createdAt"`
}

// EventInput is what callers hand to the recorder. Success is a pointer so
// "unset" defaults to true; only an explicit false marks a failure.
type EventInput struct {
	ActorID      string
	Action       Action
	Resource     Resource
	ResourceID   string
	Severity     Severity
	Description  string
	Metadata     map[string]any
	IPAddress    string
	UserAgent    string
	SessionID    string
	Success      *bool
	ErrorMessage string
}

// Validate rejects inputs outside the closed enums before any write.
func (in EventInput) Validate() error {
	if !in.Action.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown action %q", in.Action)
	}
	if !in.Resource.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown resource %q", in.Resource)
	}
	if in.Severity != "" && !in.Severity.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", in.Severity)
	}
	return nil
}

// AlertType is the closed set of derived security signals.
type AlertType string

const (
	AlertUnauthorizedAccess AlertType = "unauthorized_access"
	AlertBruteForce         AlertType = "brute_force"
	AlertUnusualActivity    AlertType = "unusual_activity"
)

var validAlertTypes = map[AlertType]struct{}{
	AlertUnauthorizedAccess: {},
	AlertBruteForce:         {},
	AlertUnusualActivity:    {},
}

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	_, ok := validAlertTypes[t]
	return ok
}

// AlertStatus tracks the single open -> resolved|dismissed transition.
type AlertStatus string

const (
	AlertStatusOpen      AlertStatus = "open"
	AlertStatusResolved  AlertStatus = "resolved"
	AlertStatusDismissed AlertStatus = "dismissed"
)

// Alert flags a pattern in the event stream that needs human review.
type Alert struct {
	ID              uuid.UUID      `json:"id"`
	Type            AlertType      `json:"type"`
	Severity        Severity       `json:"severity"`
	Description     string         `json:"description,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	AffectedUserID  string         `json:"affectedUserId,omitempty"`
	IPAddress       string         `json:"ipAddress,omitempty"`
	UserAgent       string         `json:"userAgent,omitempty"`
	Status          AlertStatus    `json:"status"`
	ResolvedBy      string         `json:"resolvedBy,omitempty"`
	ResolutionNotes string         `json:"resolutionNotes,omitempty"`
	ResolvedAt      *time.Time     `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// AlertInput is what callers hand to the recorder. Status is not part of
// the input: new alerts always start open.
type AlertInput struct {
	Type           AlertType
	Severity       Severity
	Description    string
	Details        map[string]any
	AffectedUserID string
	IPAddress      string
	UserAgent      string
}

// Validate rejects alert inputs outside the closed enums.
func (in AlertInput) Validate() error {
	if !in.Type.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown alert type %q", in.Type)
	}
	if in.Severity != "" && !in.Severity.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", in.Severity)
	}
	return nil
}

// LoginSource is one (ip, user-agent) pair seen on a successful login.
// The security monitor compares current requests against these.
type LoginSource struct {
	IPAddress string
	UserAgent string
}
