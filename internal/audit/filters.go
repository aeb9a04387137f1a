package audit

import "time"

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// EventFilter narrows event queries. Zero values mean "no constraint".
type EventFilter struct {
	ActorID  string
	Action   Action
	Actions  []Action // match any of these; ignored when Action is set
	Resource Resource
	Severity Severity
	Start    *time.Time
	End      *time.Time
	Page     int
	Limit    int
}

// Normalize applies sane defaults and bounds.
func (f *EventFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > maxPageLimit {
		f.Limit = defaultPageLimit
	}
}

// Offset returns the row offset for the normalized page.
func (f EventFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches reports whether e satisfies every set constraint. Shared by the
// in-memory store and the statistics aggregator.
func (f EventFilter) Matches(e Event) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Action == "" && len(f.Actions) > 0 && !containsAction(f.Actions, e.Action) {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Start != nil && e.CreatedAt.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.CreatedAt.After(*f.End) {
		return false
	}
	return true
}

func containsAction(actions []Action, a Action) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}

// AlertFilter narrows alert queries. Zero values mean "no constraint".
type AlertFilter struct {
	Type     AlertType
	Status   AlertStatus
	Severity Severity
	Start    *time.Time
	End      *time.Time
	Page     int
	Limit    int
}

// Normalize applies sane defaults and bounds.
func (f *AlertFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > maxPageLimit {
		f.Limit = defaultPageLimit
	}
}

// Offset returns the row offset for the normalized page.
func (f AlertFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches reports whether a satisfies every set constraint.
func (f AlertFilter) Matches(a Alert) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Start != nil && a.CreatedAt.Before(*f.Start) {
		return false
	}
	if f.End != nil && a.CreatedAt.After(*f.End) {
		return false
	}
	return true
}

// Page is one page of query results with the total match count.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
