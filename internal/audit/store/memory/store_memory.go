// Package memory provides an in-memory audit store for tests and local
// development. It mirrors the postgres store's semantics: append-only
// events, insert-once alerts with a resolution overwrite.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	alerts map[uuid.UUID]audit.Alert
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{alerts: make(map[uuid.UUID]audit.Alert)}
}

// Clear empties the store. Use between tests to ensure isolation.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.alerts = make(map[uuid.UUID]audit.Alert)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) QueryEvents(_ context.Context, filter audit.EventFilter) (audit.Page[audit.Event], error) {
	filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, e := range s.events {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := audit.Page[audit.Event]{
		Total: len(matched),
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	start := filter.Offset()
	if start < len(matched) {
		end := min(start+filter.Limit, len(matched))
		page.Items = append([]audit.Event{}, matched[start:end]...)
	}
	return page, nil
}

func (s *InMemoryStore) ListRange(_ context.Context, start, end *time.Time) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if start != nil && e.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && e.CreatedAt.After(*end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemoryStore) CountFailedLogins(_ context.Context, ipAddress string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.events {
		if e.Action == audit.ActionLogin && !e.Success &&
			e.IPAddress == ipAddress && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListLoginSources(_ context.Context, actorID string, since time.Time) ([]audit.LoginSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[audit.LoginSource]struct{})
	var out []audit.LoginSource
	for _, e := range s.events {
		if e.Action != audit.ActionLogin || !e.Success || e.ActorID != actorID {
			continue
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		src := audit.LoginSource{IPAddress: e.IPAddress, UserAgent: e.UserAgent}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out, nil
}

func (s *InMemoryStore) ListTrail(_ context.Context, resource audit.Resource, metadataKey, id string, filter audit.EventFilter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if e.Resource != resource {
			continue
		}
		if !matchesTrailKey(e, metadataKey, id) {
			continue
		}
		if !filter.Matches(e) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// matchesTrailKey implements the dual-key attribution: the canonical
// ResourceID column, or the same id carried in metadata.
func matchesTrailKey(e audit.Event, metadataKey, id string) bool {
	if e.ResourceID == id {
		return true
	}
	if v, ok := e.Metadata[metadataKey]; ok {
		if sv, ok := v.(string); ok && sv == id {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) Insert(_ context.Context, alert audit.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (audit.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return audit.Alert{}, dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	return alert, nil
}

func (s *InMemoryStore) UpdateResolution(_ context.Context, alert audit.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[alert.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	s.alerts[alert.ID] = alert
	return nil
}

func (s *InMemoryStore) QueryAlerts(_ context.Context, filter audit.AlertFilter) (audit.Page[audit.Alert], error) {
	filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Alert
	for _, a := range s.alerts {
		if filter.Matches(a) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := audit.Page[audit.Alert]{
		Total: len(matched),
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	start := filter.Offset()
	if start < len(matched) {
		end := min(start+filter.Limit, len(matched))
		page.Items = append([]audit.Alert{}, matched[start:end]...)
	}
	return page, nil
}

var _ audit.Store = (*InMemoryStore)(nil)
