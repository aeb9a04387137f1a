// Package memory provides the in-memory supplier pipeline store used in
// tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Louguiman/tekra-store-sub002/internal/supplier"
)

// InMemoryStore keeps processing logs and scored submissions in process
// memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	logs        []supplier.ProcessingLog
	submissions []supplier.TemplateSubmission
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) InsertLog(_ context.Context, log supplier.ProcessingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append(s.logs, log)
	return nil
}

func (s *InMemoryStore) ListBySubmission(_ context.Context, submissionID string) ([]supplier.ProcessingLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []supplier.ProcessingLog
	for _, l := range s.logs {
		if l.SubmissionID == submissionID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) InsertSubmission(_ context.Context, sub supplier.TemplateSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions = append(s.submissions, sub)
	return nil
}

func (s *InMemoryStore) ListSubmissions(_ context.Context, start, end *time.Time) ([]supplier.TemplateSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []supplier.TemplateSubmission
	for _, sub := range s.submissions {
		if start != nil && sub.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && sub.CreatedAt.After(*end) {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

// Clear resets the store between tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = nil
	s.submissions = nil
}

var _ supplier.Store = (*InMemoryStore)(nil)
