package store

import (
	"context"
	"sync"

	"lighthouse.app/cityintel/internal/model"
)

// DefaultPastIssueLimit is the number of past issues retained on every save.
const DefaultPastIssueLimit = 50

func trimPastIssues(issues []model.PastIssue, limit int) []model.PastIssue {
	if limit <= 0 {
		limit = DefaultPastIssueLimit
	}
	if len(issues) > limit {
		issues = issues[len(issues)-limit:]
	}
	out := make([]model.PastIssue, len(issues))
	copy(out, issues)
	return out
}

type memoryPastIssueStore struct {
	mu     sync.Mutex
	issues []model.PastIssue
	limit  int
}

// NewMemoryPastIssueStore keeps the log in process memory. Used when redis is not configured.
func NewMemoryPastIssueStore(limit int) PastIssueStore {
	return &memoryPastIssueStore{limit: limit}
}

func (s *memoryPastIssueStore) Load(_ context.Context) ([]model.PastIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PastIssue, len(s.issues))
	copy(out, s.issues)
	return out, nil
}

func (s *memoryPastIssueStore) Save(_ context.Context, issues []model.PastIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issues = trimPastIssues(issues, s.limit)
	return nil
}
