package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"lighthouse.app/cityintel/internal/model"
)

type memoryArchive struct {
	mu      sync.Mutex
	records map[string]model.ArchivedIssue
	now     func() time.Time
}

// NewMemoryArchive keeps archived issues in process memory. Backs ARCHIVE_DRIVER=none.
func NewMemoryArchive() *memoryArchive {
	return &memoryArchive{records: make(map[string]model.ArchivedIssue), now: time.Now}
}

func (a *memoryArchive) SaveAll(_ context.Context, cards []model.IssueCard, agents []model.AgentContext, logs []model.LogEntry) ([]string, error) {
	records := BuildArchivedIssues(cards, agents, logs, a.now())

	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if _, exists := a.records[r.DocID]; exists {
			continue
		}
		a.records[r.DocID] = r
		ids = append(ids, r.DocID)
	}
	return ids, nil
}

func (a *memoryArchive) LoadAll(_ context.Context) ([]model.ArchivedIssue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.ArchivedIssue, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Card.ID < out[j].Card.ID
	})
	return out, nil
}

func (a *memoryArchive) UpdateStatus(_ context.Context, docID string, status model.ArchiveStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.records[docID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = a.now()
	a.records[docID] = r
	return nil
}

func (a *memoryArchive) Delete(_ context.Context, docID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.records[docID]; !ok {
		return ErrNotFound
	}
	delete(a.records, docID)
	return nil
}

func (a *memoryArchive) Clear(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = make(map[string]model.ArchivedIssue)
	return nil
}
