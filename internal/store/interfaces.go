package store

import (
	"context"
	"errors"

	"lighthouse.app/cityintel/internal/model"
)

var ErrNotFound = errors.New("not found")

// PastIssueStore is the durable past-issue log: one bounded list under a fixed key.
// Save keeps only the most recent entries up to the store's limit.
type PastIssueStore interface {
	Load(ctx context.Context) ([]model.PastIssue, error)
	Save(ctx context.Context, issues []model.PastIssue) error
}

// IssueArchive persists cycle output with the agent context that produced it.
type IssueArchive interface {
	// SaveAll writes one archived record per card and returns the document ids.
	SaveAll(ctx context.Context, cards []model.IssueCard, agents []model.AgentContext, logs []model.LogEntry) ([]string, error)
	// LoadAll returns every archived record, newest first.
	LoadAll(ctx context.Context) ([]model.ArchivedIssue, error)
	UpdateStatus(ctx context.Context, docID string, status model.ArchiveStatus) error
	Delete(ctx context.Context, docID string) error
	Clear(ctx context.Context) error
}
