// Package history tracks issues across cycles: fuzzy identity, severity trend series and
// follow-up status.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/store"
)

// TrendWindow is the number of trailing severity points kept per past issue.
const TrendWindow = 7

type Tracker struct {
	store   store.PastIssueStore
	matcher Matcher
	now     func() time.Time

	// Serializes load-modify-save sequences against the store.
	mu sync.Mutex
}

type Option func(*Tracker)

func WithMatcher(m Matcher) Option {
	return func(t *Tracker) { t.matcher = m }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(s store.PastIssueStore, opts ...Option) *Tracker {
	t := &Tracker{store: s, matcher: NewPrefixMatcher(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Load(ctx context.Context) ([]model.PastIssue, error) {
	return t.store.Load(ctx)
}

// MatchPastIssue returns the id of the logged issue the title refers to.
func (t *Tracker) MatchPastIssue(ctx context.Context, title string) (int, bool, error) {
	issues, err := t.store.Load(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok := t.matcher.Match(title, issues)
	return id, ok, nil
}

func (t *Tracker) AddPastIssue(ctx context.Context, card model.IssueCard) error {
	return t.AddPastIssues(ctx, []model.IssueCard{card})
}

// AddPastIssues merges every card into the log in order and saves once.
func (t *Tracker) AddPastIssues(ctx context.Context, cards []model.IssueCard) error {
	if len(cards) == 0 {
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.history.tracker"})

	t.mu.Lock()
	defer t.mu.Unlock()

	issues, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading past issues: %w", err)
	}

	now := t.now()
	for _, card := range cards {
		var merged bool
		issues, merged = Merge(issues, card, t.matcher, now)
		slog.DebugContext(ctx, "past issue recorded",
			"title", logger.Truncate(card.Title, 80),
			"merged", merged)
	}

	if err := t.store.Save(ctx, issues); err != nil {
		return fmt.Errorf("saving past issues: %w", err)
	}
	return nil
}

// UpdateStatus sets a past issue's status and refreshes lastChecked.
func (t *Tracker) UpdateStatus(ctx context.Context, id int, status model.PastIssueStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid past issue status %q", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	issues, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading past issues: %w", err)
	}

	idx := indexOf(issues, id)
	if idx < 0 {
		return store.ErrNotFound
	}
	issues[idx].Status = status
	issues[idx].LastChecked = t.now()

	if err := t.store.Save(ctx, issues); err != nil {
		return fmt.Errorf("saving past issues: %w", err)
	}
	return nil
}

// ApplyFollowUp moves every matched past issue to the status implied by its follow-up result.
// Results for unknown ids are ignored.
func (t *Tracker) ApplyFollowUp(ctx context.Context, results []model.FollowUpResult) error {
	if len(results) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	issues, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading past issues: %w", err)
	}

	now := t.now()
	for _, r := range results {
		idx := indexOf(issues, r.IssueID)
		if idx < 0 {
			continue
		}
		issues[idx].Status = StatusForResult(r)
		issues[idx].LastChecked = now
	}

	if err := t.store.Save(ctx, issues); err != nil {
		return fmt.Errorf("saving past issues: %w", err)
	}
	return nil
}

// StatusForResult maps a follow-up judgement onto the past issue lifecycle.
func StatusForResult(r model.FollowUpResult) model.PastIssueStatus {
	switch {
	case r.Escalated():
		return model.PastIssueEscalated
	case r.Status == model.TrendStagnant:
		return model.PastIssueStagnant
	default:
		return model.PastIssueMonitoring
	}
}

// Merge folds one card into the log. A matched entry is updated in place with one new trend
// point; otherwise a new monitoring entry is appended. It reports whether a match was found.
func Merge(issues []model.PastIssue, card model.IssueCard, m Matcher, now time.Time) ([]model.PastIssue, bool) {
	value := card.Severity.Value()

	if id, ok := m.Match(card.Title, issues); ok {
		if idx := indexOf(issues, id); idx >= 0 {
			p := &issues[idx]
			p.Severity = card.Severity
			p.Areas = append([]model.Area(nil), card.Areas...)
			p.DataRefs = append([]string(nil), card.DataRefs...)
			p.LastChecked = now
			p.TrendData = appendTrend(p.TrendData, value)
			return issues, true
		}
	}

	issues = append(issues, model.PastIssue{
		ID:          nextID(issues),
		Title:       card.Title,
		Areas:       append([]model.Area(nil), card.Areas...),
		Severity:    card.Severity,
		DataRefs:    append([]string(nil), card.DataRefs...),
		CreatedAt:   now,
		Status:      model.PastIssueMonitoring,
		LastChecked: now,
		TrendData:   []int{value},
	})
	return issues, false
}

func appendTrend(series []int, value int) []int {
	if len(series) >= TrendWindow {
		series = series[len(series)-(TrendWindow-1):]
	}
	out := make([]int, 0, len(series)+1)
	out = append(out, series...)
	return append(out, value)
}

func nextID(issues []model.PastIssue) int {
	highest := 0
	for _, p := range issues {
		if p.ID > highest {
			highest = p.ID
		}
	}
	return highest + 1
}

func indexOf(issues []model.PastIssue, id int) int {
	for i, p := range issues {
		if p.ID == id {
			return i
		}
	}
	return -1
}
