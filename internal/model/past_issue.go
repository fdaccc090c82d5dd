package model

import "time"

type PastIssueStatus string

const (
	PastIssueMonitoring PastIssueStatus = "monitoring"
	PastIssueEscalated  PastIssueStatus = "escalated"
	PastIssueResolved   PastIssueStatus = "resolved"
	PastIssueStagnant   PastIssueStatus = "stagnant"
)

func (s PastIssueStatus) IsValid() bool {
	switch s {
	case PastIssueMonitoring, PastIssueEscalated, PastIssueResolved, PastIssueStagnant:
		return true
	}
	return false
}

// PastIssue is the durable cross-cycle record of a surfaced issue.
type PastIssue struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Areas       []Area          `json:"areas"`
	Severity    Severity        `json:"severity"`
	DataRefs    []string        `json:"dataRefs"`
	CreatedAt   time.Time       `json:"createdAt"`
	Status      PastIssueStatus `json:"status"`
	LastChecked time.Time       `json:"lastChecked"`
	TrendData   []int           `json:"trendData"`
}

type TrendStatus string

const (
	TrendImproving TrendStatus = "improving"
	TrendWorsening TrendStatus = "worsening"
	TrendStagnant  TrendStatus = "stagnant"
	TrendNew       TrendStatus = "new"
)

// FollowUpResult is the delegated judgement on one past issue against fresh data.
type FollowUpResult struct {
	IssueID     int         `json:"issueId"`
	Title       string      `json:"title"`
	Status      TrendStatus `json:"status"`
	Explanation string      `json:"explanation"`
	Escalate    bool        `json:"escalate"`
}

// Escalated reports whether the result needs operator attention.
func (r FollowUpResult) Escalated() bool {
	return r.Status == TrendWorsening && r.Escalate
}

// CardTrend is the deterministic classification of a fresh card against the past-issue log.
type CardTrend struct {
	CardID      int         `json:"card_id"`
	Title       string      `json:"title"`
	PastIssueID *int        `json:"past_issue_id,omitempty"`
	Status      TrendStatus `json:"status"`
}
