package model

import "time"

type ArchiveStatus string

const (
	ArchiveActive     ArchiveStatus = "active"
	ArchiveResolved   ArchiveStatus = "resolved"
	ArchiveMonitoring ArchiveStatus = "monitoring"
)

func (s ArchiveStatus) IsValid() bool {
	return s == ArchiveActive || s == ArchiveResolved || s == ArchiveMonitoring
}

// AgentContext is the per-agent material stored alongside archived cards.
type AgentContext struct {
	Name     string `json:"name"`
	Analysis string `json:"analysis,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// ArchivedIssue is a card persisted together with the context that produced it.
type ArchivedIssue struct {
	DocID             string            `json:"doc_id"`
	Card              IssueCard         `json:"card"`
	Status            ArchiveStatus     `json:"status"`
	AgentAnalysis     map[string]string `json:"agent_analysis"`
	RawData           map[string]any    `json:"raw_data"`
	AgentConversation []string          `json:"agent_conversation"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}
