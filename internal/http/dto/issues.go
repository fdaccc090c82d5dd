package dto

import (
	"time"

	"lighthouse.app/cityintel/internal/model"
)

type UpdateIssueStatusRequest struct {
	Status model.ArchiveStatus `json:"status" binding:"required"`
}

type UpdatePastIssueStatusRequest struct {
	Status model.PastIssueStatus `json:"status" binding:"required"`
}

type ArchivedIssueResponse struct {
	DocID             string              `json:"doc_id"`
	Card              model.IssueCard     `json:"card"`
	Status            model.ArchiveStatus `json:"status"`
	AgentAnalysis     map[string]string   `json:"agent_analysis"`
	RawData           map[string]any      `json:"raw_data,omitempty"`
	AgentConversation []string            `json:"agent_conversation"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type ArchivedIssueListResponse struct {
	Issues []ArchivedIssueResponse `json:"issues"`
	Count  int                     `json:"count"`
}

// ToArchivedIssueList maps archive records; raw payloads are only included when withRaw is set.
func ToArchivedIssueList(records []model.ArchivedIssue, withRaw bool) ArchivedIssueListResponse {
	out := ArchivedIssueListResponse{Issues: make([]ArchivedIssueResponse, 0, len(records)), Count: len(records)}
	for _, r := range records {
		resp := ArchivedIssueResponse{
			DocID:             r.DocID,
			Card:              r.Card,
			Status:            r.Status,
			AgentAnalysis:     r.AgentAnalysis,
			AgentConversation: r.AgentConversation,
			CreatedAt:         r.CreatedAt,
			UpdatedAt:         r.UpdatedAt,
		}
		if withRaw {
			resp.RawData = r.RawData
		}
		out.Issues = append(out.Issues, resp)
	}
	return out
}

type PastIssueListResponse struct {
	Issues []model.PastIssue `json:"issues"`
	Count  int               `json:"count"`
}

func ToPastIssueList(issues []model.PastIssue) PastIssueListResponse {
	if issues == nil {
		issues = []model.PastIssue{}
	}
	return PastIssueListResponse{Issues: issues, Count: len(issues)}
}
