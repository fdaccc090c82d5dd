package store

import (
	"encoding/json"
	"time"

	"lighthouse.app/cityintel/common/id"
	"lighthouse.app/cityintel/internal/model"
)

const archiveTable = "archived_issues"

var archiveColumns = []string{
	"doc_id", "card_id", "title", "severity", "status",
	"card", "agent_analysis", "raw_data", "agent_conversation",
	"created_at", "updated_at",
}

// BuildArchivedIssues turns one cycle's output into archive records stamped with now.
func BuildArchivedIssues(cards []model.IssueCard, agents []model.AgentContext, logs []model.LogEntry, now time.Time) []model.ArchivedIssue {
	analysis := make(map[string]string, len(agents))
	rawData := make(map[string]any, len(agents))
	for _, a := range agents {
		if a.Analysis != "" {
			analysis[a.Name] = a.Analysis
		}
		if a.Payload != "" {
			rawData[a.Name] = decodePayload(a.Payload)
		}
	}

	conversation := make([]string, 0, len(logs))
	for _, entry := range logs {
		if entry.Source == model.SystemSource {
			continue
		}
		conversation = append(conversation, entry.String())
	}

	records := make([]model.ArchivedIssue, 0, len(cards))
	for _, card := range cards {
		records = append(records, model.ArchivedIssue{
			DocID:             id.IssueDocumentID(card.ID, now),
			Card:              card,
			Status:            model.ArchiveActive,
			AgentAnalysis:     analysis,
			RawData:           rawData,
			AgentConversation: conversation,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return records
}

// decodePayload keeps JSON payloads structured and stores anything else verbatim.
func decodePayload(payload string) any {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return payload
	}
	return v
}

type archiveRow struct {
	card         []byte
	analysis     []byte
	rawData      []byte
	conversation []byte
}

func encodeArchiveRow(r model.ArchivedIssue) (archiveRow, error) {
	var (
		row archiveRow
		err error
	)
	if row.card, err = json.Marshal(r.Card); err != nil {
		return row, err
	}
	if row.analysis, err = json.Marshal(r.AgentAnalysis); err != nil {
		return row, err
	}
	if row.rawData, err = json.Marshal(r.RawData); err != nil {
		return row, err
	}
	row.conversation, err = json.Marshal(r.AgentConversation)
	return row, err
}

func decodeArchiveRow(row archiveRow, r *model.ArchivedIssue) error {
	if err := json.Unmarshal(row.card, &r.Card); err != nil {
		return err
	}
	if err := json.Unmarshal(row.analysis, &r.AgentAnalysis); err != nil {
		return err
	}
	if err := json.Unmarshal(row.rawData, &r.RawData); err != nil {
		return err
	}
	return json.Unmarshal(row.conversation, &r.AgentConversation)
}
