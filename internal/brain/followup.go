package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

// summaryChars is how much of each analysis goes into the fresh-data summary.
const summaryChars = 200

// FollowUpReport is the outcome of re-checking the past-issue log against fresh analyses.
type FollowUpReport struct {
	Results     []model.FollowUpResult `json:"results"`
	Escalations int                    `json:"escalations"`
}

type followUpEnvelope struct {
	Results []model.FollowUpResult `json:"results"`
}

type pastIssueRef struct {
	ID       int            `json:"id"`
	Title    string         `json:"title"`
	Severity model.Severity `json:"severity"`
	DataRefs []string       `json:"dataRefs"`
}

// FollowUp judges each past issue's trajectory from this cycle's analyses.
type FollowUp struct {
	llm llm.Client
}

func NewFollowUp(client llm.Client) *FollowUp {
	return &FollowUp{llm: client}
}

// Check returns an empty Ok report without calling the model when the log is empty.
// Results naming ids outside the log are dropped.
func (f *FollowUp) Check(ctx context.Context, past []model.PastIssue, agents []model.Agent) Result[FollowUpReport] {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.brain.followup"})

	if len(past) == 0 {
		return Ok(FollowUpReport{Results: []model.FollowUpResult{}})
	}

	refs := make([]pastIssueRef, 0, len(past))
	known := make(map[int]bool, len(past))
	for _, p := range past {
		refs = append(refs, pastIssueRef{ID: p.ID, Title: p.Title, Severity: p.Severity, DataRefs: p.DataRefs})
		known[p.ID] = true
	}
	pastJSON, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return Failed[FollowUpReport](fmt.Errorf("encoding past issues: %w", err))
	}

	prompt := fmt.Sprintf("PAST ISSUES TO CHECK:\n%s\n\nFRESH DATA SUMMARY FROM CURRENT CYCLE:\n%s",
		pastJSON, FreshDataSummary(agents))

	resp, err := f.llm.Invoke(ctx, llm.Request{
		SystemPrompt: followUpPrompt,
		UserPrompt:   prompt,
		Structured:   true,
		SchemaName:   "follow_up",
		Schema:       llm.GenerateSchema[followUpEnvelope](),
		Temperature:  llm.Temp(0.3),
	})
	if err != nil {
		slog.WarnContext(ctx, "follow-up check failed", "error", err)
		return Failed[FollowUpReport](fmt.Errorf("follow-up check: %w", err))
	}

	results, err := parseList[model.FollowUpResult](resp.Content, "results")
	if err != nil {
		slog.WarnContext(ctx, "follow-up response unparseable", "error", err)
		return Failed[FollowUpReport](fmt.Errorf("follow-up check: %w", err))
	}

	report := FollowUpReport{Results: make([]model.FollowUpResult, 0, len(results))}
	for _, r := range results {
		if !known[r.IssueID] {
			slog.DebugContext(ctx, "dropping follow-up result for unknown issue", "issue_id", r.IssueID)
			continue
		}
		switch r.Status {
		case model.TrendImproving, model.TrendWorsening, model.TrendStagnant:
		default:
			slog.DebugContext(ctx, "dropping follow-up result with unknown status",
				"issue_id", r.IssueID,
				"status", r.Status)
			continue
		}
		if r.Escalated() {
			report.Escalations++
		}
		report.Results = append(report.Results, r)
	}

	slog.InfoContext(ctx, "follow-up check complete",
		"past_issues", len(past),
		"results", len(report.Results),
		"escalations", report.Escalations)

	return Ok(report)
}

// FreshDataSummary lists each analyzed agent with the start of its analysis, one per line.
func FreshDataSummary(agents []model.Agent) string {
	lines := make([]string, 0, len(agents))
	for _, a := range agents {
		if a.Analysis == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s...", a.Name, headRunes(a.Analysis, summaryChars)))
	}
	return strings.Join(lines, "\n")
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
