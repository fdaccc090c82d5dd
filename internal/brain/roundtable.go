package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

// Roundtable looks for interactions between the areas' consolidated reports.
type Roundtable struct {
	llm llm.Client
}

func NewRoundtable(client llm.Client) *Roundtable {
	return &Roundtable{llm: client}
}

// Discuss always yields a structurally valid discussion; failures degrade to the placeholder.
func (r *Roundtable) Discuss(ctx context.Context, reports map[model.Area]model.AreaReport) Result[model.Discussion] {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.brain.roundtable"})

	var b strings.Builder
	b.WriteString("Initial summaries:\n")
	for _, area := range model.Areas {
		raw := "No Data"
		if report, ok := reports[area]; ok && report.Raw != "" {
			raw = report.Raw
		}
		fmt.Fprintf(&b, "%s: %s\n", area.Code(), raw)
	}
	b.WriteString("\nExecute the round-robin discussion.")

	resp, err := r.llm.Invoke(ctx, llm.Request{
		SystemPrompt: roundtablePrompt,
		UserPrompt:   b.String(),
		Structured:   true,
		SchemaName:   "roundtable_discussion",
		Schema:       llm.GenerateSchema[model.Discussion](),
		Temperature:  llm.Temp(0.3),
	})
	if err != nil {
		slog.WarnContext(ctx, "roundtable failed", "error", err)
		return Degraded(model.DiscussionFailed(), fmt.Errorf("roundtable: %w", err))
	}

	discussion, err := llm.ParseStructured[model.Discussion](resp.Content)
	if err != nil {
		slog.WarnContext(ctx, "roundtable response unparseable",
			"error", err,
			"response", logger.Truncate(resp.Content, 200))
		return Degraded(model.DiscussionFailed(), fmt.Errorf("roundtable: %w", err))
	}

	if discussion.SingleAreaIssues == nil {
		discussion.SingleAreaIssues = []string{}
	}
	if discussion.CrossAreaIssues == nil {
		discussion.CrossAreaIssues = []model.CrossAreaIssue{}
	}

	slog.InfoContext(ctx, "roundtable complete",
		"single_area_issues", len(discussion.SingleAreaIssues),
		"cross_area_issues", len(discussion.CrossAreaIssues),
		"trace", logger.Truncate(discussion.Trace(), 60))

	return Ok(discussion)
}
