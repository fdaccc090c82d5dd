package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

var errNoAnalyses = errors.New("no agent analyses for area")

// AgentAnalysis is one agent's contribution to its area's consolidation.
type AgentAnalysis struct {
	Name     string
	Analysis string
}

// Consolidator merges an area's agent analyses into one structured report.
type Consolidator struct {
	llm llm.Client
}

func NewConsolidator(client llm.Client) *Consolidator {
	return &Consolidator{llm: client}
}

// Consolidate never fails outright: on any error it returns the canonical placeholder report.
func (c *Consolidator) Consolidate(ctx context.Context, area model.Area, analyses []AgentAnalysis) Result[model.AreaReport] {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Area:      logger.Ptr(string(area)),
		Component: "lighthouse.brain.consolidator",
	})

	if len(analyses) == 0 {
		slog.WarnContext(ctx, "nothing to consolidate, using placeholder report")
		return Degraded(model.ConsolidationFailedReport(area), errNoAnalyses)
	}

	parts := make([]string, 0, len(analyses))
	for _, a := range analyses {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Name, a.Analysis))
	}

	resp, err := c.llm.Invoke(ctx, llm.Request{
		SystemPrompt: consolidatorPrompt(area),
		UserPrompt:   "Consolidate these reports into structured JSON:\n" + strings.Join(parts, "\n\n"),
		Structured:   true,
		SchemaName:   "area_report",
		Schema:       llm.GenerateSchema[model.AreaReportDoc](),
		Temperature:  llm.Temp(0.4),
	})
	if err != nil {
		slog.WarnContext(ctx, "consolidation failed", "error", err)
		return Degraded(model.ConsolidationFailedReport(area), fmt.Errorf("consolidating %s: %w", area, err))
	}

	doc, err := llm.ParseStructured[model.AreaReportDoc](resp.Content)
	if err != nil {
		slog.WarnContext(ctx, "consolidation response unparseable",
			"error", err,
			"response", logger.Truncate(resp.Content, 200))
		return Degraded(model.ConsolidationFailedReport(area), fmt.Errorf("consolidating %s: %w", area, err))
	}
	if doc.Issues == nil {
		doc.Issues = []string{}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return Degraded(model.ConsolidationFailedReport(area), fmt.Errorf("encoding %s report: %w", area, err))
	}

	slog.InfoContext(ctx, "area consolidated",
		"agents", len(analyses),
		"issues", len(doc.Issues),
		"confidence", doc.Confidence)

	return Ok(model.AreaReport{Area: area, Raw: string(raw), Content: doc})
}
