package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

var errNoCards = errors.New("no cards to chart")

// ChartGenerator derives one best-effort visualization from the cycle's cards.
type ChartGenerator struct {
	llm llm.Client
}

func NewChartGenerator(client llm.Client) *ChartGenerator {
	return &ChartGenerator{llm: client}
}

type cardProjection struct {
	Title    string         `json:"title"`
	Severity model.Severity `json:"severity"`
	Areas    []model.Area   `json:"areas"`
}

func (g *ChartGenerator) Generate(ctx context.Context, cards []model.IssueCard) Result[*model.ChartConfig] {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.brain.charts"})

	if len(cards) == 0 {
		return Failed[*model.ChartConfig](errNoCards)
	}

	projection := make([]cardProjection, 0, len(cards))
	for _, c := range cards {
		projection = append(projection, cardProjection{Title: c.Title, Severity: c.Severity, Areas: c.Areas})
	}
	cardContext, err := json.Marshal(projection)
	if err != nil {
		return Failed[*model.ChartConfig](fmt.Errorf("encoding cards: %w", err))
	}

	resp, err := g.llm.Invoke(ctx, llm.Request{
		SystemPrompt: chartGeneratorPrompt,
		UserPrompt:   "Create a chart config based on these issues: " + string(cardContext),
		Structured:   true,
		SchemaName:   "chart_config",
		Schema:       llm.GenerateSchema[model.ChartConfig](),
		Temperature:  llm.Temp(0.7),
	})
	if err != nil {
		slog.WarnContext(ctx, "chart generation failed", "error", err)
		return Failed[*model.ChartConfig](fmt.Errorf("generating chart: %w", err))
	}

	chart, err := llm.ParseStructured[model.ChartConfig](resp.Content)
	if err != nil {
		slog.WarnContext(ctx, "chart response unparseable", "error", err)
		return Failed[*model.ChartConfig](fmt.Errorf("generating chart: %w", err))
	}
	if chart.ChartType == "" {
		return Failed[*model.ChartConfig](fmt.Errorf("generating chart: %w: missing chart_type", llm.ErrParse))
	}

	if chart.ChartType == model.ChartTimeSeries {
		chart.ChartType = model.ChartLine
	}
	if chart.Data == nil {
		chart.Data = []map[string]any{}
	}

	slog.InfoContext(ctx, "chart generated",
		"chart_type", chart.ChartType,
		"rows", len(chart.Data))

	return Ok(&chart)
}
