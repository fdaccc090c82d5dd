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

type cardsEnvelope struct {
	Cards []model.IssueCard `json:"cards"`
}

// CardGenerator produces the cycle's ranked issue cards.
type CardGenerator struct {
	llm llm.Client
}

func NewCardGenerator(client llm.Client) *CardGenerator {
	return &CardGenerator{llm: client}
}

// Generate returns Failed when the model call or parse fails; there is no placeholder for cards.
func (g *CardGenerator) Generate(ctx context.Context, reports map[model.Area]model.AreaReport, discussion model.Discussion) Result[[]model.IssueCard] {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.brain.cards"})

	blocks := make([]string, 0, len(reports))
	for _, area := range model.Areas {
		report, ok := reports[area]
		if !ok {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("AREA: %s\nREPORT: %s", area, report.Raw))
	}

	discussionJSON, err := json.MarshalIndent(discussion, "", "  ")
	if err != nil {
		return Failed[[]model.IssueCard](fmt.Errorf("encoding discussion: %w", err))
	}

	prompt := fmt.Sprintf("Generate issue cards from these Area Reports and Cross-Area Discussion Insights:\n\nREPORTS:\n%s\n\nROUNDTABLE OUTCOME (JSON):\n%s",
		strings.Join(blocks, "\n---\n"), discussionJSON)

	resp, err := g.llm.Invoke(ctx, llm.Request{
		SystemPrompt: cardGeneratorPrompt,
		UserPrompt:   prompt,
		Structured:   true,
		SchemaName:   "issue_cards",
		Schema:       llm.GenerateSchema[cardsEnvelope](),
		Temperature:  llm.Temp(0.4),
	})
	if err != nil {
		slog.ErrorContext(ctx, "card generation failed", "error", err)
		return Failed[[]model.IssueCard](fmt.Errorf("generating cards: %w", err))
	}

	cards, err := parseList[model.IssueCard](resp.Content, "cards")
	if err != nil {
		slog.ErrorContext(ctx, "card response unparseable",
			"error", err,
			"response", logger.Truncate(resp.Content, 200))
		return Failed[[]model.IssueCard](fmt.Errorf("generating cards: %w", err))
	}

	cards = normalizeCards(cards)
	slog.InfoContext(ctx, "issue cards generated", "cards", len(cards))

	return Ok(cards)
}

// normalizeCards fills ids, derives cross_area from the area set and replaces nil lists.
func normalizeCards(cards []model.IssueCard) []model.IssueCard {
	out := make([]model.IssueCard, 0, len(cards))
	seen := map[int]bool{}
	for i, c := range cards {
		if c.ID <= 0 || seen[c.ID] {
			c.ID = i + 1
			for seen[c.ID] {
				c.ID++
			}
		}
		seen[c.ID] = true

		if c.Areas == nil {
			c.Areas = []model.Area{}
		}
		if c.ContributingAgents == nil {
			c.ContributingAgents = []int{}
		}
		if c.DataRefs == nil {
			c.DataRefs = []string{}
		}
		c.CrossArea = len(c.Areas) > 1
		out = append(out, c)
	}
	return out
}
