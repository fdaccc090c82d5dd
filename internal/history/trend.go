package history

import (
	"context"
	"fmt"

	"lighthouse.app/cityintel/internal/model"
)

// ClassifyCards compares fresh cards with the log before they are merged into it.
// Unmatched cards are new; matched ones move by severity rank against the stored severity.
func ClassifyCards(cards []model.IssueCard, issues []model.PastIssue, m Matcher) []model.CardTrend {
	trends := make([]model.CardTrend, 0, len(cards))
	for _, card := range cards {
		trend := model.CardTrend{CardID: card.ID, Title: card.Title, Status: model.TrendNew}

		if id, ok := m.Match(card.Title, issues); ok {
			if idx := indexOf(issues, id); idx >= 0 {
				pastID := id
				trend.PastIssueID = &pastID
				trend.Status = compareSeverity(issues[idx].Severity, card.Severity)
			}
		}
		trends = append(trends, trend)
	}
	return trends
}

func compareSeverity(past, current model.Severity) model.TrendStatus {
	p, c := rank(past), rank(current)
	switch {
	case c > p:
		return model.TrendWorsening
	case c < p:
		return model.TrendImproving
	default:
		return model.TrendStagnant
	}
}

// rank treats unknown severities as Medium.
func rank(s model.Severity) int {
	if r := s.Rank(); r > 0 {
		return r
	}
	return model.SeverityMedium.Rank()
}

// Classify loads the log and classifies cards against it with the tracker's matcher.
func (t *Tracker) Classify(ctx context.Context, cards []model.IssueCard) ([]model.CardTrend, error) {
	issues, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading past issues: %w", err)
	}
	return ClassifyCards(cards, issues, t.matcher), nil
}
