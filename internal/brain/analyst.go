package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

// ErrEmptyAnalysis is returned when the model produced no text for a payload.
var ErrEmptyAnalysis = errors.New("empty analysis")

// maxPayloadChars bounds the payload forwarded to the model.
const maxPayloadChars = 60000

// Analyst turns one agent's raw payload into a short free-text analysis.
type Analyst struct {
	llm llm.Client
}

func NewAnalyst(client llm.Client) *Analyst {
	return &Analyst{llm: client}
}

func (a *Analyst) Analyze(ctx context.Context, agent model.Agent) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.brain.analyst"})

	if strings.TrimSpace(agent.Payload) == "" {
		return "", fmt.Errorf("agent %s has no payload", agent.Name)
	}

	payload := headRunes(agent.Payload, maxPayloadChars)

	start := time.Now()
	resp, err := a.llm.Invoke(ctx, llm.Request{
		SystemPrompt: analystPrompt(agent),
		UserPrompt:   "Analyze this payload: " + payload,
		Temperature:  llm.Temp(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("analyzing payload: %w", err)
	}

	analysis := strings.TrimSpace(resp.Content)
	if analysis == "" {
		return "", ErrEmptyAnalysis
	}

	slog.DebugContext(ctx, "agent analysis complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"payload_chars", len(agent.Payload),
		"analysis_chars", len(analysis))

	return analysis, nil
}
