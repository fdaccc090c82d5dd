package video

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

// SceneCount is the number of storyboard scenes per job.
const SceneCount = 3

const scriptPrompt = `You are a documentary filmmaker. Create a 3-part storyboard for a short report about a San Francisco city issue.
For each part, write a highly descriptive prompt (shot-by-shot details) for an image generation model.
Part 1: The Problem. A cinematic establishing shot of a SF neighborhood or landmark affected by this specific issue.
Part 2: The Evidence. A shot that visualizes the data or the impact.
Part 3: The Future. A hopeful or contemplative closing shot of the SF skyline or community, representing the forecast or action impact.
Respond with JSON: {"scenes": ["prompt 1", "prompt 2", "prompt 3"]}`

type storyboard struct {
	Scenes []string `json:"scenes"`
}

type ScriptWriter struct {
	llm llm.Client
}

func NewScriptWriter(client llm.Client) *ScriptWriter {
	return &ScriptWriter{llm: client}
}

// Script returns SceneCount scene prompts for the card. Any failure yields FallbackScenes.
func (w *ScriptWriter) Script(ctx context.Context, card model.IssueCard) []string {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.video.script"})

	resp, err := w.llm.Invoke(ctx, llm.Request{
		SystemPrompt: scriptPrompt,
		UserPrompt:   fmt.Sprintf("Issue: %q\nSummary: %s", card.Title, card.Summary),
		Structured:   true,
		SchemaName:   "storyboard",
		Schema:       llm.GenerateSchema[storyboard](),
		Temperature:  llm.Temp(0.7),
	})
	if err != nil {
		slog.WarnContext(ctx, "storyboard script failed, using fallback scenes", "error", err)
		return FallbackScenes(card.Title)
	}

	scenes, err := parseScenes(resp.Content)
	if err != nil {
		slog.WarnContext(ctx, "storyboard script unparseable, using fallback scenes",
			"error", err,
			"response", logger.Truncate(resp.Content, 200))
		return FallbackScenes(card.Title)
	}
	return scenes
}

// parseScenes accepts a bare array or a {"scenes": [...]} object and keeps at most SceneCount
// non-empty prompts.
func parseScenes(raw string) ([]string, error) {
	list, err := llm.ParseStructured[[]string](raw)
	if err != nil {
		board, berr := llm.ParseStructured[storyboard](raw)
		if berr != nil {
			return nil, berr
		}
		list = board.Scenes
	}

	scenes := make([]string, 0, SceneCount)
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			scenes = append(scenes, s)
		}
		if len(scenes) == SceneCount {
			break
		}
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("storyboard has no scenes: %w", llm.ErrParse)
	}
	return scenes, nil
}

func FallbackScenes(title string) []string {
	return []string{
		fmt.Sprintf("Cinematic drone shot of San Francisco, representing the issue: %s. Photorealistic, 4K.", title),
		fmt.Sprintf("Street level view in San Francisco showing impact of %s. Documentary style.", title),
		"Establishing shot of San Francisco Bay Area at dawn, contemplative mood.",
	}
}
