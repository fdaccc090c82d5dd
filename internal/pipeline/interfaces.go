package pipeline

import (
	"context"

	"lighthouse.app/cityintel/internal/brain"
	"lighthouse.app/cityintel/internal/model"
)

// Collaborators the orchestrator delegates to. The brain package satisfies the synthesis ones.

type Analyzer interface {
	Analyze(ctx context.Context, agent model.Agent) (string, error)
}

type Consolidator interface {
	Consolidate(ctx context.Context, area model.Area, analyses []brain.AgentAnalysis) brain.Result[model.AreaReport]
}

type Discusser interface {
	Discuss(ctx context.Context, reports map[model.Area]model.AreaReport) brain.Result[model.Discussion]
}

type CardGenerator interface {
	Generate(ctx context.Context, reports map[model.Area]model.AreaReport, discussion model.Discussion) brain.Result[[]model.IssueCard]
}

type ChartGenerator interface {
	Generate(ctx context.Context, cards []model.IssueCard) brain.Result[*model.ChartConfig]
}

type FollowUpChecker interface {
	Check(ctx context.Context, past []model.PastIssue, agents []model.Agent) brain.Result[brain.FollowUpReport]
}

// History is the past-issue log as seen by the orchestrator.
type History interface {
	Load(ctx context.Context) ([]model.PastIssue, error)
	Classify(ctx context.Context, cards []model.IssueCard) ([]model.CardTrend, error)
	ApplyFollowUp(ctx context.Context, results []model.FollowUpResult) error
	AddPastIssues(ctx context.Context, cards []model.IssueCard) error
}
