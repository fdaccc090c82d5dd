package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/brain"
	"lighthouse.app/cityintel/internal/model"
)

var errEmptyPayload = errors.New("empty payload")

func (o *Orchestrator) run(c *cycle) {
	defer close(c.done)

	ctx := logger.WithLogFields(c.ctx, cycleFields(c))
	sc := logger.StartSpan(ctx, "pipeline.cycle")
	defer sc.End()
	sc.SetAttributes(attribute.Int64("cycle.id", c.id))
	ctx = sc.Context()

	started := o.now()

	var agents []model.Agent
	if !o.stage(ctx, c, model.StageFetch, func(ctx context.Context) { agents = o.fetchAll(ctx, c) }) {
		return
	}
	if !o.stage(ctx, c, model.StageAnalyze, func(ctx context.Context) { agents = o.analyzeAll(ctx, c, agents) }) {
		return
	}

	var reports map[model.Area]model.AreaReport
	if !o.stage(ctx, c, model.StageConsolidate, func(ctx context.Context) { reports = o.consolidateAll(ctx, c, agents) }) {
		return
	}

	var discussion model.Discussion
	if !o.stage(ctx, c, model.StageDiscuss, func(ctx context.Context) { discussion = o.discuss(ctx, c, reports) }) {
		return
	}

	var cards []model.IssueCard
	if !o.stage(ctx, c, model.StageCards, func(ctx context.Context) { cards = o.generateCards(ctx, c, reports, discussion) }) {
		return
	}
	if !o.stage(ctx, c, model.StageCharts, func(ctx context.Context) { o.generateChart(ctx, c, cards) }) {
		return
	}
	if !o.stage(ctx, c, model.StageFollowUp, func(ctx context.Context) { o.followUp(ctx, c, cards, agents) }) {
		return
	}

	o.persist(ctx, c, cards, agents)

	finished := o.mutate(c, func(s *state) {
		if o.deps.Cache != nil {
			o.deps.Cache.Clear()
		}
		s.running = false
		o.setStageLocked(model.StageMarathon)
		o.logLocked(model.SystemSource, "Pipeline Cycle Complete.", model.LogSuccess)
		o.active = nil
	})
	if !finished {
		return
	}

	o.deps.Metrics.CycleFinished("completed")
	o.deps.Metrics.SetInFlight(false)
	slog.InfoContext(ctx, "pipeline cycle complete",
		"cards", len(cards),
		"duration", o.now().Sub(started))
}

// stage moves the active cycle to stage, runs fn under a span and reports whether the cycle
// is still active afterwards.
func (o *Orchestrator) stage(ctx context.Context, c *cycle, stage model.Stage, fn func(ctx context.Context)) bool {
	if !o.mutate(c, func(s *state) {
		if s.stage != stage {
			o.setStageLocked(stage)
		}
	}) {
		return false
	}

	name := stage.String()
	ctx = logger.WithLogFields(ctx, logger.LogFields{Stage: &name})
	sc := logger.StartSpan(ctx, "pipeline."+name)
	defer sc.End()

	start := o.now()
	fn(sc.Context())
	o.deps.Metrics.ObserveStage(name, o.now().Sub(start))

	slog.DebugContext(ctx, "stage settled", "duration", o.now().Sub(start))
	return o.alive(c)
}

// fetchAll fans out one fetch per agent and joins on all of them.
func (o *Orchestrator) fetchAll(ctx context.Context, c *cycle) []model.Agent {
	agents := model.DefaultAgents()

	var wg sync.WaitGroup
	for i := range agents {
		wg.Add(1)
		go func(a *model.Agent) {
			defer wg.Done()
			o.fetchOne(ctx, c, a)
		}(&agents[i])
	}
	wg.Wait()

	return agents
}

func (o *Orchestrator) fetchOne(ctx context.Context, c *cycle, a *model.Agent) {
	agentID := a.ID
	area := string(a.Area)
	src := string(a.Source)
	ctx = logger.WithLogFields(ctx, logger.LogFields{AgentID: &agentID, Area: &area, Source: &src})

	err := safely(func() error {
		if err := o.sleep(ctx, o.stagger*time.Duration(a.ID)); err != nil {
			return err
		}
		payload, err := o.deps.Fetcher.Fetch(ctx, *a)
		if err != nil {
			return err
		}
		if payload == "" {
			return errEmptyPayload
		}
		a.Payload = payload
		return nil
	})

	if err != nil {
		a.Status = model.AgentStatusError
		a.LastMessage = "Fetch failed."
		slog.WarnContext(ctx, "agent fetch failed", "agent", a.Name, "error", err)
	} else {
		a.Status = model.AgentStatusDone
		a.LastMessage = "Payload received. Queued."
		slog.DebugContext(ctx, "agent fetch complete", "agent", a.Name, "bytes", len(a.Payload))
	}
	o.deps.Metrics.AgentResult(area, src, "fetch_"+string(a.Status))

	snapshot := *a
	o.mutate(c, func(s *state) {
		if live := s.agent(snapshot.ID); live != nil {
			*live = snapshot
		}
		if err != nil {
			o.logLocked(snapshot.Name, fmt.Sprintf("Fetch failed: %s", logger.Truncate(err.Error(), 160)), model.LogError)
		}
	})
}

// analyzeAll runs the analyst for every agent whose fetch succeeded.
func (o *Orchestrator) analyzeAll(ctx context.Context, c *cycle, agents []model.Agent) []model.Agent {
	o.mutate(c, func(s *state) {
		o.logLocked(sourceOrchestrator, "Analyzing payloads...", model.LogInfo)
	})

	var wg sync.WaitGroup
	for i := range agents {
		if agents[i].Status != model.AgentStatusDone || agents[i].Payload == "" {
			continue
		}
		wg.Add(1)
		go func(a *model.Agent) {
			defer wg.Done()
			o.analyzeOne(ctx, c, a)
		}(&agents[i])
	}
	wg.Wait()

	return agents
}

func (o *Orchestrator) analyzeOne(ctx context.Context, c *cycle, a *model.Agent) {
	agentID := a.ID
	area := string(a.Area)
	src := string(a.Source)
	ctx = logger.WithLogFields(ctx, logger.LogFields{AgentID: &agentID, Area: &area, Source: &src})

	a.Status = model.AgentStatusAnalyzing
	a.LastMessage = "Analyzing payload..."
	snapshot := *a
	if !o.mutate(c, func(s *state) {
		if live := s.agent(snapshot.ID); live != nil {
			*live = snapshot
		}
	}) {
		return
	}

	var analysis string
	err := safely(func() error {
		var err error
		analysis, err = o.deps.Analyst.Analyze(ctx, *a)
		return err
	})

	if err != nil {
		a.Status = model.AgentStatusError
		a.LastMessage = "Analysis failed."
		slog.WarnContext(ctx, "agent analysis failed", "agent", a.Name, "error", err)
	} else {
		a.Status = model.AgentStatusDone
		a.LastMessage = "Analysis complete."
		a.Analysis = analysis
	}
	o.deps.Metrics.AgentResult(area, src, "analyze_"+string(a.Status))

	snapshot = *a
	o.mutate(c, func(s *state) {
		if live := s.agent(snapshot.ID); live != nil {
			*live = snapshot
		}
		if err != nil {
			o.logLocked(snapshot.Name, "Analysis failed.", model.LogError)
		}
	})
}

// consolidateAll builds one report per area, in parallel across areas. Every area gets a
// report even if its synthesis fails.
func (o *Orchestrator) consolidateAll(ctx context.Context, c *cycle, agents []model.Agent) map[model.Area]model.AreaReport {
	results := make([]brain.Result[model.AreaReport], len(model.Areas))

	var wg sync.WaitGroup
	for i, area := range model.Areas {
		var inputs []brain.AgentAnalysis
		for _, a := range agents {
			if a.Area == area && a.Status == model.AgentStatusDone && a.Analysis != "" {
				inputs = append(inputs, brain.AgentAnalysis{Name: a.Name, Analysis: a.Analysis})
			}
		}

		wg.Add(1)
		go func(i int, area model.Area, inputs []brain.AgentAnalysis) {
			defer wg.Done()
			err := safely(func() error {
				results[i] = o.deps.Consolidator.Consolidate(ctx, area, inputs)
				return nil
			})
			if err != nil {
				results[i] = brain.Degraded(model.ConsolidationFailedReport(area), err)
			}
		}(i, area, inputs)
	}
	wg.Wait()

	reports := make(map[model.Area]model.AreaReport, len(model.Areas))
	for i, area := range model.Areas {
		r := results[i]
		if !r.Usable() {
			r = brain.Degraded(model.ConsolidationFailedReport(area), r.Err)
		}
		reports[area] = r.Value
		o.deps.Metrics.SynthesisResult("consolidate", r.Outcome.String())
	}

	o.mutate(c, func(s *state) {
		for i, area := range model.Areas {
			s.reports[area] = reports[area]
			if results[i].IsOk() {
				o.logLocked(sourceConsolidator, fmt.Sprintf("%s report consolidated.", area), model.LogSuccess)
			} else {
				o.logLocked(sourceConsolidator, fmt.Sprintf("%s consolidation failed. Using placeholder.", area), model.LogWarning)
			}
		}
	})
	return reports
}

func (o *Orchestrator) discuss(ctx context.Context, c *cycle, reports map[model.Area]model.AreaReport) model.Discussion {
	var res brain.Result[model.Discussion]
	if err := safely(func() error {
		res = o.deps.Roundtable.Discuss(ctx, reports)
		return nil
	}); err != nil {
		res = brain.Degraded(model.DiscussionFailed(), err)
	}
	if !res.Usable() {
		res = brain.Degraded(model.DiscussionFailed(), res.Err)
	}
	o.deps.Metrics.SynthesisResult("discuss", res.Outcome.String())

	discussion := res.Value
	o.mutate(c, func(s *state) {
		d := discussion
		s.discussion = &d
		if res.IsOk() {
			o.logLocked(sourceRoundtable, logger.Truncate(discussion.Trace(), 500), model.LogInfo)
		} else {
			o.logLocked(sourceRoundtable, "Roundtable discussion failed. Continuing with placeholder.", model.LogWarning)
		}
	})
	return discussion
}

func (o *Orchestrator) generateCards(ctx context.Context, c *cycle, reports map[model.Area]model.AreaReport, discussion model.Discussion) []model.IssueCard {
	var res brain.Result[[]model.IssueCard]
	if err := safely(func() error {
		res = o.deps.Cards.Generate(ctx, reports, discussion)
		return nil
	}); err != nil {
		res = brain.Failed[[]model.IssueCard](err)
	}
	o.deps.Metrics.SynthesisResult("cards", res.Outcome.String())

	cards := res.Value
	if !res.Usable() {
		cards = []model.IssueCard{}
		slog.ErrorContext(ctx, "card generation failed", "error", res.Err)
	}
	o.deps.Metrics.SetCards(len(cards))

	o.mutate(c, func(s *state) {
		s.cards = cloneCards(cards)
		if res.Usable() {
			o.logLocked(sourceCards, fmt.Sprintf("Generated %d issue cards.", len(cards)), model.LogSuccess)
		} else {
			o.logLocked(sourceCards, fmt.Sprintf("Card generation failed: %s", errText(res.Err)), model.LogError)
		}
	})
	return cards
}

// generateChart is best effort: failure leaves the chart absent.
func (o *Orchestrator) generateChart(ctx context.Context, c *cycle, cards []model.IssueCard) {
	if len(cards) == 0 {
		o.mutate(c, func(s *state) {
			o.logLocked(sourceCharts, "No cards to chart. Skipping.", model.LogInfo)
		})
		return
	}

	var res brain.Result[*model.ChartConfig]
	if err := safely(func() error {
		res = o.deps.Charts.Generate(ctx, cards)
		return nil
	}); err != nil {
		res = brain.Failed[*model.ChartConfig](err)
	}
	o.deps.Metrics.SynthesisResult("charts", res.Outcome.String())

	o.mutate(c, func(s *state) {
		if res.Usable() && res.Value != nil {
			chart := *res.Value
			s.chart = &chart
			o.logLocked(sourceCharts, "Chart generated.", model.LogSuccess)
			return
		}
		o.logLocked(sourceCharts, "Chart generation failed.", model.LogWarning)
	})
}

// followUp checks past issues against fresh analyses and classifies this cycle's cards.
func (o *Orchestrator) followUp(ctx context.Context, c *cycle, cards []model.IssueCard, agents []model.Agent) {
	past, err := o.deps.History.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "loading past issues failed", "error", err)
		o.mutate(c, func(s *state) {
			o.logLocked(sourceFollowUp, "Could not load past issues. Skipping follow-up.", model.LogWarning)
		})
		past = nil
	}

	trends, err := o.deps.History.Classify(ctx, cards)
	if err != nil {
		slog.WarnContext(ctx, "classifying cards failed", "error", err)
	}

	var analyzed []model.Agent
	for _, a := range agents {
		if a.Status == model.AgentStatusDone && a.Analysis != "" {
			analyzed = append(analyzed, a)
		}
	}

	var res brain.Result[brain.FollowUpReport]
	if err := safely(func() error {
		res = o.deps.FollowUp.Check(ctx, past, analyzed)
		return nil
	}); err != nil {
		res = brain.Failed[brain.FollowUpReport](err)
	}
	if len(past) > 0 {
		o.deps.Metrics.SynthesisResult("follow_up", res.Outcome.String())
	}

	if !res.Usable() {
		o.mutate(c, func(s *state) {
			s.trends = trends
			o.logLocked(sourceFollowUp, "Follow-up check failed. Past issue statuses unchanged.", model.LogWarning)
		})
		return
	}

	report := res.Value
	if !o.alive(c) {
		return
	}
	if err := o.deps.History.ApplyFollowUp(ctx, report.Results); err != nil {
		slog.WarnContext(ctx, "applying follow-up failed", "error", err)
	}
	o.deps.Metrics.Escalated(report.Escalations)

	o.mutate(c, func(s *state) {
		s.followUp = report.Results
		s.escalations = report.Escalations
		s.trends = trends
		if len(past) > 0 {
			o.logLocked(sourceFollowUp, fmt.Sprintf("Checked %d past issues.", len(past)), model.LogInfo)
		}
		for _, r := range report.Results {
			if r.Escalated() {
				o.logLocked(sourceFollowUp, fmt.Sprintf("ESCALATION: %s is worsening. %s", r.Title, r.Explanation), model.LogWarning)
			}
		}
	})
}

// persist records cards in the past-issue log and the archive. Failures are logged only.
func (o *Orchestrator) persist(ctx context.Context, c *cycle, cards []model.IssueCard, agents []model.Agent) {
	if len(cards) == 0 || !o.alive(c) {
		return
	}

	if err := o.deps.History.AddPastIssues(ctx, cards); err != nil {
		slog.ErrorContext(ctx, "recording past issues failed", "error", err)
		o.mutate(c, func(s *state) {
			o.logLocked(sourceFollowUp, "Failed to record past issues.", model.LogError)
		})
	}

	if o.deps.Archive == nil || !o.alive(c) {
		return
	}

	contexts := make([]model.AgentContext, 0, len(agents))
	for _, a := range agents {
		contexts = append(contexts, model.AgentContext{Name: a.Name, Analysis: a.Analysis, Payload: a.Payload})
	}
	logs := o.Snapshot().Logs

	if _, err := o.deps.Archive.SaveAll(ctx, cards, contexts, logs); err != nil {
		o.deps.Metrics.ArchiveFailed()
		slog.ErrorContext(ctx, "archiving issues failed", "error", err)
		o.mutate(c, func(s *state) {
			o.logLocked(sourceArchive, fmt.Sprintf("Archive save failed: %s", logger.Truncate(err.Error(), 160)), model.LogError)
		})
		return
	}

	archived, err := o.deps.Archive.LoadAll(ctx)
	if err != nil {
		slog.WarnContext(ctx, "reloading archive failed", "error", err)
	}
	o.mutate(c, func(s *state) {
		if err == nil {
			s.archiveCount = len(archived)
		}
		o.logLocked(sourceArchive, fmt.Sprintf("Archived %d issues.", len(cards)), model.LogSuccess)
	})
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return logger.Truncate(err.Error(), 160)
}
