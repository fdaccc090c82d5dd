package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/internal/brain"
	"lighthouse.app/cityintel/internal/cache"
	"lighthouse.app/cityintel/internal/history"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/pipeline"
	"lighthouse.app/cityintel/internal/source"
	"lighthouse.app/cityintel/internal/store"
)

type mockAnalyst struct {
	mu        sync.Mutex
	analyzeFn func(ctx context.Context, agent model.Agent) (string, error)
	seen      []int
}

func (m *mockAnalyst) Analyze(ctx context.Context, agent model.Agent) (string, error) {
	m.mu.Lock()
	m.seen = append(m.seen, agent.ID)
	m.mu.Unlock()
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, agent)
	}
	return "analysis of " + agent.Name, nil
}

func (m *mockAnalyst) agentIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.seen...)
}

type mockConsolidator struct {
	mu            sync.Mutex
	consolidateFn func(ctx context.Context, area model.Area, analyses []brain.AgentAnalysis) brain.Result[model.AreaReport]
	inputs        map[model.Area][]brain.AgentAnalysis
	callCount     int
}

func (m *mockConsolidator) Consolidate(ctx context.Context, area model.Area, analyses []brain.AgentAnalysis) brain.Result[model.AreaReport] {
	m.mu.Lock()
	m.callCount++
	if m.inputs == nil {
		m.inputs = map[model.Area][]brain.AgentAnalysis{}
	}
	m.inputs[area] = analyses
	m.mu.Unlock()

	if m.consolidateFn != nil {
		return m.consolidateFn(ctx, area, analyses)
	}
	return brain.Ok(model.AreaReport{
		Area:    area,
		Raw:     `{"summary":"ok","issues":[]}`,
		Content: model.AreaReportDoc{Summary: "ok", Issues: []string{}},
	})
}

func (m *mockConsolidator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

type mockRoundtable struct {
	discussFn func(ctx context.Context, reports map[model.Area]model.AreaReport) brain.Result[model.Discussion]
}

func (m *mockRoundtable) Discuss(ctx context.Context, reports map[model.Area]model.AreaReport) brain.Result[model.Discussion] {
	if m.discussFn != nil {
		return m.discussFn(ctx, reports)
	}
	return brain.Ok(model.Discussion{
		Thoughts:         "Closures on Van Ness slow ambulance response.",
		SingleAreaIssues: []string{},
		CrossAreaIssues:  []model.CrossAreaIssue{},
	})
}

type mockCardGenerator struct {
	mu         sync.Mutex
	generateFn func(ctx context.Context, reports map[model.Area]model.AreaReport, d model.Discussion) brain.Result[[]model.IssueCard]
	discussion *model.Discussion
	reports    map[model.Area]model.AreaReport
}

func (m *mockCardGenerator) Generate(ctx context.Context, reports map[model.Area]model.AreaReport, d model.Discussion) brain.Result[[]model.IssueCard] {
	m.mu.Lock()
	m.discussion = &d
	m.reports = reports
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(ctx, reports, d)
	}
	return brain.Ok(sampleCards())
}

type mockChartGenerator struct {
	generateFn func(ctx context.Context, cards []model.IssueCard) brain.Result[*model.ChartConfig]
	callCount  atomic.Int32
}

func (m *mockChartGenerator) Generate(ctx context.Context, cards []model.IssueCard) brain.Result[*model.ChartConfig] {
	m.callCount.Add(1)
	if m.generateFn != nil {
		return m.generateFn(ctx, cards)
	}
	return brain.Ok(&model.ChartConfig{ChartType: model.ChartBar, Title: "Severity by issue"})
}

// stubLLM backs the real follow-up engine.
type stubLLM struct {
	invokeFn  func(ctx context.Context, req llm.Request) (*llm.Response, error)
	callCount atomic.Int32
}

func (s *stubLLM) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.callCount.Add(1)
	if s.invokeFn != nil {
		return s.invokeFn(ctx, req)
	}
	return &llm.Response{Content: `{"results":[]}`}, nil
}

func (s *stubLLM) Model() string { return "stub" }

type failingArchive struct {
	store.IssueArchive
}

func (failingArchive) SaveAll(context.Context, []model.IssueCard, []model.AgentContext, []model.LogEntry) ([]string, error) {
	return nil, errors.New("connection refused")
}

// blockingArchive holds the first SaveAll until release is closed and then honours ctx.
type blockingArchive struct {
	store.IssueArchive
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingArchive(inner store.IssueArchive) *blockingArchive {
	return &blockingArchive{IssueArchive: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingArchive) SaveAll(ctx context.Context, cards []model.IssueCard, agents []model.AgentContext, logs []model.LogEntry) ([]string, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-b.release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return b.IssueArchive.SaveAll(ctx, cards, agents, logs)
}

func sampleCards() []model.IssueCard {
	return []model.IssueCard{
		{ID: 1, Title: "Rising burglaries in Mission", Areas: []model.Area{model.AreaPublicSafety}, Severity: model.SeverityHigh, DataRefs: []string{"wg3w-h783"}},
		{ID: 2, Title: "Water main failures downtown", Areas: []model.Area{model.AreaInfrastructure}, Severity: model.SeverityMedium},
		{ID: 3, Title: "Permit backlog slows housing", Areas: []model.Area{model.AreaLandUse, model.AreaInfrastructure}, CrossArea: true, Severity: model.SeverityCritical},
	}
}

type harness struct {
	fetchFn      func(ctx context.Context, agent model.Agent) (string, error)
	analyst      *mockAnalyst
	consolidator *mockConsolidator
	roundtable   *mockRoundtable
	cards        *mockCardGenerator
	charts       *mockChartGenerator
	followUpLLM  *stubLLM
	pastIssues   store.PastIssueStore
	tracker      *history.Tracker
	archive      store.IssueArchive
	cache        *cache.Cache
	orch         *pipeline.Orchestrator
}

func newHarness() *harness {
	h := &harness{
		analyst:      &mockAnalyst{},
		consolidator: &mockConsolidator{},
		roundtable:   &mockRoundtable{},
		cards:        &mockCardGenerator{},
		charts:       &mockChartGenerator{},
		followUpLLM:  &stubLLM{},
		pastIssues:   store.NewMemoryPastIssueStore(store.DefaultPastIssueLimit),
		archive:      store.NewMemoryArchive(),
		cache:        cache.New(5 * time.Minute),
	}
	h.tracker = history.NewTracker(h.pastIssues)
	return h
}

func (h *harness) build() *pipeline.Orchestrator {
	var ids atomic.Int64
	fetcher := source.FetcherFunc(func(ctx context.Context, agent model.Agent) (string, error) {
		if h.fetchFn != nil {
			return h.fetchFn(ctx, agent)
		}
		h.cache.Set(agent.Area.Code()+"_DATA", fmt.Sprintf(`{"agent":%q}`, agent.Name))
		return fmt.Sprintf(`{"agent":%q,"rows":[1,2,3]}`, agent.Name), nil
	})

	h.orch = pipeline.New(pipeline.Deps{
		Fetcher:      fetcher,
		Analyst:      h.analyst,
		Consolidator: h.consolidator,
		Roundtable:   h.roundtable,
		Cards:        h.cards,
		Charts:       h.charts,
		FollowUp:     brain.NewFollowUp(h.followUpLLM),
		History:      h.tracker,
		Archive:      h.archive,
		Cache:        h.cache,
	},
		pipeline.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		pipeline.WithIDGenerator(func() int64 { return ids.Add(1) }),
	)
	return h.orch
}

func (h *harness) runCycle() pipeline.Snapshot {
	ctx := context.Background()
	cycleID, err := h.orch.Start(ctx)
	Expect(err).NotTo(HaveOccurred())
	Expect(h.orch.Wait(ctx, cycleID)).To(Succeed())
	return h.orch.Snapshot()
}
