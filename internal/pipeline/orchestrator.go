// Package pipeline drives the city-intelligence cycle: fetch, analyze, consolidate, discuss,
// cards, charts, follow-up, persist. The Orchestrator is the single writer of pipeline state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lighthouse.app/cityintel/common/id"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/cache"
	"lighthouse.app/cityintel/internal/feed"
	"lighthouse.app/cityintel/internal/metrics"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/source"
	"lighthouse.app/cityintel/internal/store"
)

var ErrCycleInFlight = errors.New("pipeline cycle already in flight")

const (
	sourceOrchestrator = "Orchestrator"
	sourceConsolidator = "Consolidator"
	sourceRoundtable   = "Roundtable"
	sourceCards        = "Card Agent"
	sourceCharts       = "Chart Agent"
	sourceFollowUp     = "Marathon Orchestrator"
	sourceArchive      = "Archive"

	defaultStagger = 100 * time.Millisecond
)

// Deps are the orchestrator's collaborators. Archive, Cache, Feed and Metrics are optional.
type Deps struct {
	Fetcher      source.Fetcher
	Analyst      Analyzer
	Consolidator Consolidator
	Roundtable   Discusser
	Cards        CardGenerator
	Charts       ChartGenerator
	FollowUp     FollowUpChecker
	History      History
	Archive      store.IssueArchive
	Cache        *cache.Cache
	Feed         feed.Publisher
	Metrics      *metrics.Pipeline
}

type Option func(*Orchestrator)

// WithStagger sets the per-agent fetch departure delay, multiplied by the agent id.
func WithStagger(d time.Duration) Option {
	return func(o *Orchestrator) { o.stagger = d }
}

// WithSleep replaces the stagger wait. It must return early with ctx.Err() on cancellation.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces snowflake cycle ids.
func WithIDGenerator(next func() int64) Option {
	return func(o *Orchestrator) { o.nextID = next }
}

// cycle is the cancellation token for one run. Only the active cycle may mutate state.
type cycle struct {
	id     int64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Orchestrator struct {
	deps    Deps
	stagger time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	nextID  func() int64

	mu       sync.Mutex
	st       state
	active   *cycle
	cycles   map[int64]*cycle
	subs     map[int]chan Snapshot
	nextSub  int
	pending  []feed.Event
	publishM sync.Mutex
}

func New(deps Deps, opts ...Option) *Orchestrator {
	if deps.Feed == nil {
		deps.Feed = feed.NewNoopPublisher()
	}
	o := &Orchestrator{
		deps:    deps,
		stagger: defaultStagger,
		sleep:   sleepContext,
		now:     time.Now,
		nextID:  id.New,
		cycles:  make(map[int64]*cycle),
		subs:    make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.st.agents = model.DefaultAgents()
	o.st.reports = map[model.Area]model.AreaReport{}
	o.st.updatedAt = o.now()
	return o
}

// Start begins a new cycle and returns its id. It fails with ErrCycleInFlight while another
// cycle is running. The cycle outlives ctx; only Stop cancels it.
func (o *Orchestrator) Start(ctx context.Context) (int64, error) {
	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return 0, ErrCycleInFlight
	}

	cycleID := o.nextID()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &cycle{id: cycleID, ctx: runCtx, cancel: cancel, done: make(chan struct{})}

	for cid, prev := range o.cycles {
		select {
		case <-prev.done:
			delete(o.cycles, cid)
		default:
		}
	}
	o.cycles[cycleID] = c
	o.active = c

	o.st.reset(cycleID)
	o.st.running = true
	for i := range o.st.agents {
		o.st.agents[i].Status = model.AgentStatusFetching
		o.st.agents[i].LastMessage = "Connecting..."
	}
	o.setStageLocked(model.StageFetch)
	o.logLocked(sourceOrchestrator, "Initiating fetch sequence...", model.LogInfo)
	o.commitLocked()

	o.deps.Metrics.SetInFlight(true)
	go o.run(c)

	slog.InfoContext(ctx, "pipeline cycle started", "cycle_id", cycleID)
	return cycleID, nil
}

// Stop cancels the active cycle and forces the stage to Idle. Results that arrive afterwards
// are discarded.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	c := o.active
	o.active = nil
	if c != nil {
		c.cancel()
	}
	o.st.running = false
	o.setStageLocked(model.StageIdle)
	o.logLocked(model.SystemSource, "Pipeline stopped by user.", model.LogWarning)
	o.commitLocked()

	if c != nil {
		o.deps.Metrics.CycleFinished("stopped")
		o.deps.Metrics.SetInFlight(false)
		slog.Info("pipeline cycle stopped", "cycle_id", c.id)
	}
}

// Wait blocks until the cycle's goroutine has returned or ctx is done. Unknown or already
// pruned cycle ids return immediately.
func (o *Orchestrator) Wait(ctx context.Context, cycleID int64) error {
	o.mu.Lock()
	c, ok := o.cycles[cycleID]
	o.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.snapshot()
}

// Subscribe delivers a snapshot after every mutation. The channel holds one value; a slow
// reader only ever sees the newest snapshot. The returned func unsubscribes and closes it.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := o.nextSub
	o.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- o.st.snapshot()
	o.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, key)
			close(ch)
		})
	}
}

// SetArchiveCount records the archive size, e.g. after an operator edits the archive.
func (o *Orchestrator) SetArchiveCount(n int) {
	o.mu.Lock()
	o.st.archiveCount = n
	o.commitLocked()
}

// Log appends an entry to the running log from outside a cycle.
func (o *Orchestrator) Log(src, message string, typ model.LogType) {
	o.mu.Lock()
	o.logLocked(src, message, typ)
	o.commitLocked()
}

// mutate applies fn to state if c is still the active cycle.
func (o *Orchestrator) mutate(c *cycle, fn func(s *state)) bool {
	o.mu.Lock()
	if o.active != c {
		o.mu.Unlock()
		return false
	}
	fn(&o.st)
	o.commitLocked()
	return true
}

func (o *Orchestrator) alive(c *cycle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active == c
}

func (o *Orchestrator) setStageLocked(stage model.Stage) {
	o.st.stage = stage
	o.pending = append(o.pending, feed.Event{Kind: feed.KindStage, CycleID: o.st.cycleID, Stage: stage})
}

func (o *Orchestrator) logLocked(src, message string, typ model.LogType) {
	entry := model.LogEntry{Timestamp: o.now(), Source: src, Message: message, Type: typ}
	o.st.appendLog(entry)
	o.pending = append(o.pending, feed.Event{Kind: feed.KindLog, CycleID: o.st.cycleID, Stage: o.st.stage, Entry: &entry})
}

// commitLocked broadcasts the new state, releases o.mu and publishes queued feed events.
func (o *Orchestrator) commitLocked() {
	o.st.updatedAt = o.now()
	snap := o.st.snapshot()
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	events := o.pending
	o.pending = nil

	// Taken before unlocking so events leave in commit order.
	o.publishM.Lock()
	o.mu.Unlock()
	defer o.publishM.Unlock()

	for _, ev := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := o.deps.Feed.Publish(ctx, ev); err != nil {
			slog.WarnContext(ctx, "feed publish failed", "error", err, "kind", ev.Kind)
		}
		cancel()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// safely runs fn and turns a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func cycleFields(c *cycle) logger.LogFields {
	cid := c.id
	return logger.LogFields{CycleID: &cid, Component: "lighthouse.pipeline.orchestrator"}
}
