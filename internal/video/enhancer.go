// Package video turns the top issue card into a rendered storyboard. Jobs run detached from
// the pipeline and report progress through the running log.
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

var (
	ErrNoCards     = errors.New("no issue cards to render")
	ErrNotReady    = errors.New("pipeline has not reached the cards stage")
	ErrJobNotFound = errors.New("video job not found")
)

const logSource = "Video Agent"

// MaxFinishedJobs bounds how many done or failed jobs stay queryable. Older ones are evicted
// first; pending and running jobs are never evicted.
const MaxFinishedJobs = 20

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

type Scene struct {
	Index     int    `json:"index"`
	Prompt    string `json:"prompt"`
	ObjectKey string `json:"object_key,omitempty"`
}

type Job struct {
	ID        string    `json:"id"`
	CycleID   int64     `json:"cycle_id,string"`
	CardID    int       `json:"card_id"`
	Title     string    `json:"title"`
	Status    JobStatus `json:"status"`
	Scenes    []Scene   `json:"scenes"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Scripter interface {
	Script(ctx context.Context, card model.IssueCard) []string
}

type Renderer interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// LogSink receives user-visible progress entries.
type LogSink interface {
	Log(source, message string, typ model.LogType)
}

type Enhancer struct {
	scripter Scripter
	renderer Renderer
	frames   FrameStore
	sink     LogSink
	now      func() time.Time

	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
	wg    sync.WaitGroup
}

func NewEnhancer(scripter Scripter, renderer Renderer, frames FrameStore, sink LogSink) *Enhancer {
	return &Enhancer{
		scripter: scripter,
		renderer: renderer,
		frames:   frames,
		sink:     sink,
		now:      time.Now,
		jobs:     make(map[string]*Job),
	}
}

// Start queues a job for the first card. It requires the pipeline to be at or past the
// cards stage with at least one card. The job outlives ctx.
func (e *Enhancer) Start(ctx context.Context, cycleID int64, stage model.Stage, cards []model.IssueCard) (Job, error) {
	if stage < model.StageCards {
		return Job{}, ErrNotReady
	}
	if len(cards) == 0 {
		return Job{}, ErrNoCards
	}

	card := cards[0]
	now := e.now()
	job := &Job{
		ID:        uuid.NewString(),
		CycleID:   cycleID,
		CardID:    card.ID,
		Title:     card.Title,
		Status:    JobPending,
		Scenes:    []Scene{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.mu.Lock()
	e.pruneLocked()
	e.jobs[job.ID] = job
	e.order = append(e.order, job.ID)
	snapshot := cloneJob(job)
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(context.WithoutCancel(ctx), job.ID, card)
	}()

	return snapshot, nil
}

// pruneLocked drops the oldest finished jobs until at most MaxFinishedJobs remain.
func (e *Enhancer) pruneLocked() {
	finished := 0
	for _, id := range e.order {
		if isFinished(e.jobs[id]) {
			finished++
		}
	}

	kept := e.order[:0]
	for _, id := range e.order {
		if finished > MaxFinishedJobs && isFinished(e.jobs[id]) {
			delete(e.jobs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	clear(e.order[len(kept):])
	e.order = kept
}

func isFinished(job *Job) bool {
	return job.Status == JobDone || job.Status == JobFailed
}

func (e *Enhancer) Get(id string) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, ok := e.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Wait blocks until every started job has finished.
func (e *Enhancer) Wait() {
	e.wg.Wait()
}

func (e *Enhancer) run(ctx context.Context, jobID string, card model.IssueCard) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "lighthouse.video.enhancer"})
	sc := logger.StartSpan(ctx, "video.job")
	defer sc.End()
	ctx = sc.Context()

	e.update(jobID, func(j *Job) { j.Status = JobRunning })
	e.sink.Log(logSource, "Starting Multi-Part Video Synthesis...", model.LogInfo)

	prompts := e.scripter.Script(ctx, card)
	e.sink.Log(logSource, fmt.Sprintf("Storylined %d-part brief: %d scenes planned.", SceneCount, len(prompts)), model.LogInfo)

	for i, prompt := range prompts {
		e.sink.Log(logSource, fmt.Sprintf("Synthesizing Scene %d: %s", i+1, logger.Truncate(prompt, 50)), model.LogInfo)

		key, err := e.renderScene(ctx, jobID, i, prompt)
		if err != nil {
			sc.RecordError(err)
			slog.ErrorContext(ctx, "video job failed", "job_id", jobID, "scene", i+1, "error", err)
			e.update(jobID, func(j *Job) {
				j.Status = JobFailed
				j.Error = err.Error()
			})
			e.sink.Log(logSource, fmt.Sprintf("Video generation failed: %s", err.Error()), model.LogError)
			return
		}

		scene := Scene{Index: i + 1, Prompt: prompt, ObjectKey: key}
		e.update(jobID, func(j *Job) { j.Scenes = append(j.Scenes, scene) })
		e.sink.Log(logSource, fmt.Sprintf("Scene %d ready.", i+1), model.LogSuccess)
	}

	e.update(jobID, func(j *Job) { j.Status = JobDone })
	e.sink.Log(logSource, "Full Video Report Synthesis Complete.", model.LogSuccess)
	slog.InfoContext(ctx, "video job complete", "job_id", jobID, "scenes", len(prompts))
}

func (e *Enhancer) renderScene(ctx context.Context, jobID string, i int, prompt string) (string, error) {
	frame, err := e.renderer.GenerateImage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("rendering scene %d: %w", i+1, err)
	}

	key := fmt.Sprintf("%s/scene-%d.png", jobID, i+1)
	if err := e.frames.Put(ctx, key, frame, "image/png"); err != nil {
		return "", fmt.Errorf("storing scene %d: %w", i+1, err)
	}
	return key, nil
}

func (e *Enhancer) update(jobID string, fn func(j *Job)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if job, ok := e.jobs[jobID]; ok {
		fn(job)
		job.UpdatedAt = e.now()
	}
}

func cloneJob(j *Job) Job {
	out := *j
	out.Scenes = append([]Scene(nil), j.Scenes...)
	if out.Scenes == nil {
		out.Scenes = []Scene{}
	}
	return out
}
