package filecat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMaxConcurrentJobs is the number of jobs that may run at once.
	DefaultMaxConcurrentJobs = 2

	// DefaultJobRetention is the number of terminal jobs kept in memory.
	DefaultJobRetention = 100
)

// CoordinatorConfig bounds job concurrency and retention.
type CoordinatorConfig struct {
	MaxConcurrentJobs int
	JobRetention      int
}

// Coordinator schedules batch operations as background jobs, tracks their
// progress and raises events on every status transition.
//
// Jobs move Pending -> Running -> {Succeeded | Failed | PartiallyFailed}.
// A job cancelled before it got a worker goes from Pending to Failed.
// Terminal jobs are immutable, kept in a bounded LRU and written to history.
type Coordinator struct {
	engine    *Engine
	history   JobHistory
	publisher Publisher
	logger    Logger
	clock     Clock
	idgen     IDGenerator

	slots chan struct{}

	mu       sync.Mutex
	closed   bool
	active   map[string]*jobRun
	finished *lru.Cache[string, *BatchJob]
	wg       sync.WaitGroup
}

// NewCoordinator creates a Coordinator. history may be nil.
func NewCoordinator(engine *Engine, history JobHistory, publisher Publisher, logger Logger, clock Clock, idgen IDGenerator, cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if cfg.JobRetention <= 0 {
		cfg.JobRetention = DefaultJobRetention
	}
	finished, err := lru.New[string, *BatchJob](cfg.JobRetention)
	if err != nil {
		return nil, fmt.Errorf("creating job cache: %w", err)
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Coordinator{
		engine:    engine,
		history:   history,
		publisher: publisher,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		slots:     make(chan struct{}, cfg.MaxConcurrentJobs),
		active:    make(map[string]*jobRun),
		finished:  finished,
	}, nil
}

// SubmitRefresh schedules a Refresh job.
func (c *Coordinator) SubmitRefresh() (*BatchJob, error) {
	return c.submit(JobRefresh, c.engine.Refresh)
}

// SubmitForceCategorize schedules a ForceCategorize job.
func (c *Coordinator) SubmitForceCategorize(force bool) (*BatchJob, error) {
	return c.submit(JobForceCategorize, func(ctx context.Context, p Progress) error {
		return c.engine.ForceCategorize(ctx, force, p)
	})
}

// SubmitMove validates req and schedules a Move job. Invalid requests are
// rejected with a ValidationError and no job is created.
func (c *Coordinator) SubmitMove(req MoveRequest) (*BatchJob, error) {
	if err := ValidateMoveRequest(req, c.engine.cfg.MaxMoveBatch); err != nil {
		return nil, err
	}
	return c.submit(JobMove, func(ctx context.Context, p Progress) error {
		return c.engine.Move(ctx, req, p)
	})
}

// SubmitTrain schedules a Train job.
func (c *Coordinator) SubmitTrain() (*BatchJob, error) {
	return c.submit(JobTrain, c.engine.Train)
}

// Job returns a snapshot of a running or retained job.
func (c *Coordinator) Job(id string) (*BatchJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if run, ok := c.active[id]; ok {
		return run.snapshot(), nil
	}
	if job, ok := c.finished.Get(id); ok {
		return job.Clone(), nil
	}
	return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
}

// Jobs returns snapshots of running and retained jobs, newest first.
func (c *Coordinator) Jobs() []*BatchJob {
	// Both views are read under one lock: a job leaving active is added to
	// finished in the same critical section, so it shows up exactly once.
	c.mu.Lock()
	jobs := make([]*BatchJob, 0, len(c.active)+c.finished.Len())
	for _, run := range c.active {
		jobs = append(jobs, run.snapshot())
	}
	for _, job := range c.finished.Values() {
		jobs = append(jobs, job.Clone())
	}
	c.mu.Unlock()
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Cancel asks a pending or running job to stop. The job ends as Failed with
// a "cancelled by user" note; mutations it already applied are kept.
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	run, ok := c.active[id]
	c.mu.Unlock()
	if ok && !run.snapshot().Status.Terminal() {
		run.cancel(ErrCancelled)
		return nil
	}
	if ok || c.finished.Contains(id) {
		return NewValidationError("jobId", "job already finished")
	}
	return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
}

// Await blocks until the job is terminal or ctx is done.
func (c *Coordinator) Await(ctx context.Context, id string) (*BatchJob, error) {
	c.mu.Lock()
	run, ok := c.active[id]
	c.mu.Unlock()
	if ok {
		select {
		case <-run.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.Job(id)
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires
// first, remaining jobs are cancelled and waited for.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	c.mu.Lock()
	for _, run := range c.active {
		run.cancel(ErrShuttingDown)
	}
	c.mu.Unlock()
	<-done
	return ctx.Err()
}

func (c *Coordinator) submit(kind JobKind, body func(context.Context, Progress) error) (*BatchJob, error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	run := &jobRun{
		job: &BatchJob{
			ID:        c.idgen.New(),
			Kind:      kind,
			Status:    StatusPending,
			CreatedAt: c.clock.Now(),
			Errors:    []ItemError{},
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel(ErrShuttingDown)
		return nil, ErrShuttingDown
	}
	c.active[run.job.ID] = run
	c.wg.Add(1)
	c.mu.Unlock()

	snap := run.snapshot()
	c.logger.Info("job submitted", "id", snap.ID, "kind", kind)
	c.publishUpdate(snap)

	go c.execute(ctx, run, body)
	return snap, nil
}

func (c *Coordinator) execute(ctx context.Context, run *jobRun, body func(context.Context, Progress) error) {
	defer c.wg.Done()

	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		c.finish(ctx, run, context.Cause(ctx), nil)
		return
	}
	defer func() { <-c.slots }()

	before, err := c.engine.Categories(ctx)
	if err != nil {
		c.logger.Warn("reading categories", "error", err)
	}

	c.publishUpdate(run.start(c.clock.Now()))

	err = body(ctx, run)
	if ctx.Err() != nil {
		err = context.Cause(ctx)
	}
	c.finish(ctx, run, err, before)
}

func (c *Coordinator) finish(ctx context.Context, run *jobRun, runErr error, before []string) {
	job := run.complete(c.clock.Now(), runErr)

	c.logger.Info("job finished", "id", job.ID, "kind", job.Kind, "status", job.Status,
		"processed", job.Processed, "failed", job.Failed, "skipped", job.Skipped)
	observeJob(job)

	if c.history != nil {
		if err := c.history.RecordJob(context.WithoutCancel(ctx), job); err != nil {
			c.logger.Error("recording job history", "id", job.ID, "error", err)
		}
	}

	c.publishUpdate(job)
	c.publisher.Publish(Event{
		Name:    EventJobCompleted,
		Payload: JobCompletedPayload{ResultText: job.ResultText(), Result: job.Clone()},
	})

	if job.StartedAt != nil {
		after, err := c.engine.Categories(context.WithoutCancel(ctx))
		if err != nil {
			c.logger.Warn("reading categories", "error", err)
		} else if !sameCategories(before, after) {
			c.publisher.Publish(Event{
				Name:    EventCategoryRefreshed,
				Payload: CategoryRefreshedPayload{Categories: after},
			})
		}
	}

	// The run stays visible as active until every event is out, so Await
	// never returns ahead of them.
	c.mu.Lock()
	delete(c.active, job.ID)
	c.finished.Add(job.ID, job)
	c.mu.Unlock()
	close(run.done)
}

func (c *Coordinator) publishUpdate(job *BatchJob) {
	c.publisher.Publish(Event{Name: EventJobUpdated, Payload: JobUpdatedPayload{Job: job}})
}

// jobRun is the mutable tracker behind one job. It implements Progress.
type jobRun struct {
	mu     sync.Mutex
	job    *BatchJob
	cancel context.CancelCauseFunc
	done   chan struct{}
}

var _ Progress = (*jobRun)(nil)

func (r *jobRun) snapshot() *BatchJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Clone()
}

func (r *jobRun) start(now time.Time) *BatchJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Status = StatusRunning
	r.job.StartedAt = &now
	return r.job.Clone()
}

// complete applies the terminal status mapping and returns the final snapshot.
func (r *jobRun) complete(now time.Time, runErr error) *BatchJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.job

	if runErr != nil {
		if rest := j.Total - j.Processed - j.Failed - j.Skipped; rest > 0 {
			j.Skipped += rest
		}
	}

	switch {
	case runErr != nil:
		j.Status = StatusFailed
		switch {
		case errors.Is(runErr, ErrCancelled):
			j.Note = ErrCancelled.Error()
		case errors.Is(runErr, ErrShuttingDown):
			j.Note = ErrShuttingDown.Error()
		default:
			j.Note = runErr.Error()
		}
	case j.Failed == 0:
		j.Status = StatusSucceeded
	case j.Processed > 0:
		j.Status = StatusPartiallyFailed
	default:
		j.Status = StatusFailed
	}
	j.FinishedAt = &now
	return j.Clone()
}

func (r *jobRun) AddTotal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Total += n
}

func (r *jobRun) Succeed(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Processed++
}

func (r *jobRun) Fail(item string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Failed++
	r.job.Errors = append(r.job.Errors, ItemError{Item: item, Message: err.Error()})
}

func (r *jobRun) Skip(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Skipped += n
}

func (r *jobRun) Annotate(note string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Note = note
}
