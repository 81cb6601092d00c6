package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kevinnadar22/mongovault/internal/domain"
)

// Orchestrator accepts backup and restore requests, hands each admitted job
// to a runner, and bounds concurrency. Queued jobs acquire slots in
// submission order. The job table is the only shared structure: runners
// report outcomes back here, callers only ever read snapshots.
type Orchestrator struct {
	store     domain.ArchiveStore
	tools     map[string]domain.Tool
	runner    *Runner
	notifiers []domain.Notifier
	logger    Logger

	maxConcurrent int

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	queue   []string
	running int

	rootCtx context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	wg      sync.WaitGroup
}

type jobEntry struct {
	job     domain.Job
	tool    domain.Tool
	archive domain.Archive
	cancel  context.CancelFunc
}

func NewOrchestrator(
	store domain.ArchiveStore,
	tools map[string]domain.Tool,
	runner *Runner,
	notifiers []domain.Notifier,
	logger Logger,
	maxConcurrent int,
) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		store:         store,
		tools:         tools,
		runner:        runner,
		notifiers:     notifiers,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		jobs:          make(map[string]*jobEntry),
		rootCtx:       ctx,
		cancel:        cancel,
		wake:          make(chan struct{}, 1),
	}

	o.wg.Add(1)
	go o.dispatch()

	return o
}

// SubmitBackup creates one pending job per database. All names are validated
// before any job is created.
func (o *Orchestrator) SubmitBackup(databases []string) ([]domain.Job, error) {
	if len(databases) == 0 {
		return nil, fmt.Errorf("no databases given")
	}

	tools := make([]domain.Tool, 0, len(databases))
	for _, name := range databases {
		t, ok := o.tools[name]
		if !ok {
			return nil, fmt.Errorf("database %s: %w", name, domain.ErrNotFound)
		}
		tools = append(tools, t)
	}

	o.mu.Lock()
	jobs := make([]domain.Job, 0, len(databases))
	for i, name := range databases {
		entry := &jobEntry{
			job: domain.Job{
				ID:          uuid.NewString(),
				Kind:        domain.JobKindBackup,
				Database:    name,
				Status:      domain.JobPending,
				SubmittedAt: time.Now(),
			},
			tool: tools[i],
		}
		o.jobs[entry.job.ID] = entry
		o.queue = append(o.queue, entry.job.ID)
		jobs = append(jobs, entry.job)
	}
	o.mu.Unlock()

	o.nudge()
	return jobs, nil
}

// SubmitRestore creates one pending restore job. An unknown archive or
// database fails fast and records nothing.
func (o *Orchestrator) SubmitRestore(ctx context.Context, archiveID, targetDatabase string) (domain.Job, error) {
	t, ok := o.tools[targetDatabase]
	if !ok {
		return domain.Job{}, fmt.Errorf("database %s: %w", targetDatabase, domain.ErrNotFound)
	}

	archive, err := o.findArchive(ctx, archiveID)
	if err != nil {
		return domain.Job{}, err
	}

	entry := &jobEntry{
		job: domain.Job{
			ID:          uuid.NewString(),
			Kind:        domain.JobKindRestore,
			Database:    targetDatabase,
			ArchiveID:   archiveID,
			Status:      domain.JobPending,
			SubmittedAt: time.Now(),
		},
		tool:    t,
		archive: archive,
	}

	o.mu.Lock()
	o.jobs[entry.job.ID] = entry
	o.queue = append(o.queue, entry.job.ID)
	job := entry.job
	o.mu.Unlock()

	o.nudge()
	return job, nil
}

func (o *Orchestrator) Status(jobID string) (domain.Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return entry.job, nil
}

// Jobs returns snapshots of all known jobs in submission order.
func (o *Orchestrator) Jobs() []domain.Job {
	o.mu.Lock()
	jobs := make([]domain.Job, 0, len(o.jobs))
	for _, entry := range o.jobs {
		jobs = append(jobs, entry.job)
	}
	o.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.Before(jobs[j].SubmittedAt)
	})
	return jobs
}

// Archives enumerates the store, ordered by creation time.
func (o *Orchestrator) Archives(ctx context.Context) ([]domain.Archive, error) {
	return o.store.List(ctx)
}

// Cancel stops a job. Pending jobs terminate immediately; running jobs get
// their subprocess signalled. Cancelling a terminal job is a no-op.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()

	entry, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}

	switch {
	case entry.job.Status.Terminal():
		o.mu.Unlock()
		return nil
	case entry.job.Status == domain.JobPending:
		entry.job.Status = domain.JobCancelled
		entry.job.FinishedAt = time.Now()
		snapshot := entry.job
		o.mu.Unlock()
		o.logger.Infof("job %s cancelled before start", jobID)
		o.notify(snapshot)
		return nil
	default:
		cancel := entry.cancel
		o.mu.Unlock()
		cancel()
		return nil
	}
}

// Stop cancels running jobs and waits for the dispatcher and runners to
// drain. Pending jobs stay pending; the process is going away.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) dispatch() {
	defer o.wg.Done()

	for {
		select {
		case <-o.rootCtx.Done():
			return
		case <-o.wake:
		}

		o.mu.Lock()
		for o.running < o.maxConcurrent && len(o.queue) > 0 {
			id := o.queue[0]
			o.queue = o.queue[1:]

			entry := o.jobs[id]
			if entry.job.Status != domain.JobPending {
				// Cancelled while queued.
				continue
			}

			entry.job.Status = domain.JobRunning
			entry.job.StartedAt = time.Now()

			jobCtx, cancel := context.WithCancel(o.rootCtx)
			entry.cancel = cancel

			o.running++
			o.wg.Add(1)
			go o.execute(jobCtx, entry)
		}
		o.mu.Unlock()
	}
}

func (o *Orchestrator) execute(ctx context.Context, entry *jobEntry) {
	defer o.wg.Done()

	o.mu.Lock()
	job := entry.job
	o.mu.Unlock()

	o.logger.Infof("job %s: %s of %s running", job.ID, job.Kind, job.Database)

	var res Result
	switch job.Kind {
	case domain.JobKindBackup:
		res = o.runner.RunBackup(ctx, entry.tool)
	case domain.JobKindRestore:
		res = o.runner.RunRestore(ctx, entry.tool, entry.archive)
	}

	o.mu.Lock()
	if !entry.job.Status.Terminal() {
		entry.job.Status = res.Status
		entry.job.Failure = res.Failure
		entry.job.Error = res.Error
		entry.job.Bytes = res.Bytes
		if res.ArchiveID != "" {
			entry.job.ArchiveID = res.ArchiveID
		}
		entry.job.FinishedAt = time.Now()
	}
	snapshot := entry.job
	o.running--
	o.mu.Unlock()

	o.nudge()

	switch snapshot.Status {
	case domain.JobSucceeded:
		o.logger.Infof("job %s: %s of %s succeeded", snapshot.ID, snapshot.Kind, snapshot.Database)
	case domain.JobCancelled:
		o.logger.Infof("job %s: %s of %s cancelled", snapshot.ID, snapshot.Kind, snapshot.Database)
	default:
		o.logger.Errorf("job %s: %s of %s failed (%s): %s",
			snapshot.ID, snapshot.Kind, snapshot.Database, snapshot.Failure, snapshot.Error)
	}

	o.notify(snapshot)
}

func (o *Orchestrator) findArchive(ctx context.Context, archiveID string) (domain.Archive, error) {
	archives, err := o.store.List(ctx)
	if err != nil {
		return domain.Archive{}, fmt.Errorf("list archives: %w", err)
	}

	for _, a := range archives {
		if a.ID == archiveID {
			return a, nil
		}
	}
	return domain.Archive{}, fmt.Errorf("archive %s: %w", archiveID, domain.ErrNotFound)
}

func (o *Orchestrator) nudge() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) notify(job domain.Job) {
	for _, n := range o.notifiers {
		if err := n.NotifyJob(context.Background(), job); err != nil {
			o.logger.Warnf("notification failed: %v", err)
		}
	}
}
