package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sevigo/devflow/internal/core"
)

// ErrQueueFull is returned by Dispatch when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full, cannot accept new review job")

// ErrDispatcherStopped is returned by Dispatch after Stop.
var ErrDispatcherStopped = errors.New("dispatcher is stopped")

// Dispatcher implements core.JobDispatcher with a fixed pool of worker
// goroutines reading from a bounded queue.
type Dispatcher struct {
	baseCtx    context.Context
	reviewJob  core.Job
	jobQueue   chan *core.PullRequestEvent
	maxWorkers int
	jobTimeout time.Duration
	logger     *slog.Logger

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher starts maxWorkers workers (at least one) fed by a queue of
// queueSize events. Jobs run under ctx, each with its own jobTimeout when positive.
func NewDispatcher(ctx context.Context, reviewJob core.Job, maxWorkers, queueSize int, jobTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &Dispatcher{
		baseCtx:    context.WithoutCancel(ctx),
		reviewJob:  reviewJob,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *core.PullRequestEvent, queueSize),
		jobTimeout: jobTimeout,
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *Dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

func (d *Dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("starting review worker", "id", workerID)

	for event := range d.jobQueue {
		d.processEvent(workerID, event)
	}

	d.logger.Debug("shutting down review worker", "id", workerID)
}

func (d *Dispatcher) processEvent(workerID int, event *core.PullRequestEvent) {
	d.logger.Info("worker processing job",
		"worker_id", workerID,
		"repo", event.RepoFullName,
		"pr", event.PRNumber,
	)

	ctx := d.baseCtx
	if d.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.jobTimeout)
		defer cancel()
	}

	// ReviewJob logs its own failures with the stage attached.
	if _, err := d.reviewJob.Run(ctx, event); err != nil {
		d.logger.Debug("queued review ended with error",
			"repo", event.RepoFullName,
			"pr", event.PRNumber,
			"error", err,
		)
	}
}

// Dispatch queues an event for a worker without blocking.
func (d *Dispatcher) Dispatch(_ context.Context, event *core.PullRequestEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.jobQueue <- event:
		d.logger.Info("queued code review job", "repo", event.RepoFullName, "pr", event.PRNumber)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued jobs to finish. It is safe to
// call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	d.wg.Wait()
	d.logger.Info("all review jobs have finished")
}
