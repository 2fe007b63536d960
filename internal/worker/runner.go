package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ppiankov/adveritas/internal/logger"
)

// Handler executes one job. Returning an error schedules a retry unless the
// error is Permanent or the job ran out of attempts.
type Handler func(ctx context.Context, job Job) error

// Runner consumes a queue and dispatches jobs to handlers on a worker pool
type Runner struct {
	queue       Queue
	workers     int
	maxAttempts int
	log         *logger.Logger

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	mu       sync.RWMutex
	handlers map[Kind]Handler
	retries  sync.WaitGroup
	stop     <-chan struct{}
}

// NewRunner creates a runner with the given concurrency
func NewRunner(queue Queue, workers, maxAttempts int, log *logger.Logger) *Runner {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Runner{
		queue:          queue,
		workers:        workers,
		maxAttempts:    maxAttempts,
		log:            logger.OrNop(log).With("service", "Runner"),
		BackoffInitial: time.Second,
		BackoffMax:     30 * time.Second,
		handlers:       make(map[Kind]Handler),
	}
}

// Register binds a handler to a job kind
func (r *Runner) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

func (r *Runner) handler(kind Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Run consumes jobs until ctx is cancelled or the queue is closed. In-flight
// jobs are allowed to finish before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.stop = ctx.Done()
	pool := NewPool(r.workers)
	pool.Start()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for res := range pool.Results() {
			if err := res.GetError(); err != nil {
				r.log.Debug("job finished with error", "error", err)
			}
		}
	}()

	r.log.Info("runner started", "workers", r.workers, "max_attempts", r.maxAttempts)

	var runErr error
	for {
		d, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				break
			}
			r.log.Warn("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if !pool.Submit(&deliveryTask{runner: r, delivery: d}) {
			runErr = fmt.Errorf("pool stopped")
			break
		}
	}

	pool.Close()
	<-drained
	r.retries.Wait()
	r.log.Info("runner stopped")
	return runErr
}

type deliveryTask struct {
	runner   *Runner
	delivery Delivery
}

type taskResult struct {
	err error
}

func (r taskResult) GetError() error { return r.err }

func (t *deliveryTask) Execute(ctx context.Context) Result {
	return taskResult{err: t.runner.process(ctx, t.delivery)}
}

// process runs one delivery and settles it: ack on success, re-enqueue with
// backoff on a retriable failure, ack and drop otherwise
func (r *Runner) process(ctx context.Context, d Delivery) (err error) {
	job := d.Job()
	log := r.log.With("job_id", job.ID, "kind", job.Kind, "entity_id", job.EntityID, "attempt", job.Attempt)

	h, ok := r.handler(job.Kind)
	if !ok {
		log.Error("no handler registered")
		_ = d.Ack(ctx)
		return fmt.Errorf("no handler for %s", job.Kind)
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("job panicked", "panic", rec, "stack", string(debug.Stack()))
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		err = h(ctx, job)
	}()

	if err == nil {
		log.Debug("job done")
		return d.Ack(ctx)
	}

	if IsPermanent(err) || job.Attempt >= r.maxAttempts {
		log.Error("job failed permanently", "error", err)
		_ = d.Ack(ctx)
		return err
	}

	delay := Backoff(job.Attempt, r.BackoffInitial, r.BackoffMax)
	log.Warn("job failed, retrying", "error", err, "delay", delay)
	r.retries.Add(1)
	go func() {
		defer r.retries.Done()
		select {
		case <-r.stop:
			// The original delivery stays unacknowledged and is redelivered
			// by durable queues.
			return
		case <-time.After(delay):
		}
		next := job
		next.Attempt++
		if qerr := r.queue.Enqueue(context.Background(), next); qerr != nil {
			log.Error("re-enqueue failed", "error", qerr)
			return
		}
		_ = d.Ack(context.Background())
	}()
	return err
}
