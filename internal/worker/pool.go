package worker

import (
	"context"
	"sync"
)

// Task is a unit of work executed by the pool
type Task interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of a task
type Result interface {
	GetError() error
}

// Pool runs tasks on a fixed number of goroutines
type Pool struct {
	workers    int
	tasks      chan Task
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeTasks sync.Once
	closeOnce  sync.Once
}

// NewPool creates a pool with the given number of workers (minimum 1)
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		tasks:      make(chan Task, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			result := task.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task, blocking while all workers are busy.
// It returns false when the pool has been shut down.
func (p *Pool) Submit(task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- task:
		return true
	}
}

// Results streams task results. Callers that do not use Wait must drain it.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Wait stops accepting tasks, waits for the queued ones and returns all results
func (p *Pool) Wait() []Result {
	p.closeTasks.Do(func() { close(p.tasks) })

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}
	return results
}

// Close stops accepting tasks and waits for in-flight ones; results must be
// drained concurrently through Results
func (p *Pool) Close() {
	p.closeTasks.Do(func() { close(p.tasks) })
	p.wg.Wait()
	p.closeResults()
}

// Shutdown cancels running tasks and stops the workers immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
