package worker

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process channel queue. Jobs do not survive a restart.
type MemoryQueue struct {
	jobs      chan Job
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a queue buffering up to buffer jobs
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryQueue{
		jobs:   make(chan Job, buffer),
		closed: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Delivery, error) {
	select {
	case job := <-q.jobs:
		return memoryDelivery{job: job}, nil
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of waiting jobs
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

type memoryDelivery struct {
	job Job
}

func (d memoryDelivery) Job() Job                    { return d.job }
func (d memoryDelivery) Ack(ctx context.Context) error { return nil }
