package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	_ = q.Enqueue(ctx, NewJob(KindExtractClaims, 1, nil))
	_ = q.Enqueue(ctx, NewJob(KindFetchEvidence, 2, nil))
	if q.Len() != 2 {
		t.Fatalf("expected 2 jobs, got %d", q.Len())
	}

	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Job().Kind != KindExtractClaims || d.Job().EntityID != 1 {
		t.Errorf("unexpected first job %+v", d.Job())
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(1)
	_ = q.Close()
	if err := q.Enqueue(context.Background(), NewJob(KindTranscribe, 1, nil)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestJobParams(t *testing.T) {
	j := NewJob(KindExtractClaims, 7, map[string]string{"overwrite": "true"})
	if j.ID == "" || j.Attempt != 1 {
		t.Errorf("unexpected job %+v", j)
	}
	if !j.BoolParam("overwrite") {
		t.Error("expected overwrite param")
	}
	if j.BoolParam("force") || j.Param("missing") != "" {
		t.Error("missing params should be zero values")
	}
}

func runUntil(t *testing.T, r *Runner, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			t.Fatal("condition not reached")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_Dispatch(t *testing.T) {
	q := NewMemoryQueue(8)
	r := NewRunner(q, 2, 3, nil)

	var mu sync.Mutex
	seen := map[Kind][]uint{}
	for _, k := range []Kind{KindTranscribe, KindExtractClaims} {
		kind := k
		r.Register(kind, func(ctx context.Context, job Job) error {
			mu.Lock()
			defer mu.Unlock()
			seen[kind] = append(seen[kind], job.EntityID)
			return nil
		})
	}

	ctx := context.Background()
	_ = q.Enqueue(ctx, NewJob(KindTranscribe, 1, nil))
	_ = q.Enqueue(ctx, NewJob(KindExtractClaims, 2, nil))

	runUntil(t, r, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen[KindTranscribe]) == 1 && len(seen[KindExtractClaims]) == 1
	})
}

func TestRunner_RetriesTransientFailure(t *testing.T) {
	q := NewMemoryQueue(8)
	r := NewRunner(q, 1, 5, nil)
	r.BackoffInitial = time.Millisecond
	r.BackoffMax = 5 * time.Millisecond

	var calls, lastAttempt int32
	r.Register(KindFetchEvidence, func(ctx context.Context, job Job) error {
		n := atomic.AddInt32(&calls, 1)
		atomic.StoreInt32(&lastAttempt, int32(job.Attempt))
		if n < 3 {
			return errors.New("timeout")
		}
		return nil
	})

	_ = q.Enqueue(context.Background(), NewJob(KindFetchEvidence, 9, nil))
	runUntil(t, r, func() bool { return atomic.LoadInt32(&calls) == 3 })

	if atomic.LoadInt32(&lastAttempt) != 3 {
		t.Errorf("expected attempt counter 3, got %d", lastAttempt)
	}
}

func TestRunner_PermanentNotRetried(t *testing.T) {
	q := NewMemoryQueue(8)
	r := NewRunner(q, 1, 5, nil)
	r.BackoffInitial = time.Millisecond

	var calls int32
	r.Register(KindGenerateVerdict, func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("invalid transition"))
	})
	_ = q.Enqueue(context.Background(), NewJob(KindGenerateVerdict, 1, nil))

	runUntil(t, r, func() bool { return atomic.LoadInt32(&calls) >= 1 })
	time.Sleep(20 * time.Millisecond)
	if c := atomic.LoadInt32(&calls); c != 1 {
		t.Errorf("expected 1 call, got %d", c)
	}
}

func TestRunner_RecoversPanic(t *testing.T) {
	q := NewMemoryQueue(8)
	r := NewRunner(q, 1, 1, nil)

	var calls int32
	r.Register(KindTranscribe, func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
		return nil
	})
	ctx := context.Background()
	_ = q.Enqueue(ctx, NewJob(KindTranscribe, 1, nil))
	_ = q.Enqueue(ctx, NewJob(KindTranscribe, 2, nil))

	runUntil(t, r, func() bool { return atomic.LoadInt32(&calls) == 2 })
}
