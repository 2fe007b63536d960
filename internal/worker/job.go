package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind names a pipeline stage a job triggers
type Kind string

const (
	KindTranscribe      Kind = "transcribe"
	KindExtractClaims   Kind = "extract_claims"
	KindFetchEvidence   Kind = "fetch_evidence"
	KindGenerateVerdict Kind = "generate_verdict"
)

// ErrQueueClosed is returned by queues after Close
var ErrQueueClosed = errors.New("queue closed")

// Job is a typed unit of stage work. Delivery is at-least-once, so handlers
// must tolerate running the same job more than once.
type Job struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	EntityID   uint              `json:"entity_id"`
	Params     map[string]string `json:"params,omitempty"`
	Attempt    int               `json:"attempt"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// NewJob builds a first-attempt job with a fresh id
func NewJob(kind Kind, entityID uint, params map[string]string) Job {
	return Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		EntityID:   entityID,
		Params:     params,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Param returns a parameter or ""
func (j Job) Param(key string) string {
	if j.Params == nil {
		return ""
	}
	return j.Params[key]
}

// BoolParam parses a boolean parameter; anything unparseable is false
func (j Job) BoolParam(key string) bool {
	b, err := strconv.ParseBool(j.Param(key))
	return err == nil && b
}

// Delivery is a job handed to a consumer. Ack removes it from the queue.
type Delivery interface {
	Job() Job
	Ack(ctx context.Context) error
}

// Queue carries jobs from triggers to workers
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Delivery, error)
	Close() error
}
