package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/adveritas/internal/logger"
)

// NewRedisClient connects using a redis:// URL
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

const (
	minReclaimIdle = 5 * time.Minute
	reclaimMargin  = 2 * time.Minute
)

// ReclaimIdleFor returns how long a delivery stays with its consumer before
// others may claim it. It must exceed the longest a job can run, otherwise a
// job still in progress is executed twice.
func ReclaimIdleFor(jobTimeout time.Duration) time.Duration {
	idle := jobTimeout + reclaimMargin
	if idle < minReclaimIdle {
		return minReclaimIdle
	}
	return idle
}

// RedisQueue is a durable queue on a Redis stream with a consumer group.
// Unacknowledged jobs of dead consumers are reclaimed after ReclaimIdle.
type RedisQueue struct {
	client      *redis.Client
	stream      string
	group       string
	consumer    string
	block       time.Duration
	ReclaimIdle time.Duration
	log         *logger.Logger

	initOnce    sync.Once
	initErr     error
	mu          sync.Mutex
	pending     []redis.XMessage
	lastReclaim time.Time
}

// NewRedisQueue creates a queue; consumer must be unique per process
func NewRedisQueue(client *redis.Client, stream, group, consumer string, log *logger.Logger) *RedisQueue {
	return &RedisQueue{
		client:      client,
		stream:      stream,
		group:       group,
		consumer:    consumer,
		block:       5 * time.Second,
		ReclaimIdle: minReclaimIdle,
		log:         logger.OrNop(log).With("service", "RedisQueue"),
	}
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	q.initOnce.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.initErr = fmt.Errorf("create consumer group: %w", err)
		}
	})
	return q.initErr
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"job": string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Delivery, error) {
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, ok, err := q.next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		job, err := decodeJob(msg)
		if err != nil {
			q.log.Warn("dropping malformed job", "message_id", msg.ID, "error", err)
			_ = q.client.XAck(ctx, q.stream, q.group, msg.ID).Err()
			continue
		}
		return &redisDelivery{queue: q, id: msg.ID, job: job}, nil
	}
}

// next returns a reclaimed message if one is waiting, otherwise blocks on
// new stream entries for up to the block interval
func (q *RedisQueue) next(ctx context.Context) (redis.XMessage, bool, error) {
	q.mu.Lock()
	if len(q.pending) == 0 && time.Since(q.lastReclaim) > q.ReclaimIdle/2 {
		q.lastReclaim = time.Now()
		msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  q.ReclaimIdle,
			Start:    "0-0",
			Count:    16,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			q.log.Warn("reclaim failed", "error", err)
		}
		q.pending = append(q.pending, msgs...)
	}
	if len(q.pending) > 0 {
		msg := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		return msg, true, nil
	}
	q.mu.Unlock()

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    q.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return redis.XMessage{}, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return redis.XMessage{}, false, ctx.Err()
		}
		return redis.XMessage{}, false, fmt.Errorf("xreadgroup: %w", err)
	}
	for _, s := range streams {
		if len(s.Messages) > 0 {
			return s.Messages[0], true, nil
		}
	}
	return redis.XMessage{}, false, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func decodeJob(msg redis.XMessage) (Job, error) {
	raw, ok := msg.Values["job"].(string)
	if !ok {
		return Job{}, fmt.Errorf("missing job field")
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, err
	}
	if job.Kind == "" {
		return Job{}, fmt.Errorf("missing job kind")
	}
	return job, nil
}

type redisDelivery struct {
	queue *RedisQueue
	id    string
	job   Job
}

func (d *redisDelivery) Job() Job { return d.job }

func (d *redisDelivery) Ack(ctx context.Context) error {
	return d.queue.client.XAck(ctx, d.queue.stream, d.queue.group, d.id).Err()
}
