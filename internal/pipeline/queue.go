package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is the transport that hands job ids from the enqueue path to the
// dispatcher. Enqueue is fire-and-forget; Dequeue blocks until a job id is
// available or the context ends.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context) (string, error)
}

const jobQueueKey = "jobs:queue"

// RedisQueue is a Redis-list-backed Queue shared between the api and worker
// processes.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue wraps an established Redis client.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// Enqueue pushes the job id onto the shared list.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, jobQueueKey, jobID).Err()
}

// Dequeue blocks on the shared list. The finite BRPOP timeout keeps the loop
// responsive to context cancellation.
func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := q.rdb.BRPop(ctx, 5*time.Second, jobQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return "", err
		}
		// res[0] is the list key, res[1] the job id.
		return res[1], nil
	}
}

// MemoryQueue is a channel-backed Queue for development and tests.
type MemoryQueue struct {
	ch chan string
}

// NewMemoryQueue creates a queue buffered to capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{ch: make(chan string, capacity)}
}

// Enqueue submits the job id without blocking on a consumer.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	default:
		return errors.New("queue full")
	}
}

// Dequeue blocks until a job id arrives or the context ends.
func (q *MemoryQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case jobID := <-q.ch:
		return jobID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
