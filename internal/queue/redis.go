package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis implements Queue using a Redis list: LPUSH to enqueue, BRPOP to
// block-wait on dequeue, grounded on a RedisTaskQueue idiom.
type Redis struct {
	client   *redis.Client
	queueKey string
}

// NewRedis creates a Redis-backed queue against the given list key.
func NewRedis(client *redis.Client, queueKey string) *Redis {
	if queueKey == "" {
		queueKey = "memex:extraction:queue"
	}
	return &Redis{client: client, queueKey: queueKey}
}

func (q *Redis) Enqueue(ctx context.Context, task *Task) error {
	data, err := marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	return q.client.LPush(ctx, q.queueKey, data).Err()
}

func (q *Redis) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("queue: unexpected BRPOP result format")
	}
	task, err := unmarshal([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("queue: unmarshal task: %w", err)
	}
	return task, nil
}

func (q *Redis) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: length: %w", err)
	}
	return int(n), nil
}

// Close is a no-op: the Redis client is owned and closed by the caller.
func (q *Redis) Close() error { return nil }

var _ Queue = (*Redis)(nil)
