// Package queue implements the asynchronous pattern-extraction task
// queue used by episode completion: an in-memory channel-backed Queue
// by default, a Redis-list-backed Queue (LPUSH/BRPOP) when Redis is
// configured, and a worker pool that drains either one calling the
// same extraction path the inline fallback uses. Grounded on an
// orchestration.RedisTaskQueue and orchestration.TaskWorkerPool idiom.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Task is a unit of deferred pattern-extraction work: an episode that
// finished its synchronous lifecycle and needs its extraction pass run
// out of band.
type Task struct {
	ID        string    `json:"id"`
	EpisodeID string    `json:"episode_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler processes one dequeued task. Errors are recorded against the
// task but never propagated to the enqueuing caller.
type Handler func(ctx context.Context, task *Task) error

// Queue is the capability both the in-memory and Redis-backed
// implementations provide, matching a core.TaskQueue surface.
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	// Dequeue blocks until a task is available or timeout elapses,
	// returning (nil, nil) on timeout.
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

var ErrClosed = errors.New("queue: closed")

func marshal(t *Task) ([]byte, error) { return json.Marshal(t) }

func unmarshal(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
