package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is a channel-backed Queue, the default when no Redis URL is
// configured.
type Memory struct {
	ch        chan *Task
	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemory creates a Memory queue with the given buffer capacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{ch: make(chan *Task, capacity), closed: make(chan struct{})}
}

func (q *Memory) Enqueue(ctx context.Context, task *Task) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrClosed
	}
}

func (q *Memory) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case t := <-q.ch:
		return t, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		return nil, nil
	}
}

func (q *Memory) Len(ctx context.Context) (int, error) {
	return len(q.ch), nil
}

func (q *Memory) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

var _ Queue = (*Memory)(nil)
