package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEnqueueDequeueRoundTrips(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	task := &Task{ID: "t1", EpisodeID: "ep-1", CreatedAt: time.Now()}
	require.NoError(t, q.Enqueue(context.Background(), task))

	got, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t1", got.ID)
}

func TestMemoryDequeueTimesOutWhenEmpty(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	got, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryLenReflectsQueueDepth(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	require.NoError(t, q.Enqueue(context.Background(), &Task{ID: "a"}))
	require.NoError(t, q.Enqueue(context.Background(), &Task{ID: "b"}))
	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryEnqueueAfterCloseFails(t *testing.T) {
	q := NewMemory(4)
	require.NoError(t, q.Close())
	err := q.Enqueue(context.Background(), &Task{ID: "a"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolProcessesEnqueuedTasks(t *testing.T) {
	q := NewMemory(8)
	defer q.Close()

	var handled atomic.Int64
	handler := func(ctx context.Context, task *Task) error {
		handled.Add(1)
		return nil
	}

	pool := NewPool(q, handler, WorkerConfig{WorkerCount: 2, DequeueTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), &Task{ID: "t"}))
	}

	assert.Eventually(t, func() bool { return handled.Load() == 5 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(5), pool.Processed())
}

func TestPoolRecoversHandlerPanic(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	handler := func(ctx context.Context, task *Task) error {
		panic("boom")
	}

	pool := NewPool(q, handler, WorkerConfig{WorkerCount: 1, DequeueTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.NoError(t, q.Enqueue(context.Background(), &Task{ID: "panics"}))

	assert.Eventually(t, func() bool { return pool.Failed() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPoolHandlerErrorCountsAsFailedNotProcessed(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	handler := func(ctx context.Context, task *Task) error {
		return assertError{}
	}

	pool := NewPool(q, handler, WorkerConfig{WorkerCount: 1, DequeueTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.NoError(t, q.Enqueue(context.Background(), &Task{ID: "fails"}))

	assert.Eventually(t, func() bool { return pool.Failed() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), pool.Processed())
}

type assertError struct{}

func (assertError) Error() string { return "handler error" }

func TestStartTwiceReturnsError(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()
	pool := NewPool(q, func(ctx context.Context, task *Task) error { return nil }, WorkerConfig{}, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()
	assert.Error(t, pool.Start(context.Background()))
}
