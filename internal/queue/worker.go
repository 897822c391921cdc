package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memexlabs/memex/internal/logging"
)

// WorkerConfig tunes the worker pool.
type WorkerConfig struct {
	WorkerCount     int
	DequeueTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{WorkerCount: 4, DequeueTimeout: 5 * time.Second, ShutdownTimeout: 10 * time.Second}
}

// Pool drains a Queue with a fixed number of concurrent goroutines,
// calling Handler on each dequeued task. Handler panics are recovered
// and counted as failures, never propagated, matching a
// TaskWorkerPool.executeHandler idiom.
type Pool struct {
	queue   Queue
	handler Handler
	cfg     WorkerConfig
	logger  logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	running atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64
}

func NewPool(q Queue, handler Handler, cfg WorkerConfig, logger logging.Logger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerConfig().WorkerCount
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = DefaultWorkerConfig().DequeueTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultWorkerConfig().ShutdownTimeout
	}
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Pool{queue: q, handler: handler, cfg: cfg, logger: logger}
}

// Start launches the worker goroutines; it returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	if p.running.Swap(true) {
		return fmt.Errorf("queue: worker pool already running")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(workerCtx, i)
	}
	return nil
}

// Stop cancels the workers and waits up to ShutdownTimeout for them to drain.
func (p *Pool) Stop() error {
	if !p.running.Load() {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.running.Store(false)
		return nil
	case <-time.After(p.cfg.ShutdownTimeout):
		return fmt.Errorf("queue: shutdown timeout, workers may still be running")
	}
}

func (p *Pool) Processed() int64 { return p.processed.Load() }
func (p *Pool) Failed() int64    { return p.failed.Load() }

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.queue.Dequeue(ctx, p.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("queue dequeue error", map[string]interface{}{"worker": id, "error": err.Error()})
			continue
		}
		if task == nil {
			continue
		}
		p.process(ctx, task)
	}
}

func (p *Pool) process(ctx context.Context, task *Task) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("extraction task handler panicked", map[string]interface{}{
				"task_id": task.ID, "episode_id": task.EpisodeID, "panic": r, "stack": string(debug.Stack()),
			})
		}
	}()

	if err := p.handler(ctx, task); err != nil {
		p.failed.Add(1)
		p.logger.Warn("extraction task failed", map[string]interface{}{
			"task_id": task.ID, "episode_id": task.EpisodeID, "error": err.Error(),
		})
		return
	}
	p.processed.Add(1)
}
