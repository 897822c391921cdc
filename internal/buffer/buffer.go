// Package buffer implements a step-batching buffer: one buffer per
// open episode, amortizing durable-store I/O by batching execution
// steps on a size/time trigger. Grounded on an orchestration.TaskWorker
// batching loop (mutex-protected slice, drain-and-reset-on-flush)
// generalized to per-episode buffers keyed by episode ID.
package buffer

import (
	"sync"
	"time"

	"github.com/memexlabs/memex/internal/episode"
)

// Config tunes flush triggers.
type Config struct {
	MaxBatchSize  int
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{MaxBatchSize: 20, FlushInterval: 2 * time.Second}
}

// stepBuffer buffers steps for a single open episode.
type stepBuffer struct {
	mu        sync.Mutex
	steps     []episode.ExecutionStep
	lastFlush time.Time
}

func newStepBuffer() *stepBuffer {
	return &stepBuffer{lastFlush: time.Now()}
}

func (b *stepBuffer) addStep(s episode.ExecutionStep) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.steps = append(b.steps, s)
}

func (b *stepBuffer) shouldFlush(cfg Config) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.steps) == 0 {
		return false
	}
	if len(b.steps) >= cfg.MaxBatchSize {
		return true
	}
	return time.Since(b.lastFlush) >= cfg.FlushInterval
}

// takeSteps atomically drains the buffer and resets the flush timer.
// Insertion order is preserved.
func (b *stepBuffer) takeSteps() []episode.ExecutionStep {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.steps
	b.steps = nil
	b.lastFlush = time.Now()
	return out
}

func (b *stepBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.steps)
}

// Manager owns one stepBuffer per open episode.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	buffers map[string]*stepBuffer
}

// NewManager creates a buffer Manager.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, buffers: map[string]*stepBuffer{}}
}

func (m *Manager) bufferFor(episodeID string) *stepBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[episodeID]
	if !ok {
		b = newStepBuffer()
		m.buffers[episodeID] = b
	}
	return b
}

// AddStep appends a step to episodeID's buffer without persisting it.
func (m *Manager) AddStep(episodeID string, s episode.ExecutionStep) {
	m.bufferFor(episodeID).addStep(s)
}

// ShouldFlush reports whether episodeID's buffer is due for a flush.
func (m *Manager) ShouldFlush(episodeID string) bool {
	return m.bufferFor(episodeID).shouldFlush(m.cfg)
}

// TakeSteps atomically drains episodeID's buffer.
func (m *Manager) TakeSteps(episodeID string) []episode.ExecutionStep {
	return m.bufferFor(episodeID).takeSteps()
}

// Len reports how many steps are currently buffered for episodeID.
func (m *Manager) Len(episodeID string) int {
	return m.bufferFor(episodeID).len()
}

// Discard drops episodeID's buffer entirely, e.g. once the episode is
// complete and its steps are durably flushed.
func (m *Manager) Discard(episodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, episodeID)
}
