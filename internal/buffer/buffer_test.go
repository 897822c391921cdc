package buffer

import (
	"testing"
	"time"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/stretchr/testify/assert"
)

func step(n int) episode.ExecutionStep {
	return episode.ExecutionStep{Number: n, Tool: "search"}
}

func TestEmptyBufferDoesNotFlush(t *testing.T) {
	m := NewManager(DefaultConfig())
	assert.False(t, m.ShouldFlush("ep-1"), "empty step buffer does not flush")
}

func TestFlushTriggeredBySize(t *testing.T) {
	cfg := Config{MaxBatchSize: 2, FlushInterval: time.Hour}
	m := NewManager(cfg)
	m.AddStep("ep-1", step(1))
	assert.False(t, m.ShouldFlush("ep-1"))
	m.AddStep("ep-1", step(2))
	assert.True(t, m.ShouldFlush("ep-1"))
}

func TestFlushTriggeredByElapsedTime(t *testing.T) {
	cfg := Config{MaxBatchSize: 1000, FlushInterval: time.Millisecond}
	m := NewManager(cfg)
	m.AddStep("ep-1", step(1))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, m.ShouldFlush("ep-1"))
}

func TestTakeStepsDrainsAndPreservesOrder(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.AddStep("ep-1", step(1))
	m.AddStep("ep-1", step(2))
	m.AddStep("ep-1", step(3))

	taken := m.TakeSteps("ep-1")
	assert.Equal(t, []int{1, 2, 3}, []int{taken[0].Number, taken[1].Number, taken[2].Number})
	assert.Equal(t, 0, m.Len("ep-1"))
}

func TestTakeStepsResetsFlushTimer(t *testing.T) {
	cfg := Config{MaxBatchSize: 1000, FlushInterval: 10 * time.Millisecond}
	m := NewManager(cfg)
	m.AddStep("ep-1", step(1))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, m.ShouldFlush("ep-1"))
	_ = m.TakeSteps("ep-1")

	m.AddStep("ep-1", step(2))
	assert.False(t, m.ShouldFlush("ep-1"), "flush timer should have reset on take")
}

func TestBuffersAreIsolatedPerEpisode(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.AddStep("ep-1", step(1))
	assert.Equal(t, 0, m.Len("ep-2"))
	assert.Equal(t, 1, m.Len("ep-1"))
}

func TestDiscardRemovesBuffer(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.AddStep("ep-1", step(1))
	m.Discard("ep-1")
	assert.Equal(t, 0, m.Len("ep-1"))
}
