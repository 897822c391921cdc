package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memexlabs/memex/internal/errs"
)

func echoHandler(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return string(params), nil
}

func failHandler(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return nil, errs.Wrap("test.fail", errs.KindValidationFailed, errors.New("bad input"))
}

func panicHandler(ctx context.Context, params json.RawMessage) (interface{}, error) {
	panic("boom")
}

func TestDispatchUnknownToolReturnsUnknownToolCode(t *testing.T) {
	d := NewDispatcher(nil)
	resp := d.Dispatch(context.Background(), Request{Tool: "missing"})
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnknownTool, resp.Error.Code)
}

func TestDispatchSuccessReturnsPayload(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("echo", echoHandler)
	resp := d.Dispatch(context.Background(), Request{Tool: "echo", Params: json.RawMessage(`"hi"`)})
	assert.True(t, resp.Success)
	assert.Equal(t, `"hi"`, resp.Payload)
}

func TestDispatchMapsValidationFailureToBadParams(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("fail", failHandler)
	resp := d.Dispatch(context.Background(), Request{Tool: "fail"})
	assert.False(t, resp.Success)
	assert.Equal(t, CodeBadParams, resp.Error.Code)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("panics", panicHandler)
	resp := d.Dispatch(context.Background(), Request{Tool: "panics"})
	assert.False(t, resp.Success)
	assert.Equal(t, CodeInternal, resp.Error.Code)
}

func TestBatchSequentialRunsAllDespiteFailures(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("echo", echoHandler)
	d.Register("fail", failHandler)

	resp := d.DispatchBatch(context.Background(), BatchRequest{
		Mode: Sequential,
		Operations: []Operation{
			{ID: "a", Tool: "echo"},
			{ID: "b", Tool: "fail"},
			{ID: "c", Tool: "echo"},
		},
	})
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 2, resp.Stats.Succeeded)
	assert.Equal(t, 1, resp.Stats.Failed)
}

func TestBatchFailFastStopsAtFirstFailure(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("echo", echoHandler)
	d.Register("fail", failHandler)

	resp := d.DispatchBatch(context.Background(), BatchRequest{
		Mode: FailFast,
		Operations: []Operation{
			{ID: "a", Tool: "echo"},
			{ID: "b", Tool: "fail"},
			{ID: "c", Tool: "echo"},
		},
	})
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, "b", resp.Results[1].ID)
	assert.Equal(t, 1, resp.Stats.Succeeded)
	assert.Equal(t, 1, resp.Stats.Failed)
}

func TestBatchParallelRespectsDependsOnOrder(t *testing.T) {
	d := NewDispatcher(nil)
	rec := &dependencyOrderRecorder{}
	d.Register("record_a", rec.recordingHandler("a"))
	d.Register("record_b", rec.recordingHandler("b"))
	d.Register("record_c", rec.recordingHandler("c"))

	resp := d.DispatchBatch(context.Background(), BatchRequest{
		Mode:        Parallel,
		MaxParallel: 1,
		Operations: []Operation{
			{ID: "a", Tool: "record_a"},
			{ID: "b", Tool: "record_b", DependsOn: []string{"a"}},
			{ID: "c", Tool: "record_c", DependsOn: []string{"b"}},
		},
	})

	require.Len(t, resp.Results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rec.order)
}

func TestBatchParallelBoundedByMaxParallel(t *testing.T) {
	d := NewDispatcher(nil)
	tracker := newConcurrencyTracker()
	d.Register("slow", tracker.handler)

	ops := make([]Operation, 8)
	for i := range ops {
		ops[i] = Operation{ID: string(rune('a' + i)), Tool: "slow"}
	}

	resp := d.DispatchBatch(context.Background(), BatchRequest{Mode: Parallel, MaxParallel: 2, Operations: ops})
	assert.Len(t, resp.Results, 8)
	assert.LessOrEqual(t, tracker.maxObserved, 2)
}

type dependencyOrderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *dependencyOrderRecorder) recordingHandler(label string) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		r.mu.Lock()
		r.order = append(r.order, label)
		r.mu.Unlock()
		return nil, nil
	}
}

type concurrencyTracker struct {
	mu          chan struct{}
	current     int
	maxObserved int
}

func newConcurrencyTracker() *concurrencyTracker {
	t := &concurrencyTracker{mu: make(chan struct{}, 1)}
	t.mu <- struct{}{}
	return t
}

func (c *concurrencyTracker) handler(ctx context.Context, params json.RawMessage) (interface{}, error) {
	<-c.mu
	c.current++
	if c.current > c.maxObserved {
		c.maxObserved = c.current
	}
	c.mu <- struct{}{}

	time.Sleep(5 * time.Millisecond)

	<-c.mu
	c.current--
	c.mu <- struct{}{}
	return nil, nil
}
