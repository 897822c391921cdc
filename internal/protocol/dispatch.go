package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/memexlabs/memex/internal/logging"
)

// Handler executes one tool call against schema-checked params, returning
// an operation-specific payload.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Dispatcher routes Requests to registered Handlers and runs batches
// under Sequential/FailFast/Parallel scheduling.
type Dispatcher struct {
	handlers map[string]Handler
	logger   logging.Logger
}

// NewDispatcher builds an empty Dispatcher; register tools with Register.
func NewDispatcher(logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Dispatcher{handlers: map[string]Handler{}, logger: logger}
}

// Register binds a tool name to its handler.
func (d *Dispatcher) Register(tool string, h Handler) {
	d.handlers[tool] = h
}

// Dispatch runs a single request, recovering handler panics into an
// Internal protocol error rather than propagating them.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	h, ok := d.handlers[req.Tool]
	if !ok {
		return Response{Success: false, Error: &Error{Code: CodeUnknownTool, Message: fmt.Sprintf("unknown tool %q", req.Tool)}}
	}

	payload, err := d.invoke(ctx, h, req.Params)
	if err != nil {
		return Response{Success: false, Error: errorFrom(err)}
	}
	return Response{Success: true, Payload: payload, Message: "ok"}
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, params json.RawMessage) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("protocol handler panicked", map[string]interface{}{"panic": r, "stack": string(debug.Stack())})
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return h(ctx, params)
}

// DispatchBatch runs every operation in req under its Mode.
func (d *Dispatcher) DispatchBatch(ctx context.Context, req BatchRequest) BatchResponse {
	switch req.Mode {
	case FailFast:
		return d.dispatchFailFast(ctx, req)
	case Parallel:
		return d.dispatchParallel(ctx, req)
	default:
		return d.dispatchSequential(ctx, req)
	}
}

func (d *Dispatcher) runOne(ctx context.Context, op Operation) OperationResult {
	start := time.Now()
	resp := d.Dispatch(ctx, Request{Tool: op.Tool, Params: op.Params})
	return OperationResult{ID: op.ID, Success: resp.Success, Result: resp.Payload, Error: resp.Error, DurationMs: durationMs(start)}
}

func (d *Dispatcher) dispatchSequential(ctx context.Context, req BatchRequest) BatchResponse {
	start := time.Now()
	results := make([]OperationResult, 0, len(req.Operations))
	stats := BatchStats{Total: len(req.Operations)}
	for _, op := range req.Operations {
		r := d.runOne(ctx, op)
		results = append(results, r)
		if r.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	stats.DurationMs = durationMs(start)
	return BatchResponse{Results: results, Stats: stats}
}

func (d *Dispatcher) dispatchFailFast(ctx context.Context, req BatchRequest) BatchResponse {
	start := time.Now()
	results := make([]OperationResult, 0, len(req.Operations))
	stats := BatchStats{Total: len(req.Operations)}
	for _, op := range req.Operations {
		r := d.runOne(ctx, op)
		results = append(results, r)
		if r.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
			break
		}
	}
	stats.DurationMs = durationMs(start)
	return BatchResponse{Results: results, Stats: stats}
}

// dispatchParallel schedules operations respecting DependsOn edges,
// bounded by MaxParallel concurrent operations. An operation runs only
// once every operation it depends on has completed (successfully or
// not); a dependency that never runs (unknown id) is treated as
// immediately satisfied, since the batch cannot wait on it forever.
func (d *Dispatcher) dispatchParallel(ctx context.Context, req BatchRequest) BatchResponse {
	start := time.Now()
	maxParallel := req.MaxParallel
	if maxParallel <= 0 {
		maxParallel = len(req.Operations)
		if maxParallel == 0 {
			maxParallel = 1
		}
	}

	byID := make(map[string]Operation, len(req.Operations))
	remaining := make(map[string]int, len(req.Operations))
	dependents := make(map[string][]string, len(req.Operations))
	for _, op := range req.Operations {
		byID[op.ID] = op
		n := 0
		for _, dep := range op.DependsOn {
			if _, ok := byID[dep]; ok || containsOp(req.Operations, dep) {
				n++
				dependents[dep] = append(dependents[dep], op.ID)
			}
		}
		remaining[op.ID] = n
	}

	var mu sync.Mutex
	results := make(map[string]OperationResult, len(req.Operations))
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	ready := make(chan string, len(req.Operations))
	for _, op := range req.Operations {
		if remaining[op.ID] == 0 {
			ready <- op.ID
		}
	}

	// launch acquires a semaphore slot for the operation's own work and
	// releases it as soon as that work finishes — before recursing into
	// newly-ready dependents — so a single-slot semaphore can still drain
	// a dependency chain without deadlocking on itself.
	var launch func(id string)
	launch = func(id string) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()

			r := d.runOne(ctx, byID[id])
			<-sem

			mu.Lock()
			results[id] = r
			next := dependents[id]
			var toLaunch []string
			for _, depID := range next {
				remaining[depID]--
				if remaining[depID] == 0 {
					toLaunch = append(toLaunch, depID)
				}
			}
			mu.Unlock()
			for _, n := range toLaunch {
				launch(n)
			}
		}()
	}

	close(ready)
	for id := range ready {
		launch(id)
	}
	wg.Wait()

	ordered := make([]OperationResult, 0, len(req.Operations))
	stats := BatchStats{Total: len(req.Operations)}
	for _, op := range req.Operations {
		r, ok := results[op.ID]
		if !ok {
			continue // a cyclic depends_on graph left this operation unreachable
		}
		ordered = append(ordered, r)
		if r.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	stats.DurationMs = durationMs(start)
	return BatchResponse{Results: ordered, Stats: stats}
}

func containsOp(ops []Operation, id string) bool {
	for _, op := range ops {
		if op.ID == id {
			return true
		}
	}
	return false
}
