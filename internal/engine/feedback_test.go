package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memexlabs/memex/internal/pattern"
)

func TestUpdateHeuristicFeedbackRecomputesConfidence(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	h := &pattern.Heuristic{ID: "h-1", Condition: "flaky test", Action: "retry once", CreatedAt: time.Now()}
	require.NoError(t, e.cfg.Durable.StoreHeuristic(ctx, h))

	require.NoError(t, e.UpdateHeuristicFeedback(ctx, "h-1", "ep-1", true))
	require.NoError(t, e.UpdateHeuristicFeedback(ctx, "h-1", "ep-2", true))
	require.NoError(t, e.UpdateHeuristicFeedback(ctx, "h-1", "ep-3", false))

	got, err := e.cfg.Durable.GetHeuristic(ctx, "h-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Evidence.SampleSize)
	assert.InDelta(t, 2.0/3.0, got.Evidence.SuccessRate, 1e-9)
	assert.InDelta(t, pattern.Confidence(2.0/3.0, 3), got.Confidence, 1e-9)
}

func TestUpdateHeuristicFeedbackUnknownIDFails(t *testing.T) {
	e := newTestEngine(t)
	err := e.UpdateHeuristicFeedback(context.Background(), "missing", "ep-1", true)
	require.Error(t, err)
}
