package episode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsComplete(t *testing.T) {
	e := &Episode{}
	assert.False(t, e.IsComplete())

	now := time.Now()
	e.EndTime = &now
	assert.False(t, e.IsComplete())

	e.Outcome = &Outcome{Kind: OutcomeSuccess}
	assert.True(t, e.IsComplete())
}

func TestNextStepNumberMonotonic(t *testing.T) {
	e := &Episode{}
	require.Equal(t, 1, e.NextStepNumber())
	e.Steps = append(e.Steps, ExecutionStep{Number: 1})
	require.Equal(t, 2, e.NextStepNumber())
}

func TestValidateStructureRejectsEmptyDescription(t *testing.T) {
	e := &Episode{Description: "   "}
	err := ValidateStructure(e)
	require.Error(t, err)
}

func TestValidateStructureRejectsNonMonotonicSteps(t *testing.T) {
	e := &Episode{
		Description: "do the thing",
		Steps: []ExecutionStep{
			{Number: 1},
			{Number: 3},
		},
	}
	require.Error(t, ValidateStructure(e))
}

func TestValidateStructureAcceptsWellFormed(t *testing.T) {
	e := &Episode{
		Description: "implement auth",
		Steps: []ExecutionStep{
			{Number: 1}, {Number: 2}, {Number: 3},
		},
	}
	require.NoError(t, ValidateStructure(e))
}

func TestSubtaskFraction(t *testing.T) {
	o := Outcome{Kind: OutcomePartialSuccess, Completed: []string{"a", "b"}, Failed: []string{"c"}}
	assert.InDelta(t, 2.0/3.0, o.SubtaskFraction(), 1e-9)

	assert.Equal(t, 1.0, Outcome{Kind: OutcomeSuccess}.SubtaskFraction())
	assert.Equal(t, 0.0, Outcome{Kind: OutcomeFailure}.SubtaskFraction())
}

func TestErrorRateAndToolDiversity(t *testing.T) {
	e := &Episode{
		Steps: []ExecutionStep{
			{Number: 1, Tool: "planner", Result: &StepResult{Kind: StepSuccess}},
			{Number: 2, Tool: "code_generator", Result: &StepResult{Kind: StepError}},
			{Number: 3, Tool: "test_runner", Result: &StepResult{Kind: StepSuccess}},
		},
	}
	assert.InDelta(t, 1.0/3.0, e.ErrorRate(), 1e-9)
	assert.Equal(t, 3, e.ToolDiversity())
}

func TestCanAppendStep(t *testing.T) {
	e := &Episode{}
	assert.True(t, CanAppendStep(e))
	now := time.Now()
	e.EndTime = &now
	e.Outcome = &Outcome{Kind: OutcomeSuccess}
	assert.False(t, CanAppendStep(e))
}
