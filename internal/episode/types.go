// Package episode defines the central Episode aggregate, its execution
// steps, and the structural invariants that the learning engine enforces
// across the episode lifecycle.
package episode

import (
	"time"
)

// TaskType enumerates the kinds of task an episode can record.
type TaskType string

const (
	TaskCodeGeneration TaskType = "code_generation"
	TaskDebugging      TaskType = "debugging"
	TaskTesting        TaskType = "testing"
	TaskAnalysis       TaskType = "analysis"
	TaskRefactoring    TaskType = "refactoring"
	TaskOther          TaskType = "other"
)

// Complexity is the task's assessed complexity level.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Context is the task context an episode was executed under.
type Context struct {
	Domain     string     `json:"domain"`
	Language   *string    `json:"language,omitempty"`
	Framework  *string    `json:"framework,omitempty"`
	Complexity Complexity `json:"complexity"`
	Tags       []string   `json:"tags,omitempty"`
}

// OutcomeKind tags the variant carried by Outcome.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomePartialSuccess OutcomeKind = "partial_success"
	OutcomeFailure        OutcomeKind = "failure"
)

// Outcome is the tagged variant recorded when an episode completes.
// Only the fields relevant to Kind are populated; the zero value of the
// others is ignored by every consumer.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Success / PartialSuccess
	Verdict   string   `json:"verdict,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`

	// PartialSuccess
	Completed []string `json:"completed,omitempty"`
	Failed    []string `json:"failed,omitempty"`

	// Failure
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// SubtaskFraction returns the fraction of subtasks that succeeded, used
// by the reward calculator's base term. Success counts as 1.0, Failure
// as 0.0.
func (o Outcome) SubtaskFraction() float64 {
	switch o.Kind {
	case OutcomeSuccess:
		return 1.0
	case OutcomePartialSuccess:
		total := len(o.Completed) + len(o.Failed)
		if total == 0 {
			return 0
		}
		return float64(len(o.Completed)) / float64(total)
	default:
		return 0
	}
}

// StepResultKind tags the variant carried by StepResult.
type StepResultKind string

const (
	StepSuccess StepResultKind = "success"
	StepError   StepResultKind = "error"
	StepTimeout StepResultKind = "timeout"
)

// StepResult is the tagged outcome of a single execution step.
type StepResult struct {
	Kind    StepResultKind `json:"kind"`
	Output  string         `json:"output,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ExecutionStep is one tool invocation owned by an episode.
type ExecutionStep struct {
	Number     int                    `json:"number"`
	Tool       string                 `json:"tool"`
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Result     *StepResult            `json:"result,omitempty"`
	Latency    time.Duration          `json:"latency"`
	Tokens     TokenUsage             `json:"tokens"`
}

// TokenUsage records token consumption for a step.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Total returns prompt+completion tokens.
func (t TokenUsage) Total() int { return t.Prompt + t.Completion }

// SalientFeatures is the compact per-episode summary used for retrieval
// and learning.
type SalientFeatures struct {
	CriticalDecisions   []string `json:"critical_decisions"`
	ToolCombinations    [][]string `json:"tool_combinations"`
	ErrorRecoveryPairs  []ErrorRecoveryPair `json:"error_recovery_patterns"`
	KeyInsights         []string `json:"key_insights"`
}

// ErrorRecoveryPair is a failing step immediately followed by a
// succeeding step on a similar tool.
type ErrorRecoveryPair struct {
	FailedStep    int    `json:"failed_step"`
	RecoveredStep int    `json:"recovered_step"`
	Tool          string `json:"tool"`
}

// Reflection is the textual summary generated at completion time.
type Reflection struct {
	Successes    []string  `json:"successes"`
	Improvements []string  `json:"improvements"`
	Insights     []string  `json:"insights"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Episode is the central aggregate: a single recorded task execution.
type Episode struct {
	ID          string
	Description string
	TaskType    TaskType
	Context     Context

	StartTime time.Time
	EndTime   *time.Time

	Steps []ExecutionStep

	Outcome *Outcome

	Reward     *float64
	Reflection *Reflection

	PatternIDs   []string
	HeuristicIDs []string
	AppliedIDs   []string

	Salient *SalientFeatures

	Metadata map[string]string
}

// IsComplete reports whether both an end time and an outcome are present.
func (e *Episode) IsComplete() bool {
	return e.EndTime != nil && e.Outcome != nil
}

// NextStepNumber returns the step number the next logged step must use.
func (e *Episode) NextStepNumber() int {
	return len(e.Steps) + 1
}

// AppendPatternID appends a pattern id, enforcing the append-only invariant.
func (e *Episode) AppendPatternID(id string) {
	e.PatternIDs = append(e.PatternIDs, id)
}

// AppendHeuristicID appends a heuristic id, enforcing the append-only invariant.
func (e *Episode) AppendHeuristicID(id string) {
	e.HeuristicIDs = append(e.HeuristicIDs, id)
}

// ErrorRate returns the fraction of steps whose result is an Error or
// Timeout, 0 if there are no steps.
func (e *Episode) ErrorRate() float64 {
	if len(e.Steps) == 0 {
		return 0
	}
	errCount := 0
	for _, s := range e.Steps {
		if s.Result != nil && (s.Result.Kind == StepError || s.Result.Kind == StepTimeout) {
			errCount++
		}
	}
	return float64(errCount) / float64(len(e.Steps))
}

// ToolDiversity returns the number of distinct tool names used.
func (e *Episode) ToolDiversity() int {
	seen := make(map[string]struct{})
	for _, s := range e.Steps {
		seen[s.Tool] = struct{}{}
	}
	return len(seen)
}
