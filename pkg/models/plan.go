package models

// ExecutionPlan is the ordered agent sequence produced by the planner.
// A plan is created once per task and never mutated by the executor.
type ExecutionPlan struct {
	// Agents is the ordered list of agent names to run.
	Agents []string `json:"agents"`
	// Rationale explains why this sequence was chosen.
	Rationale string `json:"rationale,omitempty"`
	// EstimatedCost is the summed per-agent cost estimate, in dollars.
	EstimatedCost float64 `json:"estimated_cost"`
}

// Subtask is an independently executable slice of a decomposed task.
// Subtasks are immutable inputs to the parallel execution manager.
type Subtask struct {
	// ID is the unique identifier for this subtask.
	ID string `json:"id"`
	// Description is the work to perform.
	Description string `json:"description"`
	// TargetFiles is the file footprint this subtask is expected to touch.
	TargetFiles []string `json:"target_files,omitempty"`
	// DependsOn lists subtask IDs that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`
}

// OutcomeState is the terminal state of one executor run.
type OutcomeState string

const (
	// OutcomeCompleted indicates the agent sequence signalled completion.
	OutcomeCompleted OutcomeState = "completed"
	// OutcomeUnapproved indicates the review round ceiling was reached
	// without approval. The result is partial, not an error.
	OutcomeUnapproved OutcomeState = "unapproved"
	// OutcomeLoopAborted indicates loop detection or the iteration
	// ceiling terminated the run with a partial trace.
	OutcomeLoopAborted OutcomeState = "loop_aborted"
	// OutcomeFailed indicates an unrecoverable invocation or parse failure.
	OutcomeFailed OutcomeState = "failed"
)

// Succeeded returns true for states that produced mergeable work.
func (s OutcomeState) Succeeded() bool {
	return s == OutcomeCompleted
}

// SubtaskResult is the terminal outcome of one subtask execution.
// It is produced by one executor instance and consumed exactly once
// by the branch merger.
type SubtaskResult struct {
	// SubtaskID identifies the subtask.
	SubtaskID string `json:"subtask_id"`
	// Branch is the branch holding the subtask's work.
	Branch string `json:"branch"`
	// State is the executor's terminal state.
	State OutcomeState `json:"state"`
	// Trace is the recorded transition trace.
	Trace []string `json:"trace,omitempty"`
	// Cost is the accumulated cost for this subtask, in dollars.
	Cost float64 `json:"cost"`
	// Error contains failure detail, if any.
	Error string `json:"error,omitempty"`
	// Merge is the merge disposition filled in by the branch merger.
	Merge MergeDisposition `json:"merge,omitempty"`
}

// MergeDisposition records what the branch merger did with a subtask result.
type MergeDisposition string

const (
	// MergePending means the merger has not processed the result yet.
	MergePending MergeDisposition = ""
	// MergeDone means the result was merged into the integration line.
	MergeDone MergeDisposition = "merged"
	// MergeConflict means the merge hit a textual conflict and was
	// left for manual resolution.
	MergeConflict MergeDisposition = "conflict"
	// MergeSkipped means the result was not mergeable (failed subtask).
	MergeSkipped MergeDisposition = "skipped"
)
