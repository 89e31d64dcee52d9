package models

import "time"

// TaskStatus represents the lifecycle state of a task record.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been accepted but not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled by the user.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is final. Terminal records accept
// no further mutation; retrying allocates a new record.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders statuses for the monotonic-transition check.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusRunning:
		return 1
	default:
		return 2
	}
}

// CanTransition returns true if moving from s to next respects the
// monotonic lifecycle pending -> running -> {completed|failed|cancelled}.
// A terminal status may only "transition" to itself (idempotent update).
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// ExecutionMode selects how a task is executed.
type ExecutionMode string

const (
	// ModeSequential runs a single executor over the planned agent sequence.
	ModeSequential ExecutionMode = "sequential"
	// ModeParallel decomposes the task and runs subtasks concurrently.
	ModeParallel ExecutionMode = "parallel"
	// ModeAuto attempts decomposition and falls back to sequential.
	ModeAuto ExecutionMode = "auto"
)

// Progress is a best-effort completion estimate for a running task.
type Progress struct {
	// Percent is the estimated completion percentage (0-100).
	Percent float64 `json:"percent"`
	// ETA is the estimated remaining duration. Zero when unknown.
	ETA time.Duration `json:"eta"`
}

// TaskRecord is the durable, queryable lifecycle state of one submitted task.
type TaskRecord struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Project identifies the repository the task operates on.
	Project string `json:"project"`
	// Description is the user-supplied task text.
	Description string `json:"description"`
	// Mode is the execution mode the task was submitted with.
	Mode ExecutionMode `json:"mode"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// OwnerID identifies the supervising process handle while running.
	OwnerID string `json:"owner_id,omitempty"`
	// CurrentAgent is the agent currently executing, if any.
	CurrentAgent string `json:"current_agent,omitempty"`
	// CompletedAgents lists agents that have finished their turn.
	CompletedAgents []string `json:"completed_agents,omitempty"`
	// Progress is the best-effort completion estimate.
	Progress Progress `json:"progress"`
	// Cost is the accumulated cost in dollars.
	Cost float64 `json:"cost"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when execution began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// HeartbeatAt is the last liveness signal from the owning supervisor.
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
	// Error contains the failure detail if the task failed.
	Error string `json:"error,omitempty"`
	// RetryOf is the id of the terminal record this task retries, if any.
	RetryOf string `json:"retry_of,omitempty"`
	// Subtasks summarizes per-subtask results when mode is parallel.
	Subtasks []SubtaskResult `json:"subtasks,omitempty"`
}
