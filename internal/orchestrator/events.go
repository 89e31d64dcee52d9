package orchestrator

import "time"

// EventType identifies the kind of orchestrator event.
type EventType string

const (
	// EventTaskSubmitted indicates a task record was created.
	EventTaskSubmitted EventType = "task_submitted"
	// EventTaskStarted indicates a task began executing.
	EventTaskStarted EventType = "task_started"
	// EventAgentTurn reports one completed agent invocation.
	EventAgentTurn EventType = "agent_turn"
	// EventSubtaskFinished reports one subtask reaching a terminal state.
	EventSubtaskFinished EventType = "subtask_finished"
	// EventMergeFinished reports the merge batch outcome.
	EventMergeFinished EventType = "merge_finished"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed or ended partial.
	EventTaskFailed EventType = "task_failed"
	// EventTaskCancelled indicates a task was cancelled.
	EventTaskCancelled EventType = "task_cancelled"
)

// Event is emitted on the orchestrator's event stream for progress
// display. Consumers that fall behind lose events; emission never
// blocks task execution.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the id of the related task.
	TaskID string
	// SubtaskID is the id of the related subtask, if applicable.
	SubtaskID string
	// Agent is the related agent name, if applicable.
	Agent string
	// Message provides additional context.
	Message string
	// Cost is the accumulated cost at emission time, in dollars.
	Cost float64
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event without blocking; a full channel drops it.
func (o *Orchestrator) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case o.events <- ev:
	default:
	}
}
