// Package runner defines the agent-runner collaborator boundary: an
// opaque LLM-backed process that reasons, edits files, and runs
// commands. The orchestrator only sequences its invocations.
package runner

import (
	"context"
	"errors"
	"time"

	"conductor/pkg/models"
)

// Invocation failure taxonomy. Timeout and RateLimited are retryable;
// Unauthorized and Unrecoverable surface immediately.
var (
	ErrTimeout       = errors.New("invocation timed out")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnrecoverable = errors.New("unrecoverable invocation failure")
)

// Retryable reports whether the error is a transient invocation failure
// worth retrying with backoff.
func Retryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrUnrecoverable) {
		return false
	}
	// Timeouts, rate limits, and anything else transient (network).
	return true
}

// Usage is the resource accounting for one invocation.
type Usage struct {
	// Cost is the invocation cost in dollars.
	Cost float64
	// InputTokens and OutputTokens are token counts when available.
	InputTokens  int64
	OutputTokens int64
	// Duration is the wall-clock invocation time.
	Duration time.Duration
}

// Session is the per-task context handed to each invocation.
type Session struct {
	// TaskID identifies the owning task or subtask.
	TaskID string
	// Workdir is the sandbox working directory, if any.
	Workdir string
	// Transcript is the condensed conversation handed to the agent.
	Transcript string
}

// Result is the outcome of one agent invocation.
type Result struct {
	// Content is the agent's free-form message, trailing handoff included.
	Content string
	// Usage is the resource accounting.
	Usage Usage
	// SideEffects summarizes files edited and commands run.
	SideEffects string
}

// Runner invokes one agent turn. Implementations must honor ctx
// cancellation and deadlines.
type Runner interface {
	Invoke(ctx context.Context, def models.AgentDef, prompt string, session Session) (*Result, error)
}
