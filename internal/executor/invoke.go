package executor

import (
	"context"
	"fmt"
	"time"

	"conductor/internal/conversation"
	"conductor/internal/runner"
	"conductor/pkg/models"
)

// invokeAndLog runs one agent turn with retries, appends the message to
// the log, and updates the result's accounting.
func (e *Executor) invokeAndLog(ctx context.Context, agent, task string, session runner.Session, log *conversation.Log, res *Result) (string, error) {
	def, err := e.registry.Get(agent)
	if err != nil {
		return "", err
	}

	session.Transcript = log.CondensedView()
	result, err := e.invokeWithRetry(ctx, def, buildPrompt(task, def), session)
	if err != nil {
		return "", err
	}

	log.Add(agent, result.Content, map[string]string{
		"cost":     fmt.Sprintf("%.6f", result.Usage.Cost),
		"duration": result.Usage.Duration.String(),
	})
	res.Cost += result.Usage.Cost
	res.Durations[agent] += result.Usage.Duration

	if e.observer != nil {
		e.observer(agent, result.Usage)
	}
	return result.Content, nil
}

// invokeWithRetry applies the per-call timeout and retries transient
// failures with bounded exponential backoff. Non-retryable failures
// surface immediately.
func (e *Executor) invokeWithRetry(ctx context.Context, def models.AgentDef, prompt string, session runner.Session) (*runner.Result, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := e.cfg.RetryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.InvokeTimeout)
		result, err := e.runner.Invoke(callCtx, def, prompt, session)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !runner.Retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("invoke %s: exhausted %d attempts: %w", def.Name, e.cfg.RetryAttempts, lastErr)
}

// buildPrompt frames one agent turn. The conversation so far travels in
// the session transcript; the prompt carries the task and the handoff
// protocol.
func buildPrompt(task string, def models.AgentDef) string {
	return fmt.Sprintf(`Task: %s

You are acting as the %q agent. Do your part of the task, then end your
message with a routing decision, either as JSON:
  {"next": "<agent-name>", "reason": "<why>"}
or as tags:
  NEXT: <agent-name>
  REASON: <why>
Use %q as the agent name when the task is finished.`,
		task, def.Name, conversation.CompleteTarget)
}
