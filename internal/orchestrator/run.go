package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"conductor/internal/decomposer"
	"conductor/internal/executor"
	"conductor/internal/parallel"
	"conductor/internal/remote"
	"conductor/internal/runner"
	"conductor/internal/state"
	"conductor/pkg/models"
)

// execute drives one task to a terminal state and finalizes its record.
// It never returns an error: every outcome, including cancellation, is
// persisted on the record.
func (o *Orchestrator) execute(ctx context.Context, id, description string, mode models.ExecutionMode, opts SubmitOptions) {
	defer func() {
		o.mu.Lock()
		delete(o.cancels, id)
		o.mu.Unlock()
	}()

	running := models.TaskStatusRunning
	owner := o.ownerID
	if err := o.store.UpdateTask(id, state.TaskUpdate{Status: &running, OwnerID: &owner}); err != nil {
		// Cancelled before it started.
		o.logger.Log("task %s: not started: %v", id, err)
		return
	}
	o.emit(Event{Type: EventTaskStarted, TaskID: id})

	stopHeartbeat := o.startHeartbeat(ctx, id)
	defer stopHeartbeat()

	execCfg := o.opts.ExecutorConfig
	if opts.MaxIterations > 0 {
		execCfg.MaxIterations = opts.MaxIterations
	}

	var cost float64
	var taskErr string
	succeeded := false

	if mode == models.ModeSequential {
		succeeded, cost, taskErr = o.runSequential(ctx, id, description, execCfg)
	} else {
		// Parallel and auto both try decomposition; a task that does
		// not split runs sequentially.
		succeeded, cost, taskErr = o.runParallel(ctx, id, description, execCfg)
	}

	o.finalize(ctx, id, succeeded, cost, taskErr)
}

// finalize writes the terminal status. A record already finalized by a
// racing Cancel is left as is.
func (o *Orchestrator) finalize(ctx context.Context, id string, succeeded bool, cost float64, taskErr string) {
	status := models.TaskStatusFailed
	event := EventTaskFailed
	switch {
	case ctx.Err() != nil:
		status = models.TaskStatusCancelled
		event = EventTaskCancelled
		if taskErr == "" {
			taskErr = ctx.Err().Error()
		}
	case succeeded:
		status = models.TaskStatusCompleted
		event = EventTaskCompleted
	}

	upd := state.TaskUpdate{Status: &status, Cost: &cost}
	if taskErr != "" {
		upd.Error = &taskErr
	}
	if err := o.store.UpdateTask(id, upd); err != nil && !errors.Is(err, state.ErrTaskFinal) {
		o.logger.Log("task %s: finalize: %v", id, err)
	}
	o.emit(Event{Type: event, TaskID: id, Message: taskErr, Cost: cost})
	o.logger.Log("task %s: finalized %s cost=%.4f err=%q", id, status, cost, taskErr)
}

// runSequential plans and runs the single-executor path, streaming
// per-turn progress onto the record.
func (o *Orchestrator) runSequential(ctx context.Context, id, description string, execCfg executor.Config) (bool, float64, string) {
	plan, err := o.planner.Plan(ctx, description, "")
	if err != nil {
		return false, 0, fmt.Sprintf("plan: %v", err)
	}

	var cost float64
	var completed []string
	exec := executor.New(o.registry, o.runner, execCfg)
	exec.SetObserver(func(agent string, usage runner.Usage) {
		cost += usage.Cost
		completed = append(completed, agent)
		o.emit(Event{Type: EventAgentTurn, TaskID: id, Agent: agent, Cost: cost})

		if err := o.store.RecordAgentDuration(agent, usage.Duration); err != nil {
			o.logger.Log("task %s: record duration: %v", id, err)
		}
		progress, err := o.store.EstimateProgress(plan.Agents, completed)
		if err != nil {
			o.logger.Log("task %s: estimate progress: %v", id, err)
		}
		upd := state.TaskUpdate{
			CurrentAgent:    &agent,
			CompletedAgents: completed,
			Progress:        &progress,
			Cost:            &cost,
		}
		if err := o.store.UpdateTask(id, upd); err != nil {
			o.logger.Log("task %s: progress update: %v", id, err)
		}
	})

	res, err := exec.Run(ctx, description, plan, runner.Session{TaskID: id})
	if err != nil {
		return false, cost, fmt.Sprintf("run executor: %v", err)
	}

	cost = res.Cost
	if res.State == models.OutcomeCompleted {
		return true, cost, ""
	}
	detail := res.Reason
	if res.Error != "" {
		detail = res.Error
	}
	return false, cost, fmt.Sprintf("%s: %s", res.State, detail)
}

// runParallel decomposes, executes subtasks concurrently, and merges
// the surviving branches sequentially.
func (o *Orchestrator) runParallel(ctx context.Context, id, description string, execCfg executor.Config) (bool, float64, string) {
	subtasks, err := o.decomposer.Decompose(ctx, description, nil)
	if err != nil {
		if errors.Is(err, decomposer.ErrNotDecomposable) {
			// Parallel was requested explicitly but the task does not
			// split; run it sequentially rather than failing.
			o.logger.Log("task %s: %v, running sequential", id, err)
			return o.runSequential(ctx, id, description, execCfg)
		}
		return false, 0, fmt.Sprintf("decompose: %v", err)
	}
	o.logger.Log("task %s: decomposed into %d subtasks", id, len(subtasks))

	manager := parallel.New(o.registry, o.runner, o.planner, o.sandboxes, execCfg, o.opts.ParallelConfig)
	manager.SetObserver(func(res models.SubtaskResult) {
		o.emit(Event{
			Type:      EventSubtaskFinished,
			TaskID:    id,
			SubtaskID: res.SubtaskID,
			Message:   string(res.State),
			Cost:      res.Cost,
		})
	})

	results, err := manager.Run(ctx, id, subtasks)
	if err != nil {
		return false, 0, fmt.Sprintf("run parallel: %v", err)
	}

	var cost float64
	for _, res := range results {
		cost += res.Cost
	}

	summary, err := o.newMerger().MergeAll(results)
	if err != nil {
		o.persistSubtasks(id, results)
		return false, cost, fmt.Sprintf("merge: %v", err)
	}
	o.persistSubtasks(id, results)
	o.emit(Event{
		Type:   EventMergeFinished,
		TaskID: id,
		Message: fmt.Sprintf("%d merged, %d conflicted, %d skipped",
			len(summary.Merged), len(summary.Conflicted), len(summary.Skipped)),
	})

	if len(summary.Conflicted) == 0 && len(summary.Skipped) == 0 {
		o.publishChangeRequest(ctx, id, description)
		return true, cost, ""
	}
	return false, cost, summarizeMergeFailures(results)
}

// publishChangeRequest proposes the integration branch on the remote
// host. Publishing is best-effort: a host failure is logged and the
// task still succeeds, since the merged work exists locally.
func (o *Orchestrator) publishChangeRequest(ctx context.Context, id, description string) {
	if o.opts.Remote == nil || o.opts.IntegrationBranch == "" {
		return
	}

	title := description
	if len(title) > 72 {
		title = title[:69] + "..."
	}
	url, err := o.opts.Remote.CreateChangeRequest(ctx, remote.ChangeRequest{
		Branch:      o.opts.IntegrationBranch,
		Title:       title,
		Description: description,
	})
	if err != nil {
		o.logger.Log("task %s: publish change request: %v", id, err)
		return
	}
	o.emit(Event{Type: EventMergeFinished, TaskID: id, Message: "change request: " + url})
	o.logger.Log("task %s: change request %s", id, url)
}

func (o *Orchestrator) persistSubtasks(id string, results []models.SubtaskResult) {
	if err := o.store.UpdateTask(id, state.TaskUpdate{Subtasks: results}); err != nil {
		o.logger.Log("task %s: persist subtasks: %v", id, err)
	}
}

func summarizeMergeFailures(results []models.SubtaskResult) string {
	var parts []string
	for _, res := range results {
		switch res.Merge {
		case models.MergeConflict:
			parts = append(parts, fmt.Sprintf("%s: merge conflict", res.SubtaskID))
		case models.MergeSkipped:
			parts = append(parts, fmt.Sprintf("%s: %s", res.SubtaskID, res.State))
		}
	}
	return strings.Join(parts, "; ")
}

// startHeartbeat stamps the record's liveness signal until stopped.
func (o *Orchestrator) startHeartbeat(ctx context.Context, id string) func() {
	ticker := time.NewTicker(o.opts.HeartbeatInterval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := o.store.Heartbeat(id); err != nil {
					o.logger.Log("task %s: heartbeat: %v", id, err)
				}
			}
		}
	}()
	return func() { close(done) }
}
