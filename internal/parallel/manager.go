// Package parallel runs decomposed subtasks concurrently, one isolated
// sandbox and one executor per subtask, bounded by a concurrency limit.
package parallel

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"conductor/internal/executor"
	"conductor/internal/graph"
	"conductor/internal/planner"
	"conductor/internal/registry"
	"conductor/internal/runner"
	"conductor/internal/sandbox"
	"conductor/pkg/models"
)

// Config bounds the manager.
type Config struct {
	// MaxConcurrent caps concurrently provisioned sandboxes. Excess
	// ready subtasks wait for a slot; running ones are never aborted.
	MaxConcurrent int64
	// BranchPrefix prefixes per-subtask branch names.
	BranchPrefix string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 10, BranchPrefix: "conductor"}
}

// SubtaskObserver is notified as each subtask reaches a terminal state.
type SubtaskObserver func(result models.SubtaskResult)

// Manager schedules subtasks onto executors. Each subtask gets its own
// sandbox, conversation log, and visit records; the only shared state
// is the read-only registry and the semaphore.
type Manager struct {
	registry  *registry.Registry
	runner    runner.Runner
	planner   *planner.Planner
	sandboxes sandbox.Provisioner
	execCfg   executor.Config
	cfg       Config
	sem       *semaphore.Weighted
	observer  SubtaskObserver
}

// New creates a Manager. Zero config fields are filled with defaults.
func New(reg *registry.Registry, r runner.Runner, pl *planner.Planner, prov sandbox.Provisioner, execCfg executor.Config, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = def.BranchPrefix
	}
	return &Manager{
		registry:  reg,
		runner:    r,
		planner:   pl,
		sandboxes: prov,
		execCfg:   execCfg,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// SetObserver installs a per-subtask completion observer. The observer
// is called from the scheduling goroutine, never concurrently.
func (m *Manager) SetObserver(obs SubtaskObserver) {
	m.observer = obs
}

type completion struct {
	id     string
	result models.SubtaskResult
}

// Run executes all subtasks and returns one result per subtask, in
// submission order, once every subtask has reached a terminal state.
// One subtask's failure never cancels siblings already in flight; a
// subtask whose dependency did not succeed is failed without running.
// The returned error is non-nil only for invalid input.
func (m *Manager) Run(ctx context.Context, taskID string, subtasks []*models.Subtask) ([]models.SubtaskResult, error) {
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("run parallel: no subtasks")
	}

	g := graph.New()
	if err := g.Build(subtasks); err != nil {
		return nil, fmt.Errorf("run parallel: %w", err)
	}

	index := make(map[string]int, len(subtasks))
	for i, sub := range subtasks {
		index[sub.ID] = i
	}

	results := make([]models.SubtaskResult, len(subtasks))
	done := make(chan completion, len(subtasks))
	launched := make(map[string]bool, len(subtasks))
	inflight := 0
	remaining := len(subtasks)

	record := func(c completion) {
		results[index[c.id]] = c.result
		remaining--
		if c.result.State.Succeeded() {
			g.MarkComplete(c.id)
		}
		if m.observer != nil {
			m.observer(c.result)
		}
	}

	for remaining > 0 {
		// Launch everything whose dependencies are satisfied. The
		// semaphore inside runSubtask delays provisioning past the
		// concurrency cap.
		if ctx.Err() == nil {
			for _, id := range g.GetReady() {
				if launched[id] {
					continue
				}
				launched[id] = true
				inflight++
				sub := g.Get(id)
				go func() {
					done <- completion{id: sub.ID, result: m.runSubtask(ctx, taskID, sub)}
				}()
			}
		}

		if inflight == 0 {
			// Nothing running and nothing ready: the rest are blocked
			// on dependencies that did not succeed, or on cancellation.
			for _, sub := range subtasks {
				if launched[sub.ID] {
					continue
				}
				launched[sub.ID] = true
				reason := "dependency did not complete"
				if ctx.Err() != nil {
					reason = ctx.Err().Error()
				}
				record(completion{id: sub.ID, result: models.SubtaskResult{
					SubtaskID: sub.ID,
					State:     models.OutcomeFailed,
					Error:     reason,
				}})
			}
			break
		}

		// Completion barrier: block until one in-flight subtask
		// finishes. Cancellation propagates through ctx to the
		// executors; their results are still collected here.
		c := <-done
		inflight--
		record(c)
	}
	return results, nil
}

// runSubtask provisions a sandbox, plans, and executes one subtask.
// All failures are folded into the result; nothing escapes to siblings.
func (m *Manager) runSubtask(ctx context.Context, taskID string, sub *models.Subtask) models.SubtaskResult {
	res := models.SubtaskResult{SubtaskID: sub.ID, State: models.OutcomeFailed}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		res.Error = fmt.Sprintf("acquire slot: %v", err)
		return res
	}
	defer m.sem.Release(1)

	branch := fmt.Sprintf("%s/%s/%s", m.cfg.BranchPrefix, taskID, sub.ID)
	handle, err := m.sandboxes.Create(ctx, sandbox.Spec{TaskID: taskID + "-" + sub.ID, Branch: branch})
	if err != nil {
		res.Error = fmt.Sprintf("provision sandbox: %v", err)
		return res
	}
	// The branch outlives the sandbox; the merger consumes it.
	defer m.sandboxes.Destroy(context.WithoutCancel(ctx), handle)
	res.Branch = handle.Branch

	plan, err := m.planner.Plan(ctx, sub.Description, "")
	if err != nil {
		res.Error = fmt.Sprintf("plan subtask: %v", err)
		return res
	}

	exec := executor.New(m.registry, m.runner, m.execCfg)
	execRes, err := exec.Run(ctx, sub.Description, plan, runner.Session{
		TaskID:  taskID + "-" + sub.ID,
		Workdir: handle.Workdir,
	})
	if err != nil {
		res.Error = fmt.Sprintf("run executor: %v", err)
		return res
	}

	res.State = execRes.State
	res.Trace = execRes.TraceStrings()
	res.Cost = execRes.Cost
	res.Error = execRes.Error
	return res
}
