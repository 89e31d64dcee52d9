// Package orchestrator composes the planner, executor, decomposer,
// parallel manager, merger, and state store into the task entry point.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"conductor/internal/decomposer"
	"conductor/internal/executor"
	"conductor/internal/git"
	"conductor/internal/merger"
	"conductor/internal/parallel"
	"conductor/internal/planner"
	"conductor/internal/registry"
	"conductor/internal/remote"
	"conductor/internal/runner"
	"conductor/internal/sandbox"
	"conductor/internal/state"
	"conductor/pkg/models"
)

// Options configures an Orchestrator.
type Options struct {
	// Project names the repository the orchestrator operates on.
	Project string
	// PlannerStrategy selects the planning strategy.
	PlannerStrategy planner.Strategy
	// ExecutorConfig bounds every executor run.
	ExecutorConfig executor.Config
	// DecomposerConfig bounds decomposition in auto/parallel mode.
	DecomposerConfig decomposer.Config
	// ParallelConfig bounds the parallel execution manager.
	ParallelConfig parallel.Config
	// IntegrationBranch is the branch subtask work merges into. Empty
	// merges into the currently checked-out branch.
	IntegrationBranch string
	// Remote publishes a change request for the integration branch
	// after a fully merged parallel run. Nil disables publishing.
	Remote remote.Host
	// HeartbeatInterval is how often running tasks signal liveness.
	HeartbeatInterval time.Duration
	// Logger receives debug output. Nil disables it.
	Logger *DebugLogger
}

// SubmitOptions configures one task submission.
type SubmitOptions struct {
	// Mode selects sequential, parallel, or auto execution. Empty
	// defaults to auto.
	Mode models.ExecutionMode
	// MaxIterations overrides the executor's iteration ceiling when
	// positive.
	MaxIterations int
	// Background returns immediately and runs the task under the
	// supervisor; otherwise SubmitTask blocks until the task ends.
	Background bool
}

// Orchestrator is the task entry point. One instance supervises all
// tasks it accepted; its id is the owner handle on their records.
type Orchestrator struct {
	registry   *registry.Registry
	runner     runner.Runner
	store      *state.DB
	planner    *planner.Planner
	decomposer *decomposer.Decomposer
	sandboxes  sandbox.Provisioner
	git        git.Client
	opts       Options
	ownerID    string
	logger     *DebugLogger

	events chan Event

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an Orchestrator. The registry is read-only from here on
// and safely shared by every concurrent execution.
func New(reg *registry.Registry, r runner.Runner, store *state.DB, prov sandbox.Provisioner, gitClient git.Client, opts Options) *Orchestrator {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	return &Orchestrator{
		registry:   reg,
		runner:     r,
		store:      store,
		planner:    planner.New(reg, r, opts.PlannerStrategy),
		decomposer: decomposer.New(r, opts.DecomposerConfig),
		sandboxes:  prov,
		git:        gitClient,
		opts:       opts,
		ownerID:    uuid.New().String()[:8],
		logger:     opts.Logger,
		events:     make(chan Event, 100),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Events returns the orchestrator's event stream.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// SubmitTask accepts a task, persists its record, and executes it.
// Background submissions return as soon as the record exists; otherwise
// the call blocks until the task reaches a terminal state. The returned
// id identifies the task for GetStatus, Cancel, and Retry.
func (o *Orchestrator) SubmitTask(ctx context.Context, description string, opts SubmitOptions) (string, error) {
	return o.submit(ctx, description, opts, "")
}

func (o *Orchestrator) submit(ctx context.Context, description string, opts SubmitOptions, retryOf string) (string, error) {
	if description == "" {
		return "", fmt.Errorf("submit task: empty description")
	}
	mode := opts.Mode
	if mode == "" {
		mode = models.ModeAuto
	}

	id := uuid.New().String()[:8]
	rec := &models.TaskRecord{
		ID:          id,
		Project:     o.opts.Project,
		Description: description,
		Mode:        mode,
		Status:      models.TaskStatusPending,
		RetryOf:     retryOf,
	}
	if err := o.store.CreateTask(rec); err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	o.emit(Event{Type: EventTaskSubmitted, TaskID: id, Message: description})
	o.logger.Log("submitted task %s mode=%s background=%t", id, mode, opts.Background)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.cancels[id] = cancel
	o.mu.Unlock()

	if opts.Background {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.execute(runCtx, id, description, mode, opts)
		}()
		return id, nil
	}

	o.execute(runCtx, id, description, mode, opts)
	return id, nil
}

// GetStatus returns the task's current record.
func (o *Orchestrator) GetStatus(id string) (*models.TaskRecord, error) {
	return o.store.GetTask(id)
}

// ListTasks returns records matching the filter, newest first.
func (o *Orchestrator) ListTasks(filter state.TaskFilter) ([]*models.TaskRecord, error) {
	return o.store.ListTasks(filter)
}

// Cancel stops a task. Cancelling an already-terminal task, including
// an already-cancelled one, is a no-op.
func (o *Orchestrator) Cancel(id string) error {
	rec, err := o.store.GetTask(id)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return nil
	}

	o.mu.Lock()
	cancel := o.cancels[id]
	o.mu.Unlock()
	if cancel != nil {
		// The supervised run observes the cancellation, waits for any
		// still-running subtasks, and finalizes the record itself.
		cancel()
		return nil
	}

	// Nothing is running this task here (e.g. a pending record left by
	// a dead supervisor); finalize directly.
	cancelled := models.TaskStatusCancelled
	err = o.store.UpdateTask(id, state.TaskUpdate{Status: &cancelled})
	if errors.Is(err, state.ErrTaskFinal) {
		return nil
	}
	return err
}

// Retry resubmits a terminal task as a fresh record linked to the
// original, and returns the new id. The original record is untouched.
func (o *Orchestrator) Retry(ctx context.Context, id string, opts SubmitOptions) (string, error) {
	rec, err := o.store.GetTask(id)
	if err != nil {
		return "", err
	}
	if !rec.Status.Terminal() {
		return "", fmt.Errorf("retry task %s: not in a terminal state (%s)", id, rec.Status)
	}
	if opts.Mode == "" {
		opts.Mode = rec.Mode
	}
	return o.submit(ctx, rec.Description, opts, id)
}

// SyncLiveness reconciles running records against heartbeat staleness.
// Records owned by dead supervisors are failed exactly once.
func (o *Orchestrator) SyncLiveness(staleAfter time.Duration) ([]string, error) {
	return o.store.SyncLiveness(staleAfter)
}

// Shutdown cancels all supervised tasks and waits for them to finalize,
// or for the context to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// merger constructs the branch merger lazily so tests can swap the git
// client before first use.
func (o *Orchestrator) newMerger() *merger.Merger {
	return merger.New(o.git, o.opts.IntegrationBranch)
}
