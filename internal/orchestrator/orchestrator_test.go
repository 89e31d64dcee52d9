package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"conductor/internal/executor"
	"conductor/internal/git"
	"conductor/internal/planner"
	"conductor/internal/registry"
	"conductor/internal/remote"
	"conductor/internal/runner"
	"conductor/internal/sandbox"
	"conductor/internal/state"
	"conductor/pkg/models"
)

// stubRunner completes every invocation; prompts containing failContains
// fail instead. A positive delay makes runs cancellable mid-flight.
type stubRunner struct {
	delay        time.Duration
	failContains string
}

func (s *stubRunner) Invoke(ctx context.Context, def models.AgentDef, prompt string, session runner.Session) (*runner.Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failContains != "" && strings.Contains(prompt, s.failContains) {
		return nil, runner.ErrUnrecoverable
	}
	return &runner.Result{
		Content: "NEXT: COMPLETE\nREASON: done",
		Usage:   runner.Usage{Cost: 0.01, Duration: 5 * time.Millisecond},
	}, nil
}

type fakeProvisioner struct{ mu sync.Mutex }

func (f *fakeProvisioner) Create(ctx context.Context, spec sandbox.Spec) (sandbox.Handle, error) {
	return sandbox.Handle{ID: spec.TaskID, Workdir: "/tmp/" + spec.TaskID, Branch: spec.Branch}, nil
}
func (f *fakeProvisioner) Exec(ctx context.Context, handle sandbox.Handle, command string) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvisioner) Destroy(ctx context.Context, handle sandbox.Handle) error { return nil }

type fakeGit struct {
	mu        sync.Mutex
	conflicts map[string]bool
	merged    []string
}

func (g *fakeGit) CurrentBranch() (string, error)       { return "main", nil }
func (g *fakeGit) CreateBranch(name string) error       { return nil }
func (g *fakeGit) CheckoutBranch(name string) error     { return nil }
func (g *fakeGit) BranchExists(name string) (bool, error) { return true, nil }
func (g *fakeGit) DeleteBranch(name string) error       { return nil }
func (g *fakeGit) Add(paths ...string) error            { return nil }
func (g *fakeGit) Commit(message string) error          { return nil }
func (g *fakeGit) Merge(branch string) (git.MergeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conflicts[branch] {
		return git.MergeResult{Success: false, ConflictingPaths: []string{"shared.go"}}, nil
	}
	g.merged = append(g.merged, branch)
	return git.MergeResult{Success: true}, nil
}
func (g *fakeGit) Diff(base string) (string, error)      { return "", nil }
func (g *fakeGit) WorktreeAdd(path, branch string) error { return nil }
func (g *fakeGit) WorktreeRemove(path string) error      { return nil }

func testOrchestrator(t *testing.T, r runner.Runner) *Orchestrator {
	t.Helper()

	reg := registry.New()
	for _, name := range []string{"coder", "reviewer"} {
		if err := reg.Register(models.AgentDef{Name: name, CostEstimate: 0.1}); err != nil {
			t.Fatal(err)
		}
	}

	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	execCfg := executor.DefaultConfig()
	execCfg.InvokeTimeout = time.Second
	execCfg.RetryBaseDelay = time.Millisecond

	return New(reg, r, db, &fakeProvisioner{}, &fakeGit{}, Options{
		Project:           "demo",
		PlannerStrategy:   planner.StrategyHeuristic,
		ExecutorConfig:    execCfg,
		HeartbeatInterval: 5 * time.Millisecond,
	})
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) *models.TaskRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := o.GetStatus(id)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return nil
}

func TestSubmitSequentialCompletes(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{})

	id, err := o.SubmitTask(context.Background(), "fix a typo in the usage string", SubmitOptions{Mode: models.ModeSequential})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec, err := o.GetStatus(id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.Status != models.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", rec.Status, rec.Error)
	}
	if rec.Cost <= 0 {
		t.Error("expected accumulated cost on the record")
	}
	if len(rec.CompletedAgents) == 0 {
		t.Error("expected completed agents recorded")
	}
	if rec.StartedAt == nil || rec.CompletedAt == nil {
		t.Error("expected lifecycle timestamps stamped")
	}
}

func TestSubmitAutoFallsBackSequential(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{})

	// Too small to decompose; auto mode must run it sequentially.
	id, err := o.SubmitTask(context.Background(), "fix a typo", SubmitOptions{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec, _ := o.GetStatus(id)
	if rec.Status != models.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", rec.Status, rec.Error)
	}
	if len(rec.Subtasks) != 0 {
		t.Errorf("sequential fallback must not record subtasks, got %d", len(rec.Subtasks))
	}
}

func TestSubmitParallelMergesSubtasks(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{})

	id, err := o.SubmitTask(context.Background(),
		"update parser.go to handle comments; add tests in parser_test.go; update docs.md",
		SubmitOptions{Mode: models.ModeParallel})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec, _ := o.GetStatus(id)
	if rec.Status != models.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", rec.Status, rec.Error)
	}
	if len(rec.Subtasks) != 3 {
		t.Fatalf("expected 3 subtask results persisted, got %d", len(rec.Subtasks))
	}
	for _, sub := range rec.Subtasks {
		if sub.Merge != models.MergeDone {
			t.Errorf("subtask %s: expected merged, got %q (%s)", sub.SubtaskID, sub.Merge, sub.Error)
		}
	}
}

func TestSubmitBackgroundAndCancelIdempotent(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{delay: 200 * time.Millisecond})

	id, err := o.SubmitTask(context.Background(), "fix a typo in the usage string",
		SubmitOptions{Mode: models.ModeSequential, Background: true})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := o.Cancel(id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	rec := waitTerminal(t, o, id)
	if rec.Status != models.TaskStatusCancelled {
		t.Fatalf("expected cancelled, got %s (%s)", rec.Status, rec.Error)
	}

	// Cancelling again is a no-op, not an error.
	if err := o.Cancel(id); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	after, _ := o.GetStatus(id)
	if !after.CompletedAt.Equal(*rec.CompletedAt) {
		t.Error("second cancel mutated the record")
	}
}

func TestRetryAllocatesNewRecord(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{failContains: "usage string"})

	id, err := o.SubmitTask(context.Background(), "fix a typo in the usage string", SubmitOptions{Mode: models.ModeSequential})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec, _ := o.GetStatus(id)
	if rec.Status != models.TaskStatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}

	// Retry with a runner that now succeeds.
	o2 := o
	o2.runner = &stubRunner{}
	newID, err := o2.Retry(context.Background(), id, SubmitOptions{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if newID == id {
		t.Fatal("retry must allocate a fresh id")
	}

	retried, _ := o.GetStatus(newID)
	if retried.RetryOf != id {
		t.Errorf("expected retry_of %s, got %q", id, retried.RetryOf)
	}
	if retried.Status != models.TaskStatusCompleted {
		t.Errorf("expected retried task completed, got %s (%s)", retried.Status, retried.Error)
	}

	original, _ := o.GetStatus(id)
	if original.Status != models.TaskStatusFailed {
		t.Errorf("original record must be untouched, got %s", original.Status)
	}
}

func TestRetryRejectsNonTerminal(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{delay: 200 * time.Millisecond})

	id, err := o.SubmitTask(context.Background(), "fix a typo in the usage string",
		SubmitOptions{Mode: models.ModeSequential, Background: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Retry(context.Background(), id, SubmitOptions{}); err == nil {
		t.Error("expected retry of a running task to fail")
	}
	o.Cancel(id)
	waitTerminal(t, o, id)
}

func TestListTasksByStatus(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{})

	if _, err := o.SubmitTask(context.Background(), "fix a typo here", SubmitOptions{Mode: models.ModeSequential}); err != nil {
		t.Fatal(err)
	}
	if _, err := o.SubmitTask(context.Background(), "fix a typo there", SubmitOptions{Mode: models.ModeSequential}); err != nil {
		t.Fatal(err)
	}

	completed, err := o.ListTasks(state.TaskFilter{Status: models.TaskStatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 2 {
		t.Errorf("expected 2 completed tasks, got %d", len(completed))
	}
	none, err := o.ListTasks(state.TaskFilter{Status: models.TaskStatusRunning})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no running tasks, got %d", len(none))
	}
}

func TestEventsEmitted(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{})

	id, err := o.SubmitTask(context.Background(), "fix a typo in the usage string", SubmitOptions{Mode: models.ModeSequential})
	if err != nil {
		t.Fatal(err)
	}

	types := make(map[EventType]bool)
	for {
		select {
		case ev := <-o.Events():
			if ev.TaskID == id {
				types[ev.Type] = true
			}
		default:
			if !types[EventTaskSubmitted] || !types[EventTaskStarted] || !types[EventTaskCompleted] {
				t.Errorf("missing lifecycle events, got %v", types)
			}
			return
		}
	}
}

// fakeHost records published change requests.
type fakeHost struct {
	mu       sync.Mutex
	requests []remote.ChangeRequest
}

func (h *fakeHost) CreateChangeRequest(ctx context.Context, req remote.ChangeRequest) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)
	return "https://host.example/cr/1", nil
}

func TestParallelPublishesChangeRequest(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{})
	host := &fakeHost{}
	o.opts.Remote = host
	o.opts.IntegrationBranch = "integration"

	id, err := o.SubmitTask(context.Background(),
		"update parser.go to handle comments; add tests in parser_test.go; update docs.md",
		SubmitOptions{Mode: models.ModeParallel})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec, _ := o.GetStatus(id)
	if rec.Status != models.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", rec.Status, rec.Error)
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.requests) != 1 {
		t.Fatalf("expected one change request, got %d", len(host.requests))
	}
	if host.requests[0].Branch != "integration" {
		t.Errorf("expected integration branch, got %q", host.requests[0].Branch)
	}
	if host.requests[0].Title == "" {
		t.Error("expected a change request title")
	}
}

func TestSequentialDoesNotPublish(t *testing.T) {
	o := testOrchestrator(t, &stubRunner{})
	host := &fakeHost{}
	o.opts.Remote = host
	o.opts.IntegrationBranch = "integration"

	if _, err := o.SubmitTask(context.Background(), "fix a typo in the usage string",
		SubmitOptions{Mode: models.ModeSequential}); err != nil {
		t.Fatal(err)
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.requests) != 0 {
		t.Errorf("expected no change requests for sequential run, got %d", len(host.requests))
	}
}
