package parallel

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"conductor/internal/executor"
	"conductor/internal/planner"
	"conductor/internal/registry"
	"conductor/internal/runner"
	"conductor/internal/sandbox"
	"conductor/pkg/models"
)

// stubRunner completes every invocation after an optional delay. Agents
// working on a subtask whose prompt contains failContains fail instead.
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
		Usage:   runner.Usage{Cost: 0.01},
	}, nil
}

// fakeProvisioner tracks concurrent sandbox counts.
type fakeProvisioner struct {
	mu        sync.Mutex
	active    int
	maxActive int
	created   int
}

func (f *fakeProvisioner) Create(ctx context.Context, spec sandbox.Spec) (sandbox.Handle, error) {
	f.mu.Lock()
	f.active++
	f.created++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	return sandbox.Handle{ID: spec.TaskID, Workdir: "/tmp/" + spec.TaskID, Branch: spec.Branch}, nil
}

func (f *fakeProvisioner) Exec(ctx context.Context, handle sandbox.Handle, command string) ([]byte, error) {
	return nil, nil
}

func (f *fakeProvisioner) Destroy(ctx context.Context, handle sandbox.Handle) error {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return nil
}

func testManager(t *testing.T, r runner.Runner, prov sandbox.Provisioner, cfg Config) *Manager {
	t.Helper()
	reg := registry.New()
	for _, name := range []string{"coder", "reviewer"} {
		if err := reg.Register(models.AgentDef{Name: name, CostEstimate: 0.1}); err != nil {
			t.Fatal(err)
		}
	}
	pl := planner.New(reg, nil, planner.StrategyHeuristic)
	execCfg := executor.DefaultConfig()
	execCfg.InvokeTimeout = time.Second
	execCfg.RetryBaseDelay = time.Millisecond
	return New(reg, r, pl, prov, execCfg, cfg)
}

func subtask(id, desc string, deps ...string) *models.Subtask {
	return &models.Subtask{ID: id, Description: desc, DependsOn: deps}
}

func TestRunAllSubtasksComplete(t *testing.T) {
	prov := &fakeProvisioner{}
	m := testManager(t, &stubRunner{}, prov, Config{})

	subs := []*models.Subtask{
		subtask("s1", "update alpha.go"),
		subtask("s2", "update beta.go"),
		subtask("s3", "update gamma.go"),
	}

	results, err := m.Run(context.Background(), "task1", subs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// Submission order is preserved regardless of completion order.
	for i, sub := range subs {
		res := results[i]
		if res.SubtaskID != sub.ID {
			t.Errorf("result %d: expected subtask %s, got %s", i, sub.ID, res.SubtaskID)
		}
		if res.State != models.OutcomeCompleted {
			t.Errorf("subtask %s: expected completed, got %s (%s)", sub.ID, res.State, res.Error)
		}
		if res.Branch == "" {
			t.Errorf("subtask %s: missing branch", sub.ID)
		}
	}
	if prov.created != 3 {
		t.Errorf("expected 3 sandboxes, got %d", prov.created)
	}
	if prov.active != 0 {
		t.Errorf("expected all sandboxes destroyed, %d still active", prov.active)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	prov := &fakeProvisioner{}
	m := testManager(t, &stubRunner{delay: 30 * time.Millisecond}, prov, Config{MaxConcurrent: 2})

	subs := []*models.Subtask{
		subtask("s1", "update a.go"),
		subtask("s2", "update b.go"),
		subtask("s3", "update c.go"),
		subtask("s4", "update d.go"),
	}

	if _, err := m.Run(context.Background(), "task1", subs); err != nil {
		t.Fatalf("run: %v", err)
	}
	if prov.maxActive > 2 {
		t.Errorf("concurrency cap violated: %d sandboxes active at once", prov.maxActive)
	}
	if prov.created != 4 {
		t.Errorf("expected all 4 subtasks provisioned, got %d", prov.created)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	prov := &fakeProvisioner{}
	m := testManager(t, &stubRunner{failContains: "beta.go"}, prov, Config{})

	subs := []*models.Subtask{
		subtask("s1", "update alpha.go"),
		subtask("s2", "update beta.go"),
		subtask("s3", "update gamma.go"),
	}

	results, err := m.Run(context.Background(), "task1", subs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if results[1].State != models.OutcomeFailed {
		t.Errorf("expected s2 failed, got %s", results[1].State)
	}
	for _, i := range []int{0, 2} {
		if results[i].State != models.OutcomeCompleted {
			t.Errorf("sibling %s must not be affected, got %s (%s)",
				results[i].SubtaskID, results[i].State, results[i].Error)
		}
	}
}

func TestRunBlockedDependencyFailsWithoutRunning(t *testing.T) {
	prov := &fakeProvisioner{}
	m := testManager(t, &stubRunner{failContains: "alpha.go"}, prov, Config{})

	subs := []*models.Subtask{
		subtask("s1", "update alpha.go"),
		subtask("s2", "update beta.go", "s1"),
	}

	results, err := m.Run(context.Background(), "task1", subs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if results[0].State != models.OutcomeFailed {
		t.Fatalf("expected s1 failed, got %s", results[0].State)
	}
	if results[1].State != models.OutcomeFailed {
		t.Fatalf("expected s2 failed, got %s", results[1].State)
	}
	if !strings.Contains(results[1].Error, "dependency") {
		t.Errorf("expected dependency failure reason, got %q", results[1].Error)
	}
	if prov.created != 1 {
		t.Errorf("blocked subtask must not be provisioned, got %d sandboxes", prov.created)
	}
}

func TestRunDependencyOrdering(t *testing.T) {
	prov := &fakeProvisioner{}
	m := testManager(t, &stubRunner{}, prov, Config{})

	subs := []*models.Subtask{
		subtask("s1", "update schema.sql"),
		subtask("s2", "update models.go", "s1"),
	}

	results, err := m.Run(context.Background(), "task1", subs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, res := range results {
		if res.State != models.OutcomeCompleted {
			t.Errorf("subtask %s: expected completed, got %s (%s)", res.SubtaskID, res.State, res.Error)
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prov := &fakeProvisioner{}
	m := testManager(t, &stubRunner{delay: 10 * time.Millisecond}, prov, Config{})

	subs := []*models.Subtask{
		subtask("s1", "update alpha.go"),
		subtask("s2", "update beta.go"),
	}

	results, err := m.Run(ctx, "task1", subs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected a result per subtask, got %d", len(results))
	}
	for _, res := range results {
		if res.State != models.OutcomeFailed {
			t.Errorf("subtask %s: expected failed on cancellation, got %s", res.SubtaskID, res.State)
		}
	}
}

func TestRunObserverSeesEveryTerminalResult(t *testing.T) {
	prov := &fakeProvisioner{}
	m := testManager(t, &stubRunner{}, prov, Config{})

	var seen []string
	m.SetObserver(func(res models.SubtaskResult) {
		seen = append(seen, res.SubtaskID)
	})

	subs := []*models.Subtask{
		subtask("s1", "update a.go"),
		subtask("s2", "update b.go"),
	}
	if _, err := m.Run(context.Background(), "task1", subs); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("expected observer called per subtask, got %v", seen)
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	m := testManager(t, &stubRunner{}, &fakeProvisioner{}, Config{})
	if _, err := m.Run(context.Background(), "task1", nil); err == nil {
		t.Error("expected error for empty subtask set")
	}
}
