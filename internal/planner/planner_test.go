package planner

import (
	"context"
	"errors"
	"testing"

	"conductor/internal/registry"
	"conductor/internal/runner"
	"conductor/pkg/models"
)

// scriptedRunner returns canned responses in order, then errors.
type scriptedRunner struct {
	responses []string
	err       error
	calls     int
}

func (s *scriptedRunner) Invoke(ctx context.Context, def models.AgentDef, prompt string, session runner.Session) (*runner.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return &runner.Result{Content: resp}, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	defs := []models.AgentDef{
		{Name: "architect", Capabilities: []string{"plan"}, CostEstimate: 0.5},
		{Name: "coder", Capabilities: []string{"implement"}, CostEstimate: 1.0},
		{Name: "reviewer", Capabilities: []string{"review"}, CostEstimate: 0.5},
		{Name: "analyst", Capabilities: []string{"analyze"}, CostEstimate: 0.25},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestHeuristicMinorFix(t *testing.T) {
	p := New(testRegistry(t), nil, StrategyHeuristic)

	plan, err := p.Plan(context.Background(), "fix a typo in an error message", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	want := []string{"coder", "reviewer"}
	if len(plan.Agents) != len(want) {
		t.Fatalf("expected %v, got %v", want, plan.Agents)
	}
	for i := range want {
		if plan.Agents[i] != want[i] {
			t.Errorf("expected %v, got %v", want, plan.Agents)
			break
		}
	}
}

func TestHeuristicAnalysisOnly(t *testing.T) {
	p := New(testRegistry(t), nil, StrategyHeuristic)

	plan, err := p.Plan(context.Background(), "analyze the startup sequence and explain the bottleneck", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if len(plan.Agents) != 1 || plan.Agents[0] != "analyst" {
		t.Errorf("expected [analyst], got %v", plan.Agents)
	}
	for _, name := range plan.Agents {
		if name == "coder" {
			t.Error("analysis-only plan must omit the implementation agent")
		}
	}
}

func TestHeuristicDefaultSequence(t *testing.T) {
	p := New(testRegistry(t), nil, StrategyHeuristic)

	plan, err := p.Plan(context.Background(), "implement connection pooling for the database layer", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	want := []string{"architect", "coder", "reviewer"}
	if len(plan.Agents) != len(want) {
		t.Fatalf("expected %v, got %v", want, plan.Agents)
	}
	if plan.EstimatedCost != 2.0 {
		t.Errorf("expected estimated cost 2.0, got %v", plan.EstimatedCost)
	}
}

func TestModelPlanParsed(t *testing.T) {
	r := &scriptedRunner{responses: []string{
		`Here is my plan.
{"agents": ["coder", "reviewer"], "rationale": "small change"}`,
	}}
	p := New(testRegistry(t), r, StrategyModel)

	plan, err := p.Plan(context.Background(), "small change", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Agents) != 2 || plan.Agents[0] != "coder" {
		t.Errorf("unexpected plan %v", plan.Agents)
	}
	if plan.Rationale != "small change" {
		t.Errorf("unexpected rationale %q", plan.Rationale)
	}
}

func TestModelFailureFallsBackToHeuristic(t *testing.T) {
	r := &scriptedRunner{err: errors.New("api unavailable")}
	p := New(testRegistry(t), r, StrategyModel)

	plan, err := p.Plan(context.Background(), "fix a typo in an error message", "")
	if err != nil {
		t.Fatalf("fallback must not surface an error, got %v", err)
	}
	if len(plan.Agents) != 2 || plan.Agents[0] != "coder" {
		t.Errorf("expected heuristic fallback plan, got %v", plan.Agents)
	}
}

func TestModelInvalidSequenceFallsBack(t *testing.T) {
	r := &scriptedRunner{responses: []string{
		`{"agents": ["coder", "wizard"], "rationale": "made up an agent"}`,
	}}
	p := New(testRegistry(t), r, StrategyModel)

	plan, err := p.Plan(context.Background(), "implement a new cache layer", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	// Fallback heuristic plan, and every entry validates.
	if unknown := testRegistry(t).ValidateSequence(plan.Agents); len(unknown) != 0 {
		t.Errorf("plan contains unknown agents: %v", unknown)
	}
}

// Every plan the planner emits must validate against the registry.
func TestAllPlansValidate(t *testing.T) {
	reg := testRegistry(t)
	p := New(reg, nil, StrategyHeuristic)

	descriptions := []string{
		"fix a typo in an error message",
		"analyze the retry logic",
		"implement OAuth login",
		"rename the config field",
		"explain why startup is slow",
	}

	for _, desc := range descriptions {
		plan, err := p.Plan(context.Background(), desc, "")
		if err != nil {
			t.Fatalf("plan %q: %v", desc, err)
		}
		if unknown := reg.ValidateSequence(plan.Agents); len(unknown) != 0 {
			t.Errorf("plan for %q names unknown agents %v", desc, unknown)
		}
	}
}
