// Package planner produces the initial agent sequence for a task.
// It prefers a model-assisted strategy and falls back to keyword
// heuristics when the model fails or returns an invalid sequence.
// The fallback is recovery, never a task failure.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"

	"conductor/internal/registry"
	"conductor/internal/runner"
	"conductor/pkg/models"
)

// Strategy selects how plans are produced.
type Strategy string

const (
	// StrategyModel asks the agent runner to classify and plan,
	// falling back to heuristics on failure.
	StrategyModel Strategy = "model"
	// StrategyHeuristic uses keyword rules only.
	StrategyHeuristic Strategy = "heuristic"
)

// plannerAgentName is the registry entry used for model-assisted planning.
const plannerAgentName = "architect"

// Planner produces execution plans from task descriptions.
type Planner struct {
	registry *registry.Registry
	runner   runner.Runner
	strategy Strategy
}

// New creates a Planner. runner may be nil, forcing the heuristic strategy.
func New(reg *registry.Registry, r runner.Runner, strategy Strategy) *Planner {
	if r == nil {
		strategy = StrategyHeuristic
	}
	return &Planner{registry: reg, runner: r, strategy: strategy}
}

// Plan produces an execution plan for the task description.
// projectContext is an optional summary of the target repository.
func (p *Planner) Plan(ctx context.Context, description, projectContext string) (*models.ExecutionPlan, error) {
	if p.strategy == StrategyModel {
		plan, err := p.planWithModel(ctx, description, projectContext)
		if err == nil {
			return plan, nil
		}
		// Model-assisted planning failure is recovered locally.
		log.Printf("[planner] model-assisted planning failed, falling back to heuristics: %v", err)
	}
	return p.planHeuristic(description)
}

// plannedJSON is the structured output expected from the planning agent.
type plannedJSON struct {
	Agents    []string `json:"agents"`
	Rationale string   `json:"rationale"`
}

var planBlockRe = regexp.MustCompile(`(?s)\{[^{}]*"agents"[^{}]*\}`)

// planWithModel delegates sequence selection to the agent runner and
// validates the parsed sequence against the registry.
func (p *Planner) planWithModel(ctx context.Context, description, projectContext string) (*models.ExecutionPlan, error) {
	def, err := p.registry.Get(plannerAgentName)
	if err != nil {
		return nil, fmt.Errorf("planning agent: %w", err)
	}

	prompt := fmt.Sprintf(planningPrompt, p.registry.Names(), description, projectContext)
	result, err := p.runner.Invoke(ctx, def, prompt, runner.Session{})
	if err != nil {
		return nil, fmt.Errorf("invoke planning agent: %w", err)
	}

	planned, err := parsePlanResponse(result.Content)
	if err != nil {
		return nil, err
	}

	if unknown := p.registry.ValidateSequence(planned.Agents); len(unknown) > 0 {
		return nil, fmt.Errorf("planned sequence names unknown agents: %v", unknown)
	}
	if len(planned.Agents) == 0 {
		return nil, fmt.Errorf("planned sequence is empty")
	}

	return &models.ExecutionPlan{
		Agents:        planned.Agents,
		Rationale:     planned.Rationale,
		EstimatedCost: p.registry.EstimateCost(planned.Agents),
	}, nil
}

// parsePlanResponse extracts the structured plan from model output,
// tolerating prose around the JSON block.
func parsePlanResponse(content string) (*plannedJSON, error) {
	var planned plannedJSON
	if err := json.Unmarshal([]byte(content), &planned); err == nil && len(planned.Agents) > 0 {
		return &planned, nil
	}

	blocks := planBlockRe.FindAllString(content, -1)
	for i := len(blocks) - 1; i >= 0; i-- {
		if err := json.Unmarshal([]byte(blocks[i]), &planned); err == nil && len(planned.Agents) > 0 {
			return &planned, nil
		}
	}
	return nil, fmt.Errorf("no plan found in response")
}

const planningPrompt = `You are planning a software-change task.

Available agents: %v

Task: %s

Project context: %s

Respond with a JSON object: {"agents": ["..."], "rationale": "..."}
listing the agents to run in order. Do not invent agent names.`
