package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"conductor/pkg/models"
)

// rosterFile is the on-disk shape of an agent roster.
type rosterFile struct {
	Agents []models.AgentDef `yaml:"agents"`
}

// DefaultAgents returns the built-in agent roster.
func DefaultAgents() []models.AgentDef {
	return []models.AgentDef{
		{
			Name:         "architect",
			Capabilities: []string{"plan", "design", "decompose"},
			Scope:        models.ScopeReadOnly,
			CostEstimate: 0.05,
			Prompt:       "You are a software architect. Analyze the task, identify the affected components, and produce a concrete plan or decomposition. Do not edit files.",
		},
		{
			Name:         "coder",
			Capabilities: []string{"implement", "edit", "refactor"},
			Scope:        models.ScopeFull,
			CostEstimate: 0.20,
			Prompt:       "You are a software engineer. Implement the requested change in the workspace. Keep the change minimal and explain what you did.",
		},
		{
			Name:         "reviewer",
			Capabilities: []string{"review", "approve"},
			Scope:        models.ScopeReadOnly,
			CostEstimate: 0.10,
			Prompt:       "You are a code reviewer. Inspect the change against the task. Either approve it or list the specific issues that must be fixed.",
		},
		{
			Name:         "analyst",
			Capabilities: []string{"investigate", "diagnose"},
			Scope:        models.ScopeReadOnly,
			CostEstimate: 0.10,
			Prompt:       "You are a debugging analyst. Investigate the reported behavior, locate the cause, and hand the findings to the implementer.",
		},
		{
			Name:         "clarifier",
			Capabilities: []string{"clarify"},
			Scope:        models.ScopeReadOnly,
			CostEstimate: 0.02,
			Prompt:       "You resolve open questions about the task. Answer decisively using the task description and repository conventions; never ask questions back.",
		},
	}
}

// LoadAgents reads an agent roster from a YAML file.
// An empty path returns the built-in roster.
func LoadAgents(path string) ([]models.AgentDef, error) {
	if path == "" {
		return DefaultAgents(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("roster %s: no agents defined", path)
	}

	for i := range file.Agents {
		if err := validateAgent(&file.Agents[i]); err != nil {
			return nil, fmt.Errorf("roster %s: agent %d: %w", path, i, err)
		}
	}

	return file.Agents, nil
}

func validateAgent(def *models.AgentDef) error {
	if def.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(def.Capabilities) == 0 {
		return fmt.Errorf("agent %q: at least one capability is required", def.Name)
	}
	if def.Scope == "" {
		def.Scope = models.ScopeReadOnly
	}
	if !def.Scope.Valid() {
		return fmt.Errorf("agent %q: unknown scope %q", def.Name, def.Scope)
	}
	if def.CostEstimate < 0 {
		return fmt.Errorf("agent %q: cost estimate must not be negative", def.Name)
	}
	return nil
}
