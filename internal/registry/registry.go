// Package registry provides the agent capability directory.
// Agents are registered once at startup; afterwards the registry is
// read-only and safe to share across concurrent executions.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"conductor/pkg/models"
)

// ErrDuplicateName indicates an agent with the same name is already registered.
var ErrDuplicateName = errors.New("agent name already registered")

// ErrNotFound indicates no agent is registered under the requested name.
var ErrNotFound = errors.New("agent not found")

// Registry is the directory of registered agent definitions.
type Registry struct {
	mu sync.RWMutex
	// agents maps agent name to its definition.
	agents map[string]models.AgentDef
	// order preserves registration order for deterministic listings.
	order []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		agents: make(map[string]models.AgentDef),
	}
}

// Register adds an agent definition to the registry.
// Returns ErrDuplicateName if the name is already taken.
func (r *Registry) Register(def models.AgentDef) error {
	if def.Name == "" {
		return fmt.Errorf("register agent: name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[def.Name]; exists {
		return fmt.Errorf("register agent %q: %w", def.Name, ErrDuplicateName)
	}
	r.agents[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns the definition registered under name.
// Returns ErrNotFound if the name is absent.
func (r *Registry) Get(name string) (models.AgentDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.agents[name]
	if !ok {
		return models.AgentDef{}, fmt.Errorf("get agent %q: %w", name, ErrNotFound)
	}
	return def, nil
}

// Has returns true if an agent is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// FindByCapability returns all agents carrying the given capability tag,
// in registration order. The result may be empty.
func (r *Registry) FindByCapability(tag string) []models.AgentDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []models.AgentDef
	for _, name := range r.order {
		if def := r.agents[name]; def.HasCapability(tag) {
			found = append(found, def)
		}
	}
	return found
}

// ValidateSequence returns the subset of names not present in the registry.
// An empty result means the sequence is valid.
func (r *Registry) ValidateSequence(names []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var unknown []string
	for _, name := range names {
		if _, ok := r.agents[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// EstimateCost sums the per-agent cost estimates for the given sequence.
// Unknown names contribute nothing; callers validate sequences separately.
func (r *Registry) EstimateCost(names []string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, name := range names {
		if def, ok := r.agents[name]; ok {
			total += def.CostEstimate
		}
	}
	return total
}

// Names returns all registered agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
