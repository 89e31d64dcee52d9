package models

// Scope describes the side effects an agent is permitted to perform.
type Scope string

const (
	// ScopeReadOnly restricts the agent to inspecting the workspace.
	ScopeReadOnly Scope = "read_only"
	// ScopeFull allows the agent to edit files and run commands.
	ScopeFull Scope = "full"
)

// Valid returns true if the scope is a known value.
func (s Scope) Valid() bool {
	switch s {
	case ScopeReadOnly, ScopeFull:
		return true
	default:
		return false
	}
}

// AgentDef describes a registered agent role.
// Definitions are immutable once registered with the registry.
type AgentDef struct {
	// Name is the unique key for this agent.
	Name string `json:"name" yaml:"name"`
	// Capabilities lists the capability tags this agent provides.
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	// Scope is the permitted side-effect scope.
	Scope Scope `json:"scope" yaml:"scope"`
	// CostEstimate is the expected cost of one invocation, in dollars.
	CostEstimate float64 `json:"cost_estimate" yaml:"cost_estimate"`
	// Model is the reasoning model hint for the runner.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Prompt is the system prompt framing this agent's role.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// HasCapability returns true if the agent carries the given capability tag.
func (d AgentDef) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}
