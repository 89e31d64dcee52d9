package planner

import (
	"fmt"
	"strings"

	"conductor/pkg/models"
)

// Canonical agent sequences the heuristic strategy maps onto.
var (
	fullSequence     = []string{"architect", "coder", "reviewer"}
	minorFixSequence = []string{"coder", "reviewer"}
	analysisSequence = []string{"analyst"}
)

// implementationVerbs signal that the task changes code.
var implementationVerbs = []string{
	"implement", "add", "create", "build", "fix", "refactor",
	"update", "change", "remove", "delete", "rename", "migrate",
	"write", "replace", "rewrite", "optimize",
}

// readOnlyMarkers signal analysis-only intent.
var readOnlyMarkers = []string{
	"analyze", "analyse", "explain", "describe", "investigate",
	"review the", "summarize", "summarise", "audit", "understand",
	"what does", "how does", "why does", "report on",
}

// minorFixMarkers signal a small change that needs no design phase.
var minorFixMarkers = []string{
	"typo", "spelling", "rename", "comment", "whitespace",
	"formatting", "minor", "small fix", "one-line", "one line",
	"trivial", "bump", "error message",
}

// planHeuristic maps task phrasing onto a canonical sequence.
// Rules, in order: read-only intent with no implementation verbs maps
// to the analysis-only sequence; minor-fix phrasing omits the
// architect; everything else gets the full sequence.
func (p *Planner) planHeuristic(description string) (*models.ExecutionPlan, error) {
	lower := strings.ToLower(description)

	sequence := fullSequence
	rationale := "default full sequence"

	switch {
	case containsAny(lower, readOnlyMarkers) && !containsAny(lower, implementationVerbs):
		sequence = analysisSequence
		rationale = "read-only intent, analysis sequence"
	case containsAny(lower, minorFixMarkers):
		sequence = minorFixSequence
		rationale = "minor fix, planning agent omitted"
	}

	// Drop entries the registry does not know rather than failing;
	// the roster is configurable.
	known := sequence[:0:0]
	for _, name := range sequence {
		if p.registry.Has(name) {
			known = append(known, name)
		}
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("heuristic plan: none of %v registered", sequence)
	}

	return &models.ExecutionPlan{
		Agents:        known,
		Rationale:     rationale,
		EstimatedCost: p.registry.EstimateCost(known),
	}, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
