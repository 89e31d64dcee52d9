package conversation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// CompleteTarget is the sentinel an agent names to signal task completion.
const CompleteTarget = "COMPLETE"

// DecisionKind tags the variants of a parsed handoff decision.
type DecisionKind int

const (
	// KindUnparsable means no routing decision could be extracted.
	// Parse ambiguity never defaults to completion.
	KindUnparsable DecisionKind = iota
	// KindNext routes to a named agent.
	KindNext
	// KindComplete signals the task is done.
	KindComplete
)

// Decision is an agent's routing decision extracted from its message.
type Decision struct {
	Kind DecisionKind
	// Target is the nominated agent name (KindNext only).
	Target string
	// Reason is the stated justification.
	Reason string
}

// String renders the decision for traces and logs.
func (d Decision) String() string {
	switch d.Kind {
	case KindNext:
		return fmt.Sprintf("next=%s reason=%q", d.Target, d.Reason)
	case KindComplete:
		return fmt.Sprintf("complete reason=%q", d.Reason)
	default:
		return "unparsable"
	}
}

// handoffJSON is the structured output channel for handoff decisions.
type handoffJSON struct {
	Next   string `json:"next"`
	Reason string `json:"reason"`
}

var (
	jsonBlockRe = regexp.MustCompile(`(?s)\{[^{}]*"next"[^{}]*\}`)
	nextTagRe   = regexp.MustCompile(`(?im)^\s*NEXT:\s*(\S+)\s*$`)
	reasonTagRe = regexp.MustCompile(`(?im)^\s*REASON:\s*(.+)$`)
)

// Parse extracts a handoff decision from the trailing content of an
// agent message. It prefers the structured JSON channel and falls back
// to NEXT:/REASON: tag extraction as a compatibility shim.
func Parse(content string) Decision {
	if d, ok := parseStructured(content); ok {
		return d
	}
	return parseTags(content)
}

// parseStructured looks for a JSON object carrying a "next" field.
// The last such object wins, matching the "trailing content" rule.
func parseStructured(content string) (Decision, bool) {
	blocks := jsonBlockRe.FindAllString(content, -1)
	for i := len(blocks) - 1; i >= 0; i-- {
		var h handoffJSON
		if err := json.Unmarshal([]byte(blocks[i]), &h); err != nil {
			continue
		}
		if h.Next == "" {
			continue
		}
		return decisionFor(h.Next, h.Reason), true
	}
	return Decision{}, false
}

// parseTags extracts NEXT:/REASON: style tags embedded in prose.
func parseTags(content string) Decision {
	nextMatches := nextTagRe.FindAllStringSubmatch(content, -1)
	if len(nextMatches) == 0 {
		return Decision{Kind: KindUnparsable}
	}
	target := nextMatches[len(nextMatches)-1][1]

	var reason string
	if reasonMatches := reasonTagRe.FindAllStringSubmatch(content, -1); len(reasonMatches) > 0 {
		reason = strings.TrimSpace(reasonMatches[len(reasonMatches)-1][1])
	}

	return decisionFor(target, reason)
}

func decisionFor(target, reason string) Decision {
	if strings.EqualFold(strings.TrimSpace(target), CompleteTarget) {
		return Decision{Kind: KindComplete, Reason: reason}
	}
	return Decision{Kind: KindNext, Target: strings.TrimSpace(target), Reason: reason}
}
