package conversation

import "strings"

// Predicate is a pure boolean function over recent conversation content,
// used to gate executor branching. The phrase-matching implementations
// below are pluggable so they can be swapped for a structured decision
// field without touching the state machine.
type Predicate interface {
	// Holds reports whether the predicate is true for the given log.
	Holds(log *Log) bool
}

// PhrasePredicate matches any of a fixed phrase list, case-insensitively,
// against the latest message from a given role (or the latest message
// overall when Role is empty).
type PhrasePredicate struct {
	// Role restricts matching to the latest message from this role.
	Role string
	// Phrases is the fixed phrase list. Matching is case-insensitive.
	Phrases []string
}

// Holds reports whether any phrase occurs in the relevant message.
func (p PhrasePredicate) Holds(log *Log) bool {
	var msg Message
	var ok bool
	if p.Role != "" {
		msg, ok = log.LatestFrom(p.Role)
	} else {
		msg, ok = log.Latest()
	}
	if !ok {
		return false
	}

	content := strings.ToLower(msg.Content)
	for _, phrase := range p.Phrases {
		if strings.Contains(content, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// Predicates bundles the consensus predicates the executor consults.
// Zero-value fields are filled with the phrase-list defaults.
type Predicates struct {
	ReadyToImplement    Predicate
	Approved            Predicate
	UnresolvedIssues    Predicate
	NeedsDirectDialogue Predicate
	OpenQuestions       Predicate
}

// DefaultPredicates returns the phrase-matching predicate set.
// reviewer is the role whose messages gate approval and dialogue.
func DefaultPredicates(reviewer string) Predicates {
	return Predicates{
		ReadyToImplement: PhrasePredicate{Phrases: []string{
			"ready to implement",
			"requirements are clear",
			"no further questions",
			"proceeding with implementation",
		}},
		Approved: PhrasePredicate{Role: reviewer, Phrases: []string{
			"approved",
			"lgtm",
			"looks good to me",
			"no further changes needed",
			"ship it",
		}},
		UnresolvedIssues: PhrasePredicate{Role: reviewer, Phrases: []string{
			"unresolved",
			"must be fixed",
			"blocking issue",
			"needs changes",
			"request changes",
		}},
		NeedsDirectDialogue: PhrasePredicate{Role: reviewer, Phrases: []string{
			"question for",
			"can you clarify",
			"please explain",
			"why did you",
			"what was the intent",
		}},
		OpenQuestions: PhrasePredicate{Phrases: []string{
			"open question",
			"unanswered question",
			"need clarification",
			"unclear requirement",
			"before i can proceed",
		}},
	}
}
