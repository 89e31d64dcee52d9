package executor

import (
	"context"
	"fmt"

	"conductor/internal/conversation"
	"conductor/internal/runner"
)

// loopDetector counts consecutive back-and-forth transitions within one
// unordered agent pair. A run that reaches the threshold is a ping-pong
// loop. Total per-agent visit counts are tracked separately in the
// Result; this detector only sees the main handoff flow, so bounded
// inner loops (review rounds, peer dialogue) cannot trip it.
type loopDetector struct {
	threshold int
	lastA     string
	lastB     string
	run       int
}

func newLoopDetector(threshold int) *loopDetector {
	return &loopDetector{threshold: threshold}
}

// Record registers a transition and reports whether the consecutive
// same-pair run has reached the threshold.
func (d *loopDetector) Record(from, to string) bool {
	a, b := from, to
	if a > b {
		a, b = b, a
	}

	if a == d.lastA && b == d.lastB {
		d.run++
	} else {
		d.lastA, d.lastB = a, b
		d.run = 1
	}
	return d.run >= d.threshold
}

// runDialogue performs up to DialogueRounds direct exchanges between
// the implementer and the reviewer, returning the reviewer's final
// message so the caller can re-parse the handoff decision. The exchange
// ends early once the dialogue predicate no longer holds.
func (e *Executor) runDialogue(ctx context.Context, task string, session runner.Session, log *conversation.Log, res *Result) (string, error) {
	if !e.registry.Has(e.cfg.Roles.Implementer) || !e.registry.Has(e.cfg.Roles.Reviewer) {
		return "", nil
	}

	var latest string
	for round := 0; round < e.cfg.DialogueRounds; round++ {
		if _, err := e.invokeAndLog(ctx, e.cfg.Roles.Implementer, task, session, log, res); err != nil {
			return "", fmt.Errorf("dialogue round %d: %w", round+1, err)
		}
		content, err := e.invokeAndLog(ctx, e.cfg.Roles.Reviewer, task, session, log, res)
		if err != nil {
			return "", fmt.Errorf("dialogue round %d: %w", round+1, err)
		}
		latest = content

		if !e.preds.NeedsDirectDialogue.Holds(log) {
			break
		}
	}
	return latest, nil
}
