// Package executor runs the handoff state machine for one task: it
// invokes agents in sequence, parses each agent's routing decision,
// and bounds the run with visit records, loop detection, and a hard
// iteration ceiling.
package executor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"conductor/internal/conversation"
	"conductor/internal/registry"
	"conductor/internal/runner"
	"conductor/pkg/models"
)

// Roles names the agents that anchor the executor's inner loops.
type Roles struct {
	// Implementer is the agent that edits code.
	Implementer string
	// Reviewer is the agent whose messages gate approval.
	Reviewer string
	// Clarifier is invoked once when the implementer has open questions.
	Clarifier string
}

// DefaultRoles returns the canonical role mapping.
func DefaultRoles() Roles {
	return Roles{Implementer: "coder", Reviewer: "reviewer", Clarifier: "clarifier"}
}

// Config bounds one executor run.
type Config struct {
	// MaxIterations is the hard ceiling on total transitions.
	MaxIterations int
	// RepeatThreshold is the loop-detection threshold: consecutive
	// back-and-forth transitions within one agent pair.
	RepeatThreshold int
	// ReviewRounds caps implementation/review round trips.
	ReviewRounds int
	// DialogueRounds caps direct peer-dialogue exchanges.
	DialogueRounds int
	// InvokeTimeout is the per-invocation deadline.
	InvokeTimeout time.Duration
	// RetryAttempts bounds local retries of transient invocation failures.
	RetryAttempts int
	// RetryBaseDelay is the base for exponential backoff between retries.
	RetryBaseDelay time.Duration
	// Roles anchors the inner loops.
	Roles Roles
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   10,
		RepeatThreshold: 4,
		ReviewRounds:    3,
		DialogueRounds:  2,
		InvokeTimeout:   5 * time.Minute,
		RetryAttempts:   3,
		RetryBaseDelay:  2 * time.Second,
		Roles:           DefaultRoles(),
	}
}

// Transition is one recorded handoff in the execution trace.
type Transition struct {
	// From is the agent that made the decision.
	From string
	// To is the nominated target.
	To string
	// Reason is the stated justification.
	Reason string
	// At is when the transition was recorded.
	At time.Time
}

// Result is the terminal outcome of one executor run. Orchestration
// terminations (loop abort, review ceiling) are well-formed partial
// results, never errors to the caller.
type Result struct {
	// State is the terminal state of the run.
	State models.OutcomeState
	// Reason explains the termination.
	Reason string
	// Trace is the recorded transition sequence.
	Trace []Transition
	// Visits counts invocations per agent for this run.
	Visits map[string]int
	// Cost is the accumulated invocation cost in dollars.
	Cost float64
	// Durations accumulates wall-clock invocation time per agent.
	Durations map[string]time.Duration
	// Log is the conversation accumulated during the run.
	Log *conversation.Log
	// Error holds failure detail when State is OutcomeFailed.
	Error string
}

// TraceStrings renders the trace for persistence.
func (r *Result) TraceStrings() []string {
	out := make([]string, len(r.Trace))
	for i, t := range r.Trace {
		out[i] = fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Reason)
	}
	return out
}

// TurnObserver is notified after each agent turn; used by the
// orchestrator for progress and heartbeat updates.
type TurnObserver func(agent string, usage runner.Usage)

// Executor runs the handoff state machine for one task. One executor
// instance owns one conversation log and one set of visit records;
// instances are never shared across concurrent executions.
type Executor struct {
	registry *registry.Registry
	runner   runner.Runner
	preds    conversation.Predicates
	cfg      Config
	observer TurnObserver
}

// New creates an Executor. Zero config fields are filled with defaults.
func New(reg *registry.Registry, r runner.Runner, cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.RepeatThreshold <= 0 {
		cfg.RepeatThreshold = def.RepeatThreshold
	}
	if cfg.ReviewRounds <= 0 {
		cfg.ReviewRounds = def.ReviewRounds
	}
	if cfg.DialogueRounds <= 0 {
		cfg.DialogueRounds = def.DialogueRounds
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = def.InvokeTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.Roles.Implementer == "" {
		cfg.Roles = def.Roles
	}

	return &Executor{
		registry: reg,
		runner:   r,
		preds:    conversation.DefaultPredicates(cfg.Roles.Reviewer),
		cfg:      cfg,
	}
}

// SetPredicates replaces the consensus predicates. The phrase-matching
// defaults can be swapped without touching the state machine.
func (e *Executor) SetPredicates(p conversation.Predicates) {
	e.preds = p
}

// SetObserver installs a per-turn observer.
func (e *Executor) SetObserver(obs TurnObserver) {
	e.observer = obs
}

// Run executes the plan's agent sequence until completion, loop abort,
// review-ceiling exhaustion, or failure. The returned error is non-nil
// only for invalid input; execution outcomes live in the Result.
func (e *Executor) Run(ctx context.Context, task string, plan *models.ExecutionPlan, session runner.Session) (*Result, error) {
	if plan == nil || len(plan.Agents) == 0 {
		return nil, fmt.Errorf("run executor: plan has no agents")
	}
	if unknown := e.registry.ValidateSequence(plan.Agents); len(unknown) > 0 {
		return nil, fmt.Errorf("run executor: plan names unknown agents %v", unknown)
	}

	log := conversation.NewLog()
	res := &Result{
		Visits:    make(map[string]int),
		Durations: make(map[string]time.Duration),
		Log:       log,
	}

	current := plan.Agents[0]
	res.Visits[current]++

	loop := newLoopDetector(e.cfg.RepeatThreshold)
	reviewRounds := 0
	clarified := false
	unparsedRuns := 0

	for iter := 0; ; iter++ {
		if iter >= e.cfg.MaxIterations {
			res.State = models.OutcomeLoopAborted
			res.Reason = fmt.Sprintf("iteration ceiling %d reached", e.cfg.MaxIterations)
			return res, nil
		}

		select {
		case <-ctx.Done():
			res.State = models.OutcomeFailed
			res.Error = ctx.Err().Error()
			return res, nil
		default:
		}

		content, err := e.invokeAndLog(ctx, current, task, session, log, res)
		if err != nil {
			res.State = models.OutcomeFailed
			res.Reason = "agent invocation failed"
			res.Error = err.Error()
			return res, nil
		}

		// Clarification branch: once per run, when the implementer has
		// open questions and is not yet ready.
		if !clarified && current == e.cfg.Roles.Implementer &&
			e.preds.OpenQuestions.Holds(log) && !e.preds.ReadyToImplement.Holds(log) {
			clarified = true
			if e.registry.Has(e.cfg.Roles.Clarifier) {
				if _, err := e.invokeAndLog(ctx, e.cfg.Roles.Clarifier, task, session, log, res); err != nil {
					res.State = models.OutcomeFailed
					res.Reason = "clarifier invocation failed"
					res.Error = err.Error()
					return res, nil
				}
				// Re-run the implementer with the clarification in context.
				continue
			}
		}

		// Peer-dialogue branch: bounded direct exchange between the
		// reviewer and the implementer.
		if current == e.cfg.Roles.Reviewer && e.preds.NeedsDirectDialogue.Holds(log) {
			latest, err := e.runDialogue(ctx, task, session, log, res)
			if err != nil {
				res.State = models.OutcomeFailed
				res.Reason = "peer dialogue failed"
				res.Error = err.Error()
				return res, nil
			}
			if latest != "" {
				content = latest
			}
		}

		decision := conversation.Parse(content)

		switch decision.Kind {
		case conversation.KindComplete:
			res.State = models.OutcomeCompleted
			res.Reason = decision.Reason
			return res, nil

		case conversation.KindNext:
			if !e.registry.Has(decision.Target) {
				// Unknown target is handled like an unparsable decision.
				if unparsedRuns++; unparsedRuns > 1 {
					res.State = models.OutcomeFailed
					res.Reason = fmt.Sprintf("agent %s repeatedly nominated unknown target %q", current, decision.Target)
					return res, nil
				}
				continue // re-invoke the same agent once
			}
			unparsedRuns = 0

			// Review loop: the implementation/review pair is bounded by
			// its round ceiling, not by loop detection.
			if e.isReviewPair(current, decision.Target) {
				if current == e.cfg.Roles.Reviewer && decision.Target == e.cfg.Roles.Implementer {
					reviewRounds++
					if reviewRounds >= e.cfg.ReviewRounds && !e.preds.Approved.Holds(log) {
						res.Trace = append(res.Trace, Transition{From: current, To: decision.Target, Reason: decision.Reason, At: time.Now()})
						res.State = models.OutcomeUnapproved
						res.Reason = "review round ceiling " + strconv.Itoa(e.cfg.ReviewRounds) + " reached without approval"
						return res, nil
					}
				}
			} else if loop.Record(current, decision.Target) {
				res.Trace = append(res.Trace, Transition{From: current, To: decision.Target, Reason: decision.Reason, At: time.Now()})
				res.State = models.OutcomeLoopAborted
				res.Reason = fmt.Sprintf("repeat threshold %d reached between %s and %s", e.cfg.RepeatThreshold, current, decision.Target)
				return res, nil
			}

			res.Trace = append(res.Trace, Transition{From: current, To: decision.Target, Reason: decision.Reason, At: time.Now()})
			res.Visits[decision.Target]++
			if res.Visits[decision.Target] > e.cfg.RepeatThreshold {
				res.State = models.OutcomeLoopAborted
				res.Reason = fmt.Sprintf("agent %s exceeded %d visits", decision.Target, e.cfg.RepeatThreshold)
				return res, nil
			}
			current = decision.Target

		default: // KindUnparsable
			if unparsedRuns++; unparsedRuns > 1 {
				res.State = models.OutcomeFailed
				res.Reason = fmt.Sprintf("agent %s produced no parsable handoff decision", current)
				return res, nil
			}
			// Re-invoke the same agent once before failing.
		}
	}
}

// isReviewPair reports whether the transition moves between the
// configured implementer and reviewer, in either direction.
func (e *Executor) isReviewPair(from, to string) bool {
	r := e.cfg.Roles
	return (from == r.Implementer && to == r.Reviewer) ||
		(from == r.Reviewer && to == r.Implementer)
}
