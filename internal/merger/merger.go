// Package merger reconciles per-subtask branches into one integration
// line. Merging is strictly sequential so the integration history is
// deterministic; a conflict in one branch never blocks the rest.
package merger

import (
	"fmt"
	"strings"

	"conductor/internal/git"
	"conductor/pkg/models"
)

// Summary aggregates one merge batch.
type Summary struct {
	// Merged lists subtask ids merged cleanly, in merge order.
	Merged []string
	// Conflicted maps subtask id to the conflicting paths.
	Conflicted map[string][]string
	// Skipped lists subtask ids that were not merge candidates.
	Skipped []string
}

// Merger merges subtask branches into an integration branch.
type Merger struct {
	git    git.Client
	target string
}

// New creates a Merger targeting the given integration branch. An empty
// target merges into whatever branch is currently checked out.
func New(g git.Client, integrationBranch string) *Merger {
	return &Merger{git: g, target: integrationBranch}
}

// MergeAll merges each successful result's branch, in slice order, one
// at a time. Dispositions are written back into the results: skipped
// for non-successful results, conflict for branches that do not merge
// cleanly, merged otherwise. Conflicts never abort the batch; the
// returned error covers only integration-branch checkout failures.
func (m *Merger) MergeAll(results []models.SubtaskResult) (Summary, error) {
	summary := Summary{Conflicted: make(map[string][]string)}

	if m.target != "" {
		if err := m.git.CheckoutBranch(m.target); err != nil {
			return summary, fmt.Errorf("checkout integration branch %s: %w", m.target, err)
		}
	}

	for i := range results {
		res := &results[i]

		if !res.State.Succeeded() || res.Branch == "" {
			res.Merge = models.MergeSkipped
			summary.Skipped = append(summary.Skipped, res.SubtaskID)
			continue
		}

		exists, err := m.git.BranchExists(res.Branch)
		if err == nil && !exists {
			err = fmt.Errorf("branch %s does not exist", res.Branch)
		}
		if err != nil {
			res.Merge = models.MergeConflict
			res.Error = appendDetail(res.Error, err.Error())
			summary.Conflicted[res.SubtaskID] = nil
			continue
		}

		mr, err := m.git.Merge(res.Branch)
		if err != nil {
			res.Merge = models.MergeConflict
			res.Error = appendDetail(res.Error, fmt.Sprintf("merge %s: %v", res.Branch, err))
			summary.Conflicted[res.SubtaskID] = nil
			continue
		}
		if !mr.Success {
			// The client has already aborted the merge; conflicting
			// content is never force-resolved here.
			res.Merge = models.MergeConflict
			res.Error = appendDetail(res.Error,
				fmt.Sprintf("merge conflict in %s", strings.Join(mr.ConflictingPaths, ", ")))
			summary.Conflicted[res.SubtaskID] = mr.ConflictingPaths
			continue
		}

		res.Merge = models.MergeDone
		summary.Merged = append(summary.Merged, res.SubtaskID)
	}
	return summary, nil
}

func appendDetail(existing, detail string) string {
	if existing == "" {
		return detail
	}
	return existing + "; " + detail
}
