package decomposer

import (
	"strings"

	"github.com/google/uuid"

	"conductor/pkg/models"
)

// extractClauses builds candidate subtasks from the description's action
// clauses. Each clause's file tokens become its target-file set.
// Dependency extraction follows the ordering language: a clause led by
// "then"/"after that" depends on the clause before it, and "after X,
// do Y" yields two subtasks with Y depending on X.
func extractClauses(task string) []*models.Subtask {
	clauses := splitClauses(task)
	subtasks := make([]*models.Subtask, 0, len(clauses))

	appendClause := func(clause string, deps []string) *models.Subtask {
		clause = strings.TrimRight(strings.TrimSpace(clause), ".")
		if clause == "" {
			return nil
		}
		sub := &models.Subtask{
			ID:          uuid.New().String()[:8],
			Description: clause,
			TargetFiles: normalizeFiles(fileTokenRe.FindAllString(clause, -1)),
			DependsOn:   deps,
		}
		subtasks = append(subtasks, sub)
		return sub
	}

	for _, clause := range clauses {
		// "then ..." and friends reference the previous clause; check
		// before the "after X, do Y" form so "once that is done, ..."
		// is not split into a bogus X subtask.
		if orderingPrefixRe.MatchString(clause) {
			dependsOnPrevious := len(subtasks) > 0
			clause = orderingPrefixRe.ReplaceAllString(clause, "")
			var deps []string
			if dependsOnPrevious {
				deps = []string{subtasks[len(subtasks)-1].ID}
			}
			appendClause(clause, deps)
			continue
		}

		if m := afterClauseRe.FindStringSubmatch(clause); m != nil {
			first := appendClause(m[1], nil)
			var deps []string
			if first != nil {
				deps = []string{first.ID}
			}
			appendClause(m[2], deps)
			continue
		}

		appendClause(clause, nil)
	}
	return subtasks
}

// mergeConflicting partitions candidates so that no two resulting
// subtasks share a target file: candidates whose file sets intersect
// are merged into one. Union-find with path compression; the resulting
// order follows the first member of each group, so partitioning is
// deterministic for a given candidate order.
func mergeConflicting(candidates []*models.Subtask) []*models.Subtask {
	n := len(candidates)
	if n <= 1 {
		return candidates
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(i int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	// Conflict edge: intersecting target-file sets.
	owner := make(map[string]int)
	for i, c := range candidates {
		for _, f := range c.TargetFiles {
			if j, seen := owner[f]; seen {
				union(j, i)
			} else {
				owner[f] = i
			}
		}
	}

	// Collect groups in first-member order.
	groupIndex := make(map[int]int)
	var groups [][]*models.Subtask
	for i, c := range candidates {
		root := find(i)
		gi, ok := groupIndex[root]
		if !ok {
			gi = len(groups)
			groupIndex[root] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], c)
	}

	idMap := make(map[string]string, n)
	merged := make([]*models.Subtask, 0, len(groups))
	for _, group := range groups {
		sub := mergeGroup(group)
		merged = append(merged, sub)
		for _, member := range group {
			idMap[member.ID] = sub.ID
		}
	}

	// Remap dependencies onto merged ids; a group never depends on itself.
	for _, sub := range merged {
		sub.DependsOn = remapDeps(sub.ID, sub.DependsOn, idMap)
	}
	return merged
}

// mergeGroup collapses one conflict group into a single subtask. A
// singleton group passes through unchanged.
func mergeGroup(group []*models.Subtask) *models.Subtask {
	if len(group) == 1 {
		return group[0]
	}

	descs := make([]string, 0, len(group))
	var files, deps []string
	for _, sub := range group {
		descs = append(descs, sub.Description)
		files = append(files, sub.TargetFiles...)
		deps = append(deps, sub.DependsOn...)
	}
	return &models.Subtask{
		ID:          uuid.New().String()[:8],
		Description: strings.Join(descs, "; "),
		TargetFiles: normalizeFiles(files),
		DependsOn:   deps,
	}
}

func remapDeps(selfID string, deps []string, idMap map[string]string) []string {
	if len(deps) == 0 {
		return nil
	}
	out := make([]string, 0, len(deps))
	seen := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		if mapped, ok := idMap[dep]; ok {
			dep = mapped
		}
		if dep == selfID {
			continue
		}
		if _, dup := seen[dep]; dup {
			continue
		}
		seen[dep] = struct{}{}
		out = append(out, dep)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
