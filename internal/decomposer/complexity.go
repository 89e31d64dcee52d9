package decomposer

import (
	"regexp"
	"strings"
)

// fileTokenRe matches path-like tokens with an extension.
var fileTokenRe = regexp.MustCompile(`[\w./-]+\.[A-Za-z]{1,10}\b`)

// clauseSeparatorRe splits a description into action clauses: semicolons,
// sentence boundaries, bullet or numbered list items, and ", and".
// Ordering words ("then", "after") are kept inside the clause so
// dependency extraction can see them.
var clauseSeparatorRe = regexp.MustCompile(`(?i)(?:;|\n\s*[-*]\s+|\n\s*\d+[.)]\s+|\.\s+|,\s+and\s+)`)

// orderingPrefixRe marks a clause as depending on the one before it.
var orderingPrefixRe = regexp.MustCompile(`(?i)^(then|after that|after this|once that is done|finally|afterwards|also)\b[,\s]*`)

// afterClauseRe matches "after X, do Y": Y depends on X.
var afterClauseRe = regexp.MustCompile(`(?i)^(?:after|once)\s+(.+?),\s+(.+)$`)

// ComplexityScore estimates how much independent work a description
// contains: one point per action clause plus one per distinct file
// mentioned. Single-clause, single-file tasks score low and stay
// sequential.
func ComplexityScore(description string) int {
	clauses := splitClauses(description)

	files := make(map[string]struct{})
	for _, f := range fileTokenRe.FindAllString(description, -1) {
		files[f] = struct{}{}
	}
	return len(clauses) + len(files)
}

// splitClauses breaks a description into trimmed, non-empty clauses.
func splitClauses(description string) []string {
	parts := clauseSeparatorRe.Split(description, -1)
	clauses := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		clauses = append(clauses, p)
	}
	return clauses
}
