package validator

import (
	"fmt"
	"sort"

	"github.com/nsxbet/sql-filter-validator/pkg/types"
)

// result aggregates the engine's findings into a ValidationResult. Pure
// data assembly: ordering is deterministic so validating the same input
// twice yields structurally identical results.
func (e *engine) result() *types.ValidationResult {
	validated := make([]string, 0, len(e.validated))
	for table := range e.validated {
		validated = append(validated, table)
	}
	sort.Strings(validated)

	violations := e.violations
	if violations == nil {
		violations = []types.Violation{}
	}

	return &types.ValidationResult{
		Passed:          len(e.violations) == 0,
		Violations:      violations,
		ValidatedTables: validated,
		TableUsage:      e.usage,
		AppliedFilters:  e.applied,
		Ambiguities:     e.ambiguities,
	}
}

// suggestionFor synthesizes a fix description from the rule.
func suggestionFor(rule types.FilterRule) string {
	return fmt.Sprintf(
		"add `%s %s %s` filter for %s, either locally or in an enclosing query",
		rule.Column, rule.Operator, rule.Value, rule.Table,
	)
}
