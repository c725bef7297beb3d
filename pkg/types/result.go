package types

import "fmt"

// AppliedFilter records a predicate that satisfied a filter rule,
// including where in the scope tree the proof was found.
type AppliedFilter struct {
	// Table is the physical table the filter protects.
	Table string `json:"table"`

	// Column is the filtered column.
	Column string `json:"column"`

	// Operator and Value are the matched predicate's comparison.
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`

	// ScopePath locates the scope holding the predicate, e.g.
	// "query > active_users".
	ScopePath string `json:"scope_path"`

	// Source names the clause the predicate came from: WHERE, JOIN, HAVING.
	Source string `json:"source"`
}

// Violation reports a ruled table occurrence with no satisfying predicate
// anywhere in its scope chain. Violations are data, not errors: they are
// the expected output of a validation that found a missing filter.
type Violation struct {
	// Rule is the unsatisfied rule.
	Rule FilterRule `json:"rule"`

	// Table and Column repeat the rule's target for easy serialization.
	Table  string `json:"table"`
	Column string `json:"column"`

	// ScopePath locates the unprotected table occurrence.
	ScopePath string `json:"scope_path"`

	// MissingFilter describes the condition that was not found,
	// e.g. "deleted = 0".
	MissingFilter string `json:"missing_filter"`

	// FoundFilters lists predicates on the same column that did not
	// match the rule (wrong operator or value). Empty when none exist.
	FoundFilters []string `json:"found_filters,omitempty"`

	// Suggestion is a human-readable fix synthesized from the rule.
	Suggestion string `json:"suggestion"`
}

// AmbiguousColumn is a soft signal: an unqualified column in a predicate
// matched more than one table in its scope, so the predicate could not be
// attributed to any single table. It never satisfies a rule and never
// aborts validation.
type AmbiguousColumn struct {
	Column     string   `json:"column"`
	ScopePath  string   `json:"scope_path"`
	Candidates []string `json:"candidates"`
}

// ValidationResult is the outcome of validating one SQL query against a
// rule set. It is a pure value: safe to serialize and to compare across
// repeated validations of the same input.
type ValidationResult struct {
	// Passed is true iff no violations were found.
	Passed bool `json:"passed"`

	// Violations lists every unsatisfied (table occurrence, rule) pair,
	// in rule declaration order then tree order.
	Violations []Violation `json:"violations"`

	// ValidatedTables lists the ruled tables that appear in the query,
	// sorted.
	ValidatedTables []string `json:"validated_tables"`

	// TableUsage maps each ruled table to every scope path where it
	// appears, regardless of whether its filters were found.
	TableUsage map[string][]string `json:"table_usage"`

	// AppliedFilters maps "table.column" to the predicate that proved
	// the corresponding rule.
	AppliedFilters map[string]AppliedFilter `json:"applied_filters"`

	// Ambiguities collects bare-column predicates that matched several
	// tables and were therefore discounted.
	Ambiguities []AmbiguousColumn `json:"ambiguities,omitempty"`
}

// HasViolations returns true if validation found any missing filter.
//
// Useful for CI-style callers:
//
//	if result.HasViolations() {
//	    os.Exit(1)
//	}
func (r *ValidationResult) HasViolations() bool {
	return len(r.Violations) > 0
}

// ViolationsForTable returns the violations recorded against the given
// physical table.
func (r *ValidationResult) ViolationsForTable(table string) []Violation {
	filtered := make([]Violation, 0)
	for _, v := range r.Violations {
		if v.Table == table {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// String returns a one-line human-readable summary.
//
// Example output:
//
//	Validation FAILED: 2 violation(s) across 3 validated table(s)
func (r *ValidationResult) String() string {
	status := "PASSED"
	if !r.Passed {
		status = "FAILED"
	}
	return fmt.Sprintf(
		"Validation %s: %d violation(s) across %d validated table(s)",
		status, len(r.Violations), len(r.ValidatedTables),
	)
}
