// Package pkg provides SQL filter validation functionality for Go applications.
//
// SQL Filter Validator parses a SQL query and checks that mandatory filter
// predicates (for example deleted = 0, or tenant_id = 'acme') are applied to
// the tables the query reads. Filters count wherever they provably protect
// the table: the query's own WHERE clause, a JOIN ON condition, the body of
// a CTE, or an outer query filtering a CTE or subquery alias that passes the
// column through unchanged.
//
// # Package Structure
//
// The pkg directory contains several specialized packages:
//
//   - validator: High-level API for validating queries (recommended starting point)
//   - config: Filter rule configuration loading (YAML/JSON)
//   - types: Filter rules, values, and validation result types
//   - sqlast: The normalized SELECT syntax tree the validator walks
//   - pgparser: PostgreSQL-dialect parser producing sqlast trees
//   - scope: Scope tree construction and alias resolution
//   - logger: Logging abstraction layer
//
// # Getting Started
//
// For most use cases, start with the validator package:
//
//	import (
//	    "github.com/nsxbet/sql-filter-validator/pkg/types"
//	    "github.com/nsxbet/sql-filter-validator/pkg/validator"
//	)
//
//	func main() {
//	    v := validator.New(types.FilterRule{
//	        Table:    "users",
//	        Column:   "deleted",
//	        Operator: types.OpEquals,
//	        Value:    types.IntValue(0),
//	    })
//	    result, err := v.Validate(context.Background(), sql)
//	    // Process result.Violations...
//	}
//
// # Configuration
//
// Rules can be configured via YAML/JSON files or programmatically:
//
//	v := validator.New()
//	if err := v.WithConfig("rules.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// All public APIs are safe for concurrent use by multiple goroutines.
// Validator instances can be reused across multiple validations.
//
// # Error Handling
//
// Validation distinguishes between:
//   - Missing filters (returned as Violations on ValidationResult)
//   - Queries that cannot be validated at all (returned as error from
//     Validate: parse failures, unresolvable aliases, nesting overflow)
//
// # Documentation
//
// Complete documentation and examples:
//   - Examples: examples/library-usage/
//   - Main README: README.md
package pkg
