// Package validator provides a high-level API for checking that SQL
// queries apply mandatory filter predicates to the tables they reference.
//
// A filter rule states that whenever a table is used, a specific column
// must be compared against a specific value somewhere in the query's scope
// chain: directly in a WHERE clause, in a JOIN ON condition, inside a CTE
// body, or at an outer scope filtering a CTE or derived-table alias that
// passes the column through.
//
// # Quick Start
//
//	v := validator.New(types.FilterRule{
//	    Table:    "users",
//	    Column:   "deleted",
//	    Operator: types.OpEquals,
//	    Value:    types.IntValue(0),
//	})
//
//	result, err := v.Validate(context.Background(), "SELECT * FROM users WHERE deleted = 0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(result.Passed)
//	for _, violation := range result.Violations {
//	    fmt.Printf("%s: %s\n", violation.Table, violation.Suggestion)
//	}
//
// # Using Rules From a File
//
//	v := validator.New()
//	if err := v.WithConfig("rules.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	result, err := v.Validate(ctx, sql)
package validator

import (
	"context"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/nsxbet/sql-filter-validator/pkg/config"
	"github.com/nsxbet/sql-filter-validator/pkg/pgparser"
	"github.com/nsxbet/sql-filter-validator/pkg/scope"
	"github.com/nsxbet/sql-filter-validator/pkg/types"
)

// Validator checks SQL queries against a set of filter rules.
//
// Validator is safe for concurrent use by multiple goroutines: each
// Validate call builds its own scope tree and shares nothing with other
// calls.
type Validator struct {
	config   *config.Config
	maxDepth int
}

// New creates a Validator for the given rules.
//
// When called with no rules, it attempts to load a default configuration
// from rules.yaml or config/rules.yaml; if neither exists, the rule set is
// empty and every query passes.
func New(rules ...types.FilterRule) *Validator {
	if len(rules) == 0 {
		return &Validator{
			config:   loadDefaultConfig(),
			maxDepth: scope.DefaultMaxDepth,
		}
	}

	cfg := config.DefaultConfig("inline")
	for i := range rules {
		rule := rules[i]
		cfg.Rules = append(cfg.Rules, &rule)
	}
	return &Validator{
		config:   cfg,
		maxDepth: scope.DefaultMaxDepth,
	}
}

// loadDefaultConfig attempts to load the default configuration from a
// rules file found near the working directory.
func loadDefaultConfig() *config.Config {
	path := findRulesFile()
	if path == "" {
		return config.DefaultConfig("default")
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		slog.Warn("failed to load default rules file, using empty config", "path", path, "error", err)
		return config.DefaultConfig("default")
	}
	return cfg
}

// findRulesFile searches for a rules file in conventional locations.
func findRulesFile() string {
	candidates := []string{
		"rules.yaml",
		"config/rules.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// WithConfig loads rule configuration from a YAML or JSON file.
// This replaces the current configuration.
//
// Example:
//
//	v := validator.New()
//	if err := v.WithConfig("custom-rules.yaml"); err != nil {
//	    return err
//	}
func (v *Validator) WithConfig(filename string) error {
	cfg, err := config.LoadFromFile(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to load config from %s", filename)
	}
	v.config = cfg
	return nil
}

// WithConfigObject sets a configuration object directly and returns the
// Validator for chaining.
func (v *Validator) WithConfigObject(cfg *config.Config) *Validator {
	v.config = cfg
	return v
}

// Validate parses the SQL query, builds its scope tree, and checks every
// rule against every occurrence of its table.
//
// Violations are data on the returned result, never errors. Validate
// returns an error only when the validation itself cannot proceed:
//
//   - *pgparser.ParseError: the SQL could not be parsed, or is not a
//     single SELECT statement
//   - *scope.UnresolvedAliasError: a predicate qualifier is bound to no
//     visible table
//   - scope.ErrTooDeeplyNested: the nesting guard tripped
//
// The context is consulted between rules; cancellation returns the
// partial result together with ctx.Err().
func (v *Validator) Validate(ctx context.Context, sql string, opts ...Option) (*types.ValidationResult, error) {
	options := &validateOptions{maxDepth: v.maxDepth}
	for _, opt := range opts {
		opt(options)
	}

	stmt, err := pgparser.Parse(sql)
	if err != nil {
		return nil, err
	}

	tree, err := scope.Build(stmt, options.maxDepth)
	if err != nil {
		return nil, err
	}
	slog.Debug("built scope tree", "scopes", len(tree.Scopes), "rules", len(v.config.Rules))

	eng := newEngine(tree, v.config.FilterRules())
	if err := eng.checkBindings(); err != nil {
		return nil, err
	}
	return eng.run(ctx)
}
