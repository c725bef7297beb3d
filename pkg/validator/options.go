package validator

import "github.com/nsxbet/sql-filter-validator/pkg/scope"

// Option is a functional option for customizing a single Validate call.
type Option func(*validateOptions)

// validateOptions holds optional configuration for a validation run.
type validateOptions struct {
	maxDepth int
}

// WithMaxDepth overrides the query nesting limit for this call.
// Values <= 0 select the default (scope.DefaultMaxDepth).
//
// Example:
//
//	result, err := v.Validate(ctx, sql, validator.WithMaxDepth(8))
func WithMaxDepth(depth int) Option {
	return func(opts *validateOptions) {
		if depth <= 0 {
			depth = scope.DefaultMaxDepth
		}
		opts.maxDepth = depth
	}
}
