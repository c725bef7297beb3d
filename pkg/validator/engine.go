package validator

import (
	"context"
	"fmt"

	"github.com/nsxbet/sql-filter-validator/pkg/scope"
	"github.com/nsxbet/sql-filter-validator/pkg/types"
)

// engine checks every rule against a completed scope tree. One engine
// serves one validation run; nothing is shared across runs.
type engine struct {
	tree  *scope.Tree
	rules []types.FilterRule

	violations  []types.Violation
	validated   map[string]bool
	usage       map[string][]string
	applied     map[string]types.AppliedFilter
	ambiguities []types.AmbiguousColumn
	ambigSeen   map[string]bool
}

func newEngine(tree *scope.Tree, rules []types.FilterRule) *engine {
	return &engine{
		tree:      tree,
		rules:     rules,
		validated: map[string]bool{},
		usage:     map[string][]string{},
		applied:   map[string]types.AppliedFilter{},
		ambigSeen: map[string]bool{},
	}
}

// checkBindings verifies that every qualified predicate column is bound to
// a table somewhere in its visible scope chain. An unbound alias is a
// SQL-correctness problem and aborts the run before any rule is checked.
func (e *engine) checkBindings() error {
	for _, s := range e.tree.Scopes {
		for _, p := range s.Predicates {
			if p.Column.Table == "" {
				continue
			}
			if _, err := e.tree.Resolve(p.Column, p.Scope); err != nil {
				return err
			}
		}
	}
	return nil
}

// run checks rules in declaration order. The context is consulted between
// rules; cancellation returns the partial result together with ctx.Err().
func (e *engine) run(ctx context.Context) (*types.ValidationResult, error) {
	for _, rule := range e.rules {
		select {
		case <-ctx.Done():
			return e.result(), ctx.Err()
		default:
		}
		if err := e.checkRule(rule); err != nil {
			return nil, err
		}
	}
	return e.result(), nil
}

func (e *engine) checkRule(rule types.FilterRule) error {
	occurrences := e.tree.PhysicalTables(rule.Table)
	if len(occurrences) == 0 {
		// The engine is rule-driven: tables the query never touches are
		// ignored, and so are rules whose table is absent.
		return nil
	}

	e.validated[rule.Table] = true
	if _, ok := e.usage[rule.Table]; !ok {
		for _, occ := range occurrences {
			e.usage[rule.Table] = append(e.usage[rule.Table], e.describeOccurrence(occ))
		}
	}

	for _, occ := range occurrences {
		proof, nearMisses, err := e.searchProof(occ, rule)
		if err != nil {
			return err
		}
		if proof != nil {
			// One proof per rule is enough; later occurrences keep their
			// own proofs but the first one is reported.
			if _, ok := e.applied[rule.Key()]; !ok {
				e.applied[rule.Key()] = *proof
			}
			continue
		}
		e.violations = append(e.violations, types.Violation{
			Rule:          rule,
			Table:         rule.Table,
			Column:        rule.Column,
			ScopePath:     e.tree.Path(occ.Scope),
			MissingFilter: fmt.Sprintf("%s %s %s", rule.Column, rule.Operator, rule.Value),
			FoundFilters:  nearMisses,
			Suggestion:    suggestionFor(rule),
		})
	}
	return nil
}

// searchProof walks the occurrence's scope chain, innermost first, looking
// for a predicate that provably filters this occurrence per the rule. It
// returns the first satisfying predicate, or the near misses (predicates
// on the right column with the wrong operator or value) when none does.
func (e *engine) searchProof(occ scope.TableReference, rule types.FilterRule) (*types.AppliedFilter, []string, error) {
	var nearMisses []string

	for _, sid := range e.tree.Scopes[occ.Scope].Ancestry {
		for _, p := range e.tree.Scopes[sid].Predicates {
			if p.Column.Name != rule.Column {
				continue
			}

			res, err := e.tree.Resolve(p.Column, p.Scope)
			if err != nil {
				return nil, nil, err
			}
			if res.Ambiguous {
				// An ambiguous bare column never proves a rule; record the
				// signal and move on.
				e.recordAmbiguity(p, res)
				continue
			}
			if !covers(res, occ) {
				continue
			}

			if predicateMatches(p, rule) {
				value := p.Value
				if p.Op == types.OpIn {
					value = rule.Value
				}
				return &types.AppliedFilter{
					Table:     rule.Table,
					Column:    rule.Column,
					Operator:  p.Op,
					Value:     value,
					ScopePath: e.tree.Path(sid),
					Source:    p.Source,
				}, nil, nil
			}
			nearMisses = append(nearMisses, p.String())
		}
	}
	return nil, nearMisses, nil
}

// covers reports whether the resolution includes the given occurrence.
// Occurrence identity is (scope, alias): the same table joined twice in
// one scope is two distinct occurrences.
func covers(res scope.Resolution, occ scope.TableReference) bool {
	for _, rt := range res.Tables {
		if rt.Scope == occ.Scope && rt.Alias == occ.Alias {
			return true
		}
	}
	return false
}

// predicateMatches applies the rule's matching semantics: operators must
// match exactly and values compare strictly, with no coercion. For IN, the
// rule's value must be a member of the predicate's list.
func predicateMatches(p scope.Predicate, rule types.FilterRule) bool {
	if p.Op != rule.Operator {
		return false
	}
	if p.Op == types.OpIn {
		for _, v := range p.Values {
			if v.Equal(rule.Value) {
				return true
			}
		}
		return false
	}
	return p.Value.Equal(rule.Value)
}

func (e *engine) recordAmbiguity(p scope.Predicate, res scope.Resolution) {
	path := e.tree.Path(p.Scope)
	key := p.Column.Name + "@" + path
	if e.ambigSeen[key] {
		return
	}
	e.ambigSeen[key] = true
	e.ambiguities = append(e.ambiguities, types.AmbiguousColumn{
		Column:     p.Column.Name,
		ScopePath:  path,
		Candidates: res.Candidates,
	})
}

func (e *engine) describeOccurrence(occ scope.TableReference) string {
	path := e.tree.Path(occ.Scope)
	if occ.Alias != occ.Table {
		return fmt.Sprintf("%s as %s", path, occ.Alias)
	}
	return path
}
