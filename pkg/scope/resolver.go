package scope

import (
	"fmt"
	"sort"

	"github.com/nsxbet/sql-filter-validator/pkg/sqlast"
)

// UnresolvedAliasError reports a table qualifier that is bound nowhere in
// the visible scope chain. This is a SQL-correctness problem, not a filter
// violation: validation aborts with this error instead of recording a
// Violation.
type UnresolvedAliasError struct {
	Alias     string
	ScopePath string
}

// Error implements the error interface.
func (e *UnresolvedAliasError) Error() string {
	return fmt.Sprintf("alias %q is not bound to any table visible from %s", e.Alias, e.ScopePath)
}

// ResolvedTable is one physical table a column reference was attributed to.
// (Scope, Alias) identifies the concrete occurrence.
type ResolvedTable struct {
	Table string
	Scope ID
	Alias string
}

// Resolution is the outcome of resolving a column reference.
//
// Tables holds the physical occurrences the reference provably filters.
// Ambiguous is set when a bare column matched several tables; Candidates
// then lists their names and Tables stays empty — an ambiguous reference
// never proves anything.
type Resolution struct {
	Tables     []ResolvedTable
	Ambiguous  bool
	Candidates []string
}

// Resolve maps a column reference written in the given scope back to the
// physical table occurrences it filters.
//
// Qualified references look the alias up in the writing scope and then in
// each enclosing scope (an inner alias shadows an outer one); a qualifier
// bound nowhere yields *UnresolvedAliasError. Bare references resolve only
// against the writing scope's own table list. References landing on a CTE
// or derived table expand through it only while the projection passes the
// column through unchanged; a broken link resolves to nothing rather than
// guessing.
func (t *Tree) Resolve(col sqlast.ColumnRef, at ID) (Resolution, error) {
	if col.Table != "" {
		ref, ok := t.lookupAlias(at, col.Table)
		if !ok {
			return Resolution{}, &UnresolvedAliasError{Alias: col.Table, ScopePath: t.Path(at)}
		}
		return t.expand(ref, col.Name, 0), nil
	}

	s := t.Scopes[at]
	switch len(s.Tables) {
	case 0:
		return Resolution{}, nil
	case 1:
		return t.expand(s.Tables[0], col.Name, 0), nil
	default:
		names := make([]string, 0, len(s.Tables))
		seen := map[string]bool{}
		for _, ref := range s.Tables {
			if !seen[ref.Table] {
				seen[ref.Table] = true
				names = append(names, ref.Table)
			}
		}
		sort.Strings(names)
		return Resolution{Ambiguous: true, Candidates: names}, nil
	}
}

// lookupAlias searches the ancestry vector for a table reference with the
// given alias. The first hit wins, which implements shadowing: an alias
// redefined in an inner scope hides the outer binding.
func (t *Tree) lookupAlias(at ID, alias string) (TableReference, bool) {
	for _, sid := range t.Scopes[at].Ancestry {
		for _, ref := range t.Scopes[sid].Tables {
			if ref.Alias == alias {
				return ref, true
			}
		}
	}
	return TableReference{}, false
}

// expand follows a table reference down to physical occurrences, tracking
// column passthrough across each scope boundary. The link is treated as
// broken (empty resolution, not an error) whenever the inner scope does
// not provably carry the column: opaque projections, renamed or computed
// columns, and unqualified passthrough over several inner tables all fail
// closed.
func (t *Tree) expand(ref TableReference, column string, depth int) Resolution {
	if ref.IsPhysical() {
		return Resolution{Tables: []ResolvedTable{{
			Table: ref.Table,
			Scope: ref.Scope,
			Alias: ref.Alias,
		}}}
	}

	// The scope tree is acyclic, but the guard keeps a malformed tree from
	// looping.
	if depth > len(t.Scopes) {
		return Resolution{}
	}

	inner := t.Scopes[ref.Ref]
	if inner.Projection.Opaque {
		return Resolution{}
	}

	qualifier, ok := passthroughQualifier(inner.Projection, column)
	if !ok {
		return Resolution{}
	}

	if qualifier != "" {
		iref, found := t.lookupAlias(inner.ID, qualifier)
		if !found {
			return Resolution{}
		}
		return t.expand(iref, column, depth+1)
	}

	if len(inner.Tables) != 1 {
		return Resolution{}
	}
	return t.expand(inner.Tables[0], column, depth+1)
}

// passthroughQualifier returns the qualifier under which the projection
// carries the column, preferring an explicit entry over SELECT *.
func passthroughQualifier(p Projection, column string) (string, bool) {
	if q, ok := p.Columns[column]; ok {
		return q, true
	}
	if p.All {
		return "", true
	}
	return "", false
}
