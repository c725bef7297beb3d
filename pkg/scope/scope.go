// Package scope builds and queries the scope tree of a parsed query.
//
// A scope is one SELECT-level unit: the main query, a CTE body, a derived
// table, or a set-operation arm. Each scope records the table references it
// introduces, the simple predicates attached to it (WHERE, JOIN ON, HAVING),
// and the columns its projection passes through unchanged. Scopes live in an
// arena indexed by integer id with parent back-references, so traversal
// needs no pointer chasing and the tree is trivially acyclic.
package scope

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/nsxbet/sql-filter-validator/pkg/sqlast"
	"github.com/nsxbet/sql-filter-validator/pkg/types"
)

// DefaultMaxDepth bounds query nesting. Real queries sit far below this;
// the guard exists to fail closed on pathological inputs instead of
// recursing without bound.
const DefaultMaxDepth = 64

// ErrTooDeeplyNested is returned when building a scope tree deeper than the
// configured maximum.
var ErrTooDeeplyNested = errors.New("query nesting exceeds maximum depth")

// ID indexes a scope within its Tree. None marks the absent parent of the
// root scope and unlinked table references.
type ID int

// None is the null scope id.
const None ID = -1

// Tree is the arena of scopes for one query.
type Tree struct {
	Scopes []*QueryScope
}

// QueryScope is one SELECT-level unit.
type QueryScope struct {
	ID       ID
	Name     string // CTE name or derived-table alias; empty for root and set-op arms
	Parent   ID
	Children []ID

	Tables     []TableReference
	Predicates []Predicate
	Projection Projection

	// Ancestry lists this scope first, then each parent up to the root.
	// Computed once at build time so alias lookup and proof search walk a
	// flat vector instead of re-deriving the chain.
	Ancestry []ID

	// ctes maps CTE names declared by this scope's WITH clause to their
	// scopes. Visible to this scope and all descendants.
	ctes map[string]ID
}

// TableReference is one FROM or JOIN item in a scope.
//
// For a physical table, Table is the literal name and Ref is None. For a
// CTE reference or derived table, Ref links to the defining scope. Alias
// defaults to the table name when the item is unaliased; SQL guarantees
// alias uniqueness within a scope, so (Scope, Alias) identifies an
// occurrence.
type TableReference struct {
	Table string
	Alias string
	Scope ID
	Ref   ID
}

// IsPhysical reports whether the reference names a physical table rather
// than a CTE or derived table.
func (r TableReference) IsPhysical() bool {
	return r.Ref == None
}

// Predicate is a simple comparison extracted from a WHERE, JOIN ON, or
// HAVING clause. Compound expressions are split on AND; OR and NOT stop
// decomposition, so predicates under them never appear here.
type Predicate struct {
	Column sqlast.ColumnRef
	Op     types.Operator
	Value  types.Value
	Values []types.Value // set for IN lists
	Source string        // WHERE, JOIN, HAVING
	Scope  ID
}

// String renders the predicate as it would appear in SQL.
func (p Predicate) String() string {
	col := p.Column.Name
	if p.Column.Table != "" {
		col = p.Column.Table + "." + col
	}
	if p.Op == types.OpIn {
		parts := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			parts = append(parts, v.String())
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s %s %s", col, p.Op, p.Value)
}

// Projection records which columns a scope exposes unchanged to its
// consumers. A column projected under a different name, or computed, is
// absent: outer filters on it cannot be attributed inward.
type Projection struct {
	// All is set for SELECT *.
	All bool

	// Columns maps each plainly projected column name to its qualifier
	// within the scope (empty for bare references).
	Columns map[string]string

	// Opaque marks scopes with no usable projection, such as
	// set-operation containers.
	Opaque bool
}

// Build walks a parsed statement and produces its scope tree. maxDepth
// bounds nesting; values <= 0 select DefaultMaxDepth.
func Build(stmt *sqlast.SelectStmt, maxDepth int) (*Tree, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	b := &builder{tree: &Tree{}, maxDepth: maxDepth}
	if _, err := b.buildScope(stmt, None, "", 0); err != nil {
		return nil, err
	}
	return b.tree, nil
}

// Path renders the scope's position as a chain of names from the root,
// e.g. "query > active_users" for a table inside a CTE.
func (t *Tree) Path(id ID) string {
	var parts []string
	for cur := id; cur != None; cur = t.Scopes[cur].Parent {
		s := t.Scopes[cur]
		name := s.Name
		if s.Parent == None {
			name = "query"
		} else if name == "" {
			name = fmt.Sprintf("subquery#%d", s.ID)
		}
		parts = append([]string{name}, parts...)
	}
	return strings.Join(parts, " > ")
}

// PhysicalTables returns every physical reference to the named table, in
// tree order.
func (t *Tree) PhysicalTables(name string) []TableReference {
	var refs []TableReference
	for _, s := range t.Scopes {
		for _, ref := range s.Tables {
			if ref.IsPhysical() && ref.Table == name {
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

type builder struct {
	tree     *Tree
	maxDepth int
}

func (b *builder) newScope(parent ID, name string) *QueryScope {
	id := ID(len(b.tree.Scopes))
	s := &QueryScope{
		ID:     id,
		Name:   name,
		Parent: parent,
		ctes:   map[string]ID{},
	}
	s.Ancestry = append(s.Ancestry, id)
	if parent != None {
		p := b.tree.Scopes[parent]
		s.Ancestry = append(s.Ancestry, p.Ancestry...)
		p.Children = append(p.Children, id)
	}
	b.tree.Scopes = append(b.tree.Scopes, s)
	return s
}

func (b *builder) buildScope(stmt *sqlast.SelectStmt, parent ID, name string, depth int) (ID, error) {
	if depth > b.maxDepth {
		return None, errors.Wrapf(ErrTooDeeplyNested, "limit %d", b.maxDepth)
	}

	s := b.newScope(parent, name)

	// CTEs are built before the FROM items that may consume them, so the
	// name binding exists by the time a reference is resolved. Later CTEs
	// in the same WITH clause see earlier ones through the binding map.
	for _, cte := range stmt.With {
		cid, err := b.buildScope(cte.Query, s.ID, cte.Name, depth+1)
		if err != nil {
			return None, err
		}
		s.ctes[cte.Name] = cid
	}

	if stmt.IsSetOperation() {
		// Each arm is validated in its own scope; the container exposes
		// no usable projection, so outer filters never expand through it.
		s.Projection = Projection{Opaque: true}
		for _, arm := range []*sqlast.SelectStmt{stmt.Left, stmt.Right} {
			if arm == nil {
				continue
			}
			if _, err := b.buildScope(arm, s.ID, "", depth+1); err != nil {
				return None, err
			}
		}
		return s.ID, nil
	}

	for _, item := range stmt.From {
		if err := b.addFromItem(s, item, depth); err != nil {
			return None, err
		}
	}

	if err := b.decompose(s, stmt.Where, "WHERE", depth); err != nil {
		return None, err
	}
	if err := b.decompose(s, stmt.Having, "HAVING", depth); err != nil {
		return None, err
	}

	s.Projection = projectionOf(stmt.Items)
	return s.ID, nil
}

func (b *builder) addFromItem(s *QueryScope, item sqlast.FromItem, depth int) error {
	switch it := item.(type) {
	case *sqlast.TableName:
		alias := it.Alias
		if alias == "" {
			alias = it.Name
		}
		ref := TableReference{Table: it.Name, Alias: alias, Scope: s.ID, Ref: None}
		if cid, ok := b.lookupCTE(s.ID, it.Name); ok {
			ref.Ref = cid
		}
		s.Tables = append(s.Tables, ref)
	case *sqlast.Subquery:
		cid, err := b.buildScope(it.Query, s.ID, it.Alias, depth+1)
		if err != nil {
			return err
		}
		s.Tables = append(s.Tables, TableReference{
			Table: it.Alias,
			Alias: it.Alias,
			Scope: s.ID,
			Ref:   cid,
		})
	case *sqlast.Join:
		if it.Left != nil {
			if err := b.addFromItem(s, it.Left, depth); err != nil {
				return err
			}
		}
		if it.Right != nil {
			if err := b.addFromItem(s, it.Right, depth); err != nil {
				return err
			}
		}
		if err := b.decompose(s, it.On, "JOIN", depth); err != nil {
			return err
		}
	}
	return nil
}

// lookupCTE finds a CTE binding visible from the given scope, walking the
// ancestry so inner scopes see enclosing WITH clauses.
func (b *builder) lookupCTE(at ID, name string) (ID, bool) {
	for _, sid := range b.tree.Scopes[at].Ancestry {
		if cid, ok := b.tree.Scopes[sid].ctes[name]; ok {
			return cid, true
		}
	}
	return None, false
}

// decompose splits a boolean expression into scope-attached predicates.
// AND splits into independent predicates; OR and NOT provide no guarantee
// and stop decomposition. Subqueries found anywhere still become scopes so
// the tables inside them are enumerated.
func (b *builder) decompose(s *QueryScope, e sqlast.Expr, source string, depth int) error {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *sqlast.BoolExpr:
		if x.Op == sqlast.BoolAnd {
			for _, arg := range x.Args {
				if err := b.decompose(s, arg, source, depth); err != nil {
					return err
				}
			}
			return nil
		}
		return b.collectSubqueries(s, x.Args, depth)
	case *sqlast.Comparison:
		return b.addComparison(s, x, source, depth)
	case *sqlast.SubqueryExpr:
		_, err := b.buildScope(x.Query, s.ID, "", depth+1)
		return err
	default:
		return nil
	}
}

// collectSubqueries descends expressions that yield no predicates, building
// scopes for any subqueries they contain.
func (b *builder) collectSubqueries(s *QueryScope, exprs []sqlast.Expr, depth int) error {
	for _, e := range exprs {
		switch x := e.(type) {
		case *sqlast.SubqueryExpr:
			if _, err := b.buildScope(x.Query, s.ID, "", depth+1); err != nil {
				return err
			}
		case *sqlast.BoolExpr:
			if err := b.collectSubqueries(s, x.Args, depth); err != nil {
				return err
			}
		case *sqlast.Comparison:
			if err := b.collectSubqueries(s, []sqlast.Expr{x.Left, x.Right}, depth); err != nil {
				return err
			}
		case *sqlast.ListExpr:
			if err := b.collectSubqueries(s, x.Items, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

// addComparison records a simple column-vs-literal comparison as a
// predicate. Column-vs-column comparisons (join conditions) and anything
// involving an unknown operand are skipped.
func (b *builder) addComparison(s *QueryScope, cmp *sqlast.Comparison, source string, depth int) error {
	if err := b.collectSubqueries(s, []sqlast.Expr{cmp.Left, cmp.Right}, depth); err != nil {
		return err
	}

	leftCol, leftIsCol := cmp.Left.(*sqlast.ColumnRef)
	rightCol, rightIsCol := cmp.Right.(*sqlast.ColumnRef)
	if leftIsCol && rightIsCol {
		return nil
	}

	if cmp.Op == types.OpIn {
		if !leftIsCol {
			return nil
		}
		list, ok := cmp.Right.(*sqlast.ListExpr)
		if !ok {
			return nil
		}
		values := make([]types.Value, 0, len(list.Items))
		for _, item := range list.Items {
			lit, ok := item.(*sqlast.Literal)
			if !ok {
				return nil
			}
			values = append(values, lit.Value)
		}
		s.Predicates = append(s.Predicates, Predicate{
			Column: *leftCol,
			Op:     types.OpIn,
			Values: values,
			Source: source,
			Scope:  s.ID,
		})
		return nil
	}

	if leftIsCol {
		if lit, ok := cmp.Right.(*sqlast.Literal); ok {
			s.Predicates = append(s.Predicates, Predicate{
				Column: *leftCol,
				Op:     cmp.Op,
				Value:  lit.Value,
				Source: source,
				Scope:  s.ID,
			})
		}
		return nil
	}

	if rightIsCol {
		if lit, ok := cmp.Left.(*sqlast.Literal); ok {
			s.Predicates = append(s.Predicates, Predicate{
				Column: *rightCol,
				Op:     cmp.Op.Reversed(),
				Value:  lit.Value,
				Source: source,
				Scope:  s.ID,
			})
		}
	}
	return nil
}

// projectionOf reduces a target list to passthrough bookkeeping. An entry
// projected under a new name is deliberately dropped: the original column
// is no longer reachable from outside under its own name.
func projectionOf(items []sqlast.SelectItem) Projection {
	p := Projection{Columns: map[string]string{}}
	for _, it := range items {
		if it.Star {
			p.All = true
			continue
		}
		if it.Column == nil {
			continue
		}
		out := it.Alias
		if out == "" {
			out = it.Column.Name
		}
		if out != it.Column.Name {
			continue
		}
		p.Columns[out] = it.Column.Table
	}
	return p
}
