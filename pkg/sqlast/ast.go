// Package sqlast defines a small, closed set of AST node variants covering
// exactly what filter validation needs: SELECT-level structure (CTEs, FROM
// items, joins, subqueries) and simple boolean/comparison expressions.
//
// The external parser's tree is converted into these nodes at the adapter
// boundary, so the rest of the validator can switch exhaustively over node
// kinds without depending on parser library types.
package sqlast

import "github.com/nsxbet/sql-filter-validator/pkg/types"

// SelectStmt is one SELECT-level query unit.
//
// For set operations (UNION/INTERSECT/EXCEPT) Left and Right are non-nil
// and the node is a pure container: With, From, Where, Having and Items
// are empty.
type SelectStmt struct {
	With   []*CTE
	From   []FromItem
	Where  Expr
	Having Expr
	Items  []SelectItem

	Left  *SelectStmt
	Right *SelectStmt
}

// IsSetOperation reports whether the statement is a set-operation container.
func (s *SelectStmt) IsSetOperation() bool {
	return s.Left != nil || s.Right != nil
}

// CTE is a single WITH-clause entry: a named query that following scopes
// can reference as if it were a table.
type CTE struct {
	Name  string
	Query *SelectStmt
}

// FromItem is a closed set: TableName, Subquery, or Join.
type FromItem interface {
	fromItem()
}

// TableName references a physical table or a CTE by name.
// Alias is empty when the reference is unaliased.
type TableName struct {
	Name  string
	Alias string
}

// Subquery is a derived table in a FROM clause. SQL requires an alias.
type Subquery struct {
	Query *SelectStmt
	Alias string
}

// Join combines two FROM items with an optional ON condition.
type Join struct {
	Left  FromItem
	Right FromItem
	On    Expr
}

func (*TableName) fromItem() {}
func (*Subquery) fromItem()  {}
func (*Join) fromItem()      {}

// SelectItem is one projection entry, reduced to the shapes that matter
// for column passthrough: a star, or a plain column reference with an
// optional output alias. Computed expressions are represented by the zero
// value (neither Star nor Column) and contribute nothing to passthrough.
type SelectItem struct {
	Star   bool
	Column *ColumnRef
	Alias  string
}

// Expr is a closed set of expression variants.
type Expr interface {
	expr()
}

// ColumnRef is a possibly table-qualified column reference.
// Table is empty for bare references.
type ColumnRef struct {
	Table string
	Name  string
}

// Literal is a scalar constant.
type Literal struct {
	Value types.Value
}

// ListExpr is a parenthesized value list, as on the right side of IN.
type ListExpr struct {
	Items []Expr
}

// Comparison is a binary predicate: Left Op Right.
type Comparison struct {
	Op    types.Operator
	Left  Expr
	Right Expr
}

// BoolOp is a boolean connective kind.
type BoolOp int

const (
	BoolAnd BoolOp = iota
	BoolOr
	BoolNot
)

// BoolExpr combines expressions with AND, OR, or NOT.
type BoolExpr struct {
	Op   BoolOp
	Args []Expr
}

// SubqueryExpr is a subquery appearing in expression position
// (IN (SELECT ...), EXISTS (...)).
type SubqueryExpr struct {
	Query *SelectStmt
}

// Unknown stands in for any expression the validator cannot reason about.
// Predicates containing Unknown are never used to satisfy a rule.
type Unknown struct{}

func (*ColumnRef) expr()    {}
func (*Literal) expr()      {}
func (*ListExpr) expr()     {}
func (*Comparison) expr()   {}
func (*BoolExpr) expr()     {}
func (*SubqueryExpr) expr() {}
func (*Unknown) expr()      {}
