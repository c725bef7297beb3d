// Package pgparser adapts the PostgreSQL parser (libpg_query) to the
// validator's typed AST.
//
// The adapter accepts a single SELECT statement and converts the parse
// tree into pkg/sqlast nodes, reducing the parser's large node vocabulary
// to the minimal set the validator reasons about. Anything outside that
// vocabulary converts to sqlast.Unknown, which downstream code treats
// conservatively.
package pgparser

import (
	"fmt"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/nsxbet/sql-filter-validator/pkg/sqlast"
	"github.com/nsxbet/sql-filter-validator/pkg/types"
)

// ParseError represents a SQL statement that could not be parsed or is not
// a single SELECT. Validation aborts on a ParseError; there is no partial
// recovery.
type ParseError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse failure: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("parse failure: %s", e.Message)
}

// Unwrap returns the underlying parser error, if any.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses a single SELECT statement and returns its typed AST.
//
// Example:
//
//	stmt, err := pgparser.Parse("SELECT * FROM users WHERE deleted = 0")
//	if err != nil {
//	    // *ParseError: syntax error or not a single SELECT
//	}
func Parse(sql string) (*sqlast.SelectStmt, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, &ParseError{Message: "empty statement"}
	}

	result, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, &ParseError{Message: "invalid SQL", Err: err}
	}

	if len(result.Stmts) == 0 {
		return nil, &ParseError{Message: "empty statement"}
	}
	if len(result.Stmts) > 1 {
		return nil, &ParseError{Message: "expected a single statement"}
	}

	stmt := result.Stmts[0].Stmt
	if stmt == nil {
		return nil, &ParseError{Message: "empty statement"}
	}

	sel, ok := stmt.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return nil, &ParseError{Message: "only SELECT statements are supported"}
	}

	return convertSelect(sel.SelectStmt), nil
}

// convertSelect converts a SelectStmt, including set-operation containers.
func convertSelect(sel *pg_query.SelectStmt) *sqlast.SelectStmt {
	if sel == nil {
		return &sqlast.SelectStmt{}
	}

	out := &sqlast.SelectStmt{}

	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			c, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
			if !ok {
				continue
			}
			var query *sqlast.SelectStmt
			if inner, ok := c.CommonTableExpr.Ctequery.GetNode().(*pg_query.Node_SelectStmt); ok {
				query = convertSelect(inner.SelectStmt)
			} else {
				// Data-modifying CTE; nothing to validate inside.
				query = &sqlast.SelectStmt{}
			}
			out.With = append(out.With, &sqlast.CTE{
				Name:  c.CommonTableExpr.Ctename,
				Query: query,
			})
		}
	}

	// UNION/INTERSECT/EXCEPT: the node becomes a pure container.
	if sel.Larg != nil || sel.Rarg != nil {
		out.Left = convertSelect(sel.Larg)
		out.Right = convertSelect(sel.Rarg)
		return out
	}

	for _, from := range sel.FromClause {
		if item := convertFromItem(from); item != nil {
			out.From = append(out.From, item)
		}
	}

	out.Where = convertExpr(sel.WhereClause)
	out.Having = convertExpr(sel.HavingClause)

	for _, target := range sel.TargetList {
		rt, ok := target.Node.(*pg_query.Node_ResTarget)
		if !ok {
			continue
		}
		out.Items = append(out.Items, convertSelectItem(rt.ResTarget))
	}

	return out
}

// convertFromItem converts one FROM-clause node. Table-valued functions and
// other exotic range items return nil and are skipped.
func convertFromItem(node *pg_query.Node) sqlast.FromItem {
	if node == nil {
		return nil
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		item := &sqlast.TableName{Name: n.RangeVar.Relname}
		if n.RangeVar.Alias != nil {
			item.Alias = n.RangeVar.Alias.Aliasname
		}
		return item
	case *pg_query.Node_RangeSubselect:
		var query *sqlast.SelectStmt
		if inner, ok := n.RangeSubselect.Subquery.GetNode().(*pg_query.Node_SelectStmt); ok {
			query = convertSelect(inner.SelectStmt)
		} else {
			query = &sqlast.SelectStmt{}
		}
		item := &sqlast.Subquery{Query: query}
		if n.RangeSubselect.Alias != nil {
			item.Alias = n.RangeSubselect.Alias.Aliasname
		}
		return item
	case *pg_query.Node_JoinExpr:
		left := convertFromItem(n.JoinExpr.Larg)
		right := convertFromItem(n.JoinExpr.Rarg)
		if left == nil && right == nil {
			return nil
		}
		return &sqlast.Join{
			Left:  left,
			Right: right,
			On:    convertExpr(n.JoinExpr.Quals),
		}
	default:
		return nil
	}
}

// convertSelectItem reduces a projection entry to the passthrough-relevant
// shapes: star, plain column, or opaque (zero value).
func convertSelectItem(rt *pg_query.ResTarget) sqlast.SelectItem {
	if rt == nil || rt.Val == nil {
		return sqlast.SelectItem{}
	}

	switch v := rt.Val.Node.(type) {
	case *pg_query.Node_ColumnRef:
		if isStarRef(v.ColumnRef) {
			return sqlast.SelectItem{Star: true}
		}
		col := convertColumnRef(v.ColumnRef)
		if col == nil {
			return sqlast.SelectItem{}
		}
		return sqlast.SelectItem{Column: col, Alias: rt.Name}
	default:
		return sqlast.SelectItem{}
	}
}

// convertExpr converts a scalar/boolean expression. Anything the validator
// cannot reason about becomes *sqlast.Unknown.
func convertExpr(node *pg_query.Node) sqlast.Expr {
	if node == nil {
		return nil
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_BoolExpr:
		var op sqlast.BoolOp
		switch n.BoolExpr.Boolop {
		case pg_query.BoolExprType_AND_EXPR:
			op = sqlast.BoolAnd
		case pg_query.BoolExprType_OR_EXPR:
			op = sqlast.BoolOr
		case pg_query.BoolExprType_NOT_EXPR:
			op = sqlast.BoolNot
		default:
			return &sqlast.Unknown{}
		}
		args := make([]sqlast.Expr, 0, len(n.BoolExpr.Args))
		for _, arg := range n.BoolExpr.Args {
			args = append(args, convertExpr(arg))
		}
		return &sqlast.BoolExpr{Op: op, Args: args}
	case *pg_query.Node_AExpr:
		return convertAExpr(n.AExpr)
	case *pg_query.Node_ColumnRef:
		if isStarRef(n.ColumnRef) {
			return &sqlast.Unknown{}
		}
		if col := convertColumnRef(n.ColumnRef); col != nil {
			return col
		}
		return &sqlast.Unknown{}
	case *pg_query.Node_AConst:
		return &sqlast.Literal{Value: convertConst(n.AConst)}
	case *pg_query.Node_List:
		items := make([]sqlast.Expr, 0, len(n.List.Items))
		for _, item := range n.List.Items {
			items = append(items, convertExpr(item))
		}
		return &sqlast.ListExpr{Items: items}
	case *pg_query.Node_SubLink:
		var query *sqlast.SelectStmt
		if inner, ok := n.SubLink.Subselect.GetNode().(*pg_query.Node_SelectStmt); ok {
			query = convertSelect(inner.SelectStmt)
		} else {
			query = &sqlast.SelectStmt{}
		}
		return &sqlast.SubqueryExpr{Query: query}
	default:
		return &sqlast.Unknown{}
	}
}

// convertAExpr handles binary predicates: plain operators and IN lists.
func convertAExpr(expr *pg_query.A_Expr) sqlast.Expr {
	opName := aexprOperator(expr)

	switch expr.Kind {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		op, err := types.ParseOperator(opName)
		if err != nil {
			return &sqlast.Unknown{}
		}
		return &sqlast.Comparison{
			Op:    op,
			Left:  convertExpr(expr.Lexpr),
			Right: convertExpr(expr.Rexpr),
		}
	case pg_query.A_Expr_Kind_AEXPR_IN:
		// "=" is IN, "<>" is NOT IN; only the positive form is usable.
		if opName != "=" {
			return &sqlast.Unknown{}
		}
		return &sqlast.Comparison{
			Op:    types.OpIn,
			Left:  convertExpr(expr.Lexpr),
			Right: convertExpr(expr.Rexpr),
		}
	default:
		return &sqlast.Unknown{}
	}
}

func aexprOperator(expr *pg_query.A_Expr) string {
	if len(expr.Name) == 0 {
		return ""
	}
	if s, ok := expr.Name[0].Node.(*pg_query.Node_String_); ok {
		return s.String_.Sval
	}
	return ""
}

// convertColumnRef maps a ColumnRef's fields onto (table, column). For
// qualified names with more than two parts (db.schema.table.column) the
// last two are used. Returns nil when the fields are not plain strings.
func convertColumnRef(ref *pg_query.ColumnRef) *sqlast.ColumnRef {
	var parts []string
	for _, field := range ref.Fields {
		s, ok := field.Node.(*pg_query.Node_String_)
		if !ok {
			return nil
		}
		parts = append(parts, s.String_.Sval)
	}

	switch len(parts) {
	case 0:
		return nil
	case 1:
		return &sqlast.ColumnRef{Name: parts[0]}
	default:
		return &sqlast.ColumnRef{
			Table: parts[len(parts)-2],
			Name:  parts[len(parts)-1],
		}
	}
}

// isStarRef reports whether the column reference ends in "*".
func isStarRef(ref *pg_query.ColumnRef) bool {
	if len(ref.Fields) == 0 {
		return false
	}
	_, ok := ref.Fields[len(ref.Fields)-1].Node.(*pg_query.Node_AStar)
	return ok
}

// convertConst maps an A_Const onto the validator's scalar model. Numeric
// literals keep their SQL type: integers stay integers, floats stay floats.
func convertConst(c *pg_query.A_Const) types.Value {
	if c.Isnull {
		return types.NullValue()
	}

	switch v := c.Val.(type) {
	case *pg_query.A_Const_Ival:
		return types.IntValue(int64(v.Ival.Ival))
	case *pg_query.A_Const_Fval:
		f, err := strconv.ParseFloat(v.Fval.Fval, 64)
		if err != nil {
			return types.StringValue(v.Fval.Fval)
		}
		return types.FloatValue(f)
	case *pg_query.A_Const_Sval:
		return types.StringValue(v.Sval.Sval)
	case *pg_query.A_Const_Boolval:
		return types.BoolValue(v.Boolval.Boolval)
	default:
		return types.NullValue()
	}
}
