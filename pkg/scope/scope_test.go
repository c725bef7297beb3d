package scope

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/sql-filter-validator/pkg/pgparser"
	"github.com/nsxbet/sql-filter-validator/pkg/types"
)

func mustBuild(t *testing.T, sql string) *Tree {
	t.Helper()
	stmt, err := pgparser.Parse(sql)
	require.NoError(t, err)
	tree, err := Build(stmt, 0)
	require.NoError(t, err)
	return tree
}

func TestBuild_SingleTable(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM users WHERE deleted = 0")

	require.Len(t, tree.Scopes, 1)
	root := tree.Scopes[0]
	require.Equal(t, None, root.Parent)

	require.Len(t, root.Tables, 1)
	require.Equal(t, "users", root.Tables[0].Table)
	require.Equal(t, "users", root.Tables[0].Alias) // unaliased defaults to the name
	require.True(t, root.Tables[0].IsPhysical())

	require.Len(t, root.Predicates, 1)
	p := root.Predicates[0]
	require.Equal(t, "deleted", p.Column.Name)
	require.Equal(t, types.OpEquals, p.Op)
	require.True(t, p.Value.Equal(types.IntValue(0)))
	require.Equal(t, "WHERE", p.Source)
}

func TestBuild_AndSplits(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM users WHERE deleted = 0 AND active = 1 AND role = 'admin'")

	root := tree.Scopes[0]
	require.Len(t, root.Predicates, 3)
}

func TestBuild_OrStopsDecomposition(t *testing.T) {
	// A predicate under OR holds only on some branch; it guarantees nothing.
	tree := mustBuild(t, "SELECT * FROM users WHERE deleted = 0 OR active = 1")

	require.Empty(t, tree.Scopes[0].Predicates)
}

func TestBuild_NotStopsDecomposition(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM users WHERE NOT (deleted = 0)")

	require.Empty(t, tree.Scopes[0].Predicates)
}

func TestBuild_MixedAndOr(t *testing.T) {
	// Only the conjuncts outside the OR survive.
	tree := mustBuild(t, "SELECT * FROM users WHERE deleted = 0 AND (active = 1 OR vip = 1)")

	root := tree.Scopes[0]
	require.Len(t, root.Predicates, 1)
	require.Equal(t, "deleted", root.Predicates[0].Column.Name)
}

func TestBuild_JoinPredicates(t *testing.T) {
	tree := mustBuild(t, `
		SELECT u.id FROM users u
		JOIN orders o ON o.user_id = u.id AND o.tenant_id = 'acme'
		WHERE u.deleted = 0`)

	root := tree.Scopes[0]
	require.Len(t, root.Tables, 2)

	bySource := map[string][]Predicate{}
	for _, p := range root.Predicates {
		bySource[p.Source] = append(bySource[p.Source], p)
	}

	// o.user_id = u.id is column-vs-column and is skipped.
	require.Len(t, bySource["JOIN"], 1)
	require.Equal(t, "tenant_id", bySource["JOIN"][0].Column.Name)
	require.Len(t, bySource["WHERE"], 1)
	require.Equal(t, "deleted", bySource["WHERE"][0].Column.Name)
}

func TestBuild_ReversedComparison(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM orders WHERE 100 < amount")

	root := tree.Scopes[0]
	require.Len(t, root.Predicates, 1)
	require.Equal(t, "amount", root.Predicates[0].Column.Name)
	require.Equal(t, types.OpGreaterThan, root.Predicates[0].Op)
}

func TestBuild_InList(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM events WHERE status IN ('active', 'pending')")

	root := tree.Scopes[0]
	require.Len(t, root.Predicates, 1)
	p := root.Predicates[0]
	require.Equal(t, types.OpIn, p.Op)
	require.Len(t, p.Values, 2)
	require.True(t, p.Values[0].Equal(types.StringValue("active")))
}

func TestBuild_CTE(t *testing.T) {
	tree := mustBuild(t, `
		WITH active AS (SELECT id FROM users WHERE deleted = 0)
		SELECT * FROM active`)

	require.Len(t, tree.Scopes, 2)

	root := tree.Scopes[0]
	cte := tree.Scopes[1]
	require.Equal(t, "active", cte.Name)
	require.Equal(t, root.ID, cte.Parent)

	// The CTE body holds the physical reference; the root references the CTE.
	require.Len(t, cte.Tables, 1)
	require.True(t, cte.Tables[0].IsPhysical())
	require.Len(t, root.Tables, 1)
	require.False(t, root.Tables[0].IsPhysical())
	require.Equal(t, cte.ID, root.Tables[0].Ref)

	require.Equal(t, "query > active", tree.Path(cte.ID))
}

func TestBuild_CTEChaining(t *testing.T) {
	// A later CTE in the same WITH clause sees earlier ones.
	tree := mustBuild(t, `
		WITH a AS (SELECT id FROM users WHERE deleted = 0),
		     b AS (SELECT id FROM a)
		SELECT * FROM b`)

	var b *QueryScope
	for _, s := range tree.Scopes {
		if s.Name == "b" {
			b = s
		}
	}
	require.NotNil(t, b)
	require.Len(t, b.Tables, 1)
	require.False(t, b.Tables[0].IsPhysical(), "reference to CTE a must link to its scope")
}

func TestBuild_DerivedTable(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM (SELECT id FROM users WHERE deleted = 0) AS sub")

	require.Len(t, tree.Scopes, 2)
	root := tree.Scopes[0]
	require.Len(t, root.Tables, 1)
	require.Equal(t, "sub", root.Tables[0].Alias)
	require.False(t, root.Tables[0].IsPhysical())
}

func TestBuild_SetOperationIsOpaque(t *testing.T) {
	tree := mustBuild(t, "SELECT id FROM users UNION SELECT id FROM archived_users")

	require.Len(t, tree.Scopes, 3)
	root := tree.Scopes[0]
	require.True(t, root.Projection.Opaque)
	require.Empty(t, root.Tables)

	// Each arm is its own scope holding its own tables.
	require.Len(t, tree.Scopes[1].Tables, 1)
	require.Len(t, tree.Scopes[2].Tables, 1)
}

func TestBuild_SubqueryInWhereBecomesScope(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM orders WHERE user_id IN (SELECT id FROM users WHERE deleted = 0)")

	require.Len(t, tree.Scopes, 2)
	inner := tree.Scopes[1]
	require.Len(t, inner.Tables, 1)
	require.Equal(t, "users", inner.Tables[0].Table)
}

func TestBuild_SubqueryUnderOrStillEnumerated(t *testing.T) {
	// OR kills predicates, not table discovery.
	tree := mustBuild(t, `
		SELECT * FROM orders
		WHERE status = 'new' OR user_id IN (SELECT id FROM users)`)

	require.Len(t, tree.Scopes, 2)
	require.Equal(t, "users", tree.Scopes[1].Tables[0].Table)
}

func TestBuild_DepthGuard(t *testing.T) {
	stmt, err := pgparser.Parse(`
		SELECT * FROM (SELECT * FROM (SELECT * FROM (SELECT id FROM users) a) b) c`)
	require.NoError(t, err)

	_, err = Build(stmt, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTooDeeplyNested))

	_, err = Build(stmt, 10)
	require.NoError(t, err)
}

func TestProjection_RenameDropped(t *testing.T) {
	tree := mustBuild(t, `
		WITH v AS (SELECT deleted AS is_gone, id FROM users)
		SELECT * FROM v`)

	var cte *QueryScope
	for _, s := range tree.Scopes {
		if s.Name == "v" {
			cte = s
		}
	}
	require.NotNil(t, cte)
	require.False(t, cte.Projection.All)

	_, hasDeleted := cte.Projection.Columns["deleted"]
	require.False(t, hasDeleted, "renamed column must not pass through under the old name")
	_, hasRenamed := cte.Projection.Columns["is_gone"]
	require.False(t, hasRenamed, "rename breaks passthrough entirely")
	_, hasID := cte.Projection.Columns["id"]
	require.True(t, hasID)
}

func TestPhysicalTables(t *testing.T) {
	tree := mustBuild(t, `
		WITH active AS (SELECT id FROM users WHERE deleted = 0)
		SELECT * FROM active a JOIN users u ON u.id = a.id`)

	refs := tree.PhysicalTables("users")
	require.Len(t, refs, 2)

	require.Empty(t, tree.PhysicalTables("orders"))
}

func TestPath(t *testing.T) {
	tree := mustBuild(t, "SELECT * FROM (SELECT id FROM users) AS sub")

	require.Equal(t, "query", tree.Path(tree.Scopes[0].ID))
	require.Equal(t, "query > sub", tree.Path(tree.Scopes[1].ID))
}
