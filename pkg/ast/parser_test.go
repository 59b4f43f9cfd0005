package ast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/ast"
)

func parseQuery(t *testing.T, src string) *ast.Query {
	t.Helper()
	stmt, err := ast.NewParser(src).Parse()
	require.NoError(t, err)
	q, ok := stmt.(*ast.Query)
	require.True(t, ok, "expected *ast.Query, got %T", stmt)
	return q
}

func TestParseSimpleMatchReturn(t *testing.T) {
	q := parseQuery(t, `MATCH (n:Person) WHERE n.age > 21 RETURN n.name AS name LIMIT 10`)
	require.Len(t, q.Clauses, 2)

	match, ok := q.Clauses[0].(*ast.MatchClause)
	require.True(t, ok)
	require.Len(t, match.Patterns, 1)
	require.Equal(t, "n", match.Patterns[0].Nodes[0].Variable)
	require.Equal(t, []string{"Person"}, match.Patterns[0].Nodes[0].Labels)
	require.NotNil(t, match.Where)

	ret, ok := q.Clauses[1].(*ast.ReturnClause)
	require.True(t, ok)
	require.Len(t, ret.Items, 1)
	require.Equal(t, "name", ret.Items[0].Alias)
	require.NotNil(t, ret.Limit)
}

func TestParseRelationshipPattern(t *testing.T) {
	q := parseQuery(t, `MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN a, b`)
	match := q.Clauses[0].(*ast.MatchClause)
	pat := match.Patterns[0]
	require.Len(t, pat.Nodes, 2)
	require.Len(t, pat.Edges, 1)
	require.Equal(t, []string{"KNOWS"}, pat.Edges[0].Types)
	require.Equal(t, ast.EdgeOutgoing, pat.Edges[0].Direction)
}

func TestParseCreateClause(t *testing.T) {
	q := parseQuery(t, `CREATE (n:Person {name: "Alice", age: 30})`)
	create, ok := q.Clauses[0].(*ast.CreateClause)
	require.True(t, ok)
	node := create.Patterns[0].Nodes[0]
	require.Equal(t, []string{"Person"}, node.Labels)
	require.Len(t, node.Properties, 2)
}

func TestParseSetAndDelete(t *testing.T) {
	q := parseQuery(t, `MATCH (n:Person) SET n.age = 31, n:Adult REMOVE n.nickname DETACH DELETE n`)
	require.Len(t, q.Clauses, 4)
	set := q.Clauses[1].(*ast.SetClause)
	require.Equal(t, ast.SetProperty, set.Items[0].Kind)
	require.Equal(t, ast.SetAddLabels, set.Items[1].Kind)

	remove := q.Clauses[2].(*ast.RemoveClause)
	require.Equal(t, "nickname", remove.Items[0].Property)

	del := q.Clauses[3].(*ast.DeleteClause)
	require.True(t, del.Detach)
}

func TestParseUnionWithOuterLimit(t *testing.T) {
	q := parseQuery(t, `MATCH (n:Person) RETURN n.name UNION MATCH (n:Company) RETURN n.name LIMIT 5`)
	require.Len(t, q.SetOps, 1)
	require.Equal(t, ast.SetUnion, q.SetOps[0].Kind)
	require.NotNil(t, q.OuterLimit, "trailing LIMIT after a UNION belongs to the composed query")
	require.Nil(t, q.SetOps[0].Right.OuterLimit)
}

func TestParseParenthesizedUnionBranches(t *testing.T) {
	q := parseQuery(t, `(MATCH (a:Account) RETURN a LIMIT 3) UNION ALL (MATCH (m:Merchant) RETURN m LIMIT 2) LIMIT 4`)

	require.Len(t, q.Clauses, 2)
	ret, ok := q.Clauses[1].(*ast.ReturnClause)
	require.True(t, ok)
	require.NotNil(t, ret.Limit)

	require.Len(t, q.SetOps, 1)
	require.Equal(t, ast.SetUnionAll, q.SetOps[0].Kind)

	right := q.SetOps[0].Right
	require.Len(t, right.Clauses, 2)
	rightRet, ok := right.Clauses[1].(*ast.ReturnClause)
	require.True(t, ok)
	require.NotNil(t, rightRet.Limit)
	require.Nil(t, right.OuterLimit, "the right branch's own LIMIT 2 is scoped inside its parens")

	require.NotNil(t, q.OuterLimit, "the trailing LIMIT 4 applies to the composed UNION ALL result")
}

func TestParseCaseExpression(t *testing.T) {
	q := parseQuery(t, `MATCH (n:Person) RETURN CASE WHEN n.age > 18 THEN "adult" ELSE "minor" END AS bucket`)
	ret := q.Clauses[1].(*ast.ReturnClause)
	caseExpr, ok := ret.Items[0].Expr.(*ast.CaseExpression)
	require.True(t, ok)
	require.Len(t, caseExpr.Whens, 1)
	require.NotNil(t, caseExpr.Else)
}

func TestParseAggregateFunctionCall(t *testing.T) {
	q := parseQuery(t, `MATCH (n:Person) RETURN COUNT(*) AS total, COUNT(DISTINCT n.city) AS cities`)
	ret := q.Clauses[1].(*ast.ReturnClause)
	total := ret.Items[0].Expr.(*ast.FunctionCall)
	require.True(t, total.Star)
	cities := ret.Items[1].Expr.(*ast.FunctionCall)
	require.True(t, cities.Distinct)
}

func TestParseTransactionControl(t *testing.T) {
	stmt, err := ast.NewParser(`BEGIN`).Parse()
	require.NoError(t, err)
	tc, ok := stmt.(*ast.TxnControlStatement)
	require.True(t, ok)
	require.Equal(t, ast.TxnBegin, tc.Kind)
}

func TestParseCreateSchemaDDL(t *testing.T) {
	stmt, err := ast.NewParser(`CREATE SCHEMA IF NOT EXISTS reporting`).Parse()
	require.NoError(t, err)
	ddl, ok := stmt.(*ast.DDLStatement)
	require.True(t, ok)
	require.Equal(t, ast.DDLCreateSchema, ddl.Kind)
	require.True(t, ddl.IfNotExists)
	require.Equal(t, "reporting", ddl.Name)
}

func TestParseGrantRevoke(t *testing.T) {
	stmt, err := ast.NewParser(`GRANT ROLE admin TO alice`).Parse()
	require.NoError(t, err)
	dcl := stmt.(*ast.DCLStatement)
	require.Equal(t, ast.DCLGrantRole, dcl.Kind)
	require.Equal(t, "admin", dcl.RoleName)
	require.Equal(t, "alice", dcl.ToUser)

	stmt2, err := ast.NewParser(`REVOKE ROLE admin FROM alice`).Parse()
	require.NoError(t, err)
	dcl2 := stmt2.(*ast.DCLStatement)
	require.Equal(t, ast.DCLRevokeRole, dcl2.Kind)
}

func TestParseExistsSubquery(t *testing.T) {
	q := parseQuery(t, `MATCH (n:Person) WHERE EXISTS { MATCH (n)-[:KNOWS]->(m:Person) RETURN m } RETURN n`)
	match := q.Clauses[0].(*ast.MatchClause)
	exists, ok := match.Where.(*ast.ExistsExpression)
	require.True(t, ok)
	require.NotNil(t, exists.Query)
}

func TestParseWithChaining(t *testing.T) {
	q := parseQuery(t, `MATCH (n:Person) WITH n, COUNT(*) AS c WHERE c > 1 RETURN n ORDER BY c DESC SKIP 5 LIMIT 10`)
	require.Len(t, q.Clauses, 3)
	withClause, ok := q.Clauses[1].(*ast.WithClause)
	require.True(t, ok)
	require.NotNil(t, withClause.Where)

	ret, ok := q.Clauses[2].(*ast.ReturnClause)
	require.True(t, ok)
	require.Len(t, ret.OrderBy, 1)
	require.True(t, ret.OrderBy[0].Desc)
	require.NotNil(t, ret.Skip)
	require.NotNil(t, ret.Limit)
}

func TestParseSessionSetSchema(t *testing.T) {
	stmt, err := ast.NewParser(`SESSION SET SCHEMA main`).Parse()
	require.NoError(t, err)
	s, ok := stmt.(*ast.SessionSetStatement)
	require.True(t, ok)
	require.Equal(t, ast.SessionSetSchema, s.Kind)
	require.Equal(t, []string{"main"}, s.PathSegments)
}

func TestParseSessionSetGraphRelative(t *testing.T) {
	stmt, err := ast.NewParser(`SESSION SET GRAPH social`).Parse()
	require.NoError(t, err)
	s, ok := stmt.(*ast.SessionSetStatement)
	require.True(t, ok)
	require.Equal(t, ast.SessionSetGraph, s.Kind)
	require.Equal(t, []string{"social"}, s.PathSegments)
}

func TestParseSessionSetGraphFullPath(t *testing.T) {
	stmt, err := ast.NewParser(`SESSION SET GRAPH /main/social`).Parse()
	require.NoError(t, err)
	s, ok := stmt.(*ast.SessionSetStatement)
	require.True(t, ok)
	require.Equal(t, []string{"main", "social"}, s.PathSegments)
}

func TestParseSessionSetGraphRejectsCurrentGraph(t *testing.T) {
	_, err := ast.NewParser(`SESSION SET GRAPH CURRENT_GRAPH`).Parse()
	require.Error(t, err)
}

func TestParseSessionSetGraphRejectsUnionExpression(t *testing.T) {
	_, err := ast.NewParser(`SESSION SET GRAPH MATCH (n:Graph) RETURN n`).Parse()
	require.Error(t, err)
}
