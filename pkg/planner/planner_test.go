package planner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/planner"
)

func parse(t *testing.T, src string) *ast.Query {
	t.Helper()
	stmt, err := ast.NewParser(src).Parse()
	require.NoError(t, err)
	q, ok := stmt.(*ast.Query)
	require.True(t, ok)
	return q
}

func TestBuildSimpleMatchReturn(t *testing.T) {
	q := parse(t, `MATCH (n:Person) RETURN n.name`)
	lp, err := planner.Build(q, "MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)

	proj, ok := lp.Root.(*planner.Project)
	require.True(t, ok)
	_, ok = proj.Input.(*planner.NodeScan)
	require.True(t, ok)
}

func TestBuildExpandChain(t *testing.T) {
	q := parse(t, `MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a, b`)
	lp, err := planner.Build(q, "")
	require.NoError(t, err)
	proj := lp.Root.(*planner.Project)
	filter, ok := proj.Input.(*planner.Filter) // (b:Person) label check
	require.True(t, ok)
	expand, ok := filter.Input.(*planner.Expand)
	require.True(t, ok)
	require.Equal(t, "a", expand.FromVariable)
	require.Equal(t, "b", expand.ToVariable)
}

func TestBuildPathTraversalForNonWalkMode(t *testing.T) {
	q := parse(t, `MATCH SIMPLE (a:Person)-[:KNOWS]->(b:Person)-[:KNOWS]->(c:Person) RETURN a, c`)
	lp, err := planner.Build(q, "")
	require.NoError(t, err)
	proj := lp.Root.(*planner.Project)
	trav, ok := proj.Input.(*planner.PathTraversal)
	require.True(t, ok, "SIMPLE path pattern should lower to PathTraversal, got %T", proj.Input)
	require.Equal(t, ast.PathModeSimple, trav.Mode)
	require.Equal(t, "a", trav.FromVariable)
	require.Equal(t, "c", trav.ToVariable)
	require.Len(t, trav.Elements, 2)
}

func TestPathTraversalCardinalityMultiplier(t *testing.T) {
	input := &planner.NodeScan{}
	base := input.Cardinality()
	for mode, mult := range map[ast.PathMode]int{
		ast.PathModeWalk: 20, ast.PathModeTrail: 15, ast.PathModeSimple: 10, ast.PathModeAcyclic: 5,
	} {
		trav := &planner.PathTraversal{Mode: mode, Input: input}
		require.Equal(t, base*mult, trav.Cardinality())
	}
}

func TestAggregateCardinalityNeverZero(t *testing.T) {
	agg := &planner.Aggregate{Input: &planner.NodeScan{}}
	require.GreaterOrEqual(t, agg.Cardinality(), 1)
}

func TestLowerPrefersHashExpandAboveThreshold(t *testing.T) {
	large := &planner.EdgeScan{Variable: "e"} // default cardinality 5000, above hashExpandThreshold
	expand := &planner.Expand{FromVariable: "n", ToVariable: "m", Input: large}
	lp := &planner.LogicalPlan{Root: expand}
	pp := planner.Lower(lp)
	_, isHash := pp.Root.(*planner.HashExpand)
	require.True(t, isHash)
}

func TestLowerUsesIndexedExpandForSmallInput(t *testing.T) {
	small := &planner.Limit{Count: 1, Input: &planner.NodeScan{Variable: "n", Labels: []string{"Person"}}}
	expand := &planner.Expand{FromVariable: "n", ToVariable: "m", Input: small}
	lp := &planner.LogicalPlan{Root: expand}
	pp := planner.Lower(lp)
	_, isIndexed := pp.Root.(*planner.IndexedExpand)
	require.True(t, isIndexed)
}

func TestPlanAndTraceProducesFormattedOutput(t *testing.T) {
	q := parse(t, `MATCH (n:Person) RETURN n.name LIMIT 5`)
	lp, err := planner.Build(q, "MATCH (n:Person) RETURN n.name LIMIT 5")
	require.NoError(t, err)
	trace := planner.PlanAndTrace(lp)
	out := trace.FormatTrace()
	require.Contains(t, out, "Logical Plan:")
	require.Contains(t, out, "Physical Plan:")
	require.Contains(t, out, "Summary:")
}
