package executor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/executor"
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/storage"
)

func seedGraph(t *testing.T) *storage.Graph {
	t.Helper()
	g := storage.NewGraph("")
	require.NoError(t, g.CreateNode(&storage.Node{ID: "a", Labels: []string{"Person"}, Properties: map[string]any{"name": "Ada", "age": 36.0}}))
	require.NoError(t, g.CreateNode(&storage.Node{ID: "b", Labels: []string{"Person"}, Properties: map[string]any{"name": "Bob", "age": 41.0}}))
	require.NoError(t, g.CreateNode(&storage.Node{ID: "c", Labels: []string{"Person"}, Properties: map[string]any{"name": "Cal", "age": 29.0}}))
	require.NoError(t, g.CreateEdge(&storage.Edge{ID: "e1", StartNode: "a", EndNode: "b", Label: "KNOWS"}))
	require.NoError(t, g.CreateEdge(&storage.Edge{ID: "e2", StartNode: "a", EndNode: "c", Label: "KNOWS"}))
	return g
}

func planAndRun(t *testing.T, g *storage.Graph, query string) executor.RowSet {
	t.Helper()
	stmt, err := ast.NewParser(query).Parse()
	require.NoError(t, err)
	q, ok := stmt.(*ast.Query)
	require.True(t, ok)
	lp, err := planner.Build(q, query)
	require.NoError(t, err)
	pp := planner.Lower(lp)
	ex := executor.New(g, nil)
	rows, err := ex.Run(pp.Root)
	require.NoError(t, err)
	return rows
}

func TestScanAndProject(t *testing.T) {
	g := seedGraph(t)
	rows := planAndRun(t, g, `MATCH (n:Person) RETURN n.name`)
	require.Len(t, rows, 3)
	var names []string
	for _, r := range rows {
		names = append(names, r["n.name"].AsString())
	}
	require.ElementsMatch(t, []string{"Ada", "Bob", "Cal"}, names)
}

func TestFilterByProperty(t *testing.T) {
	g := seedGraph(t)
	rows := planAndRun(t, g, `MATCH (n:Person) WHERE n.age > 30 RETURN n.name`)
	require.Len(t, rows, 2)
}

func TestExpandFindsNeighbors(t *testing.T) {
	g := seedGraph(t)
	rows := planAndRun(t, g, `MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name, b.name`)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.Equal(t, "Ada", r["a.name"].AsString())
	}
}

func TestAggregateCount(t *testing.T) {
	g := seedGraph(t)
	rows := planAndRun(t, g, `MATCH (n:Person) RETURN COUNT(n)`)
	require.Len(t, rows, 1)
	require.Equal(t, int64(3), int64(rows[0]["COUNT(n)"].AsNumber()))
}

func TestAggregateCountOverEmptyInputReturnsZeroRow(t *testing.T) {
	g := storage.NewGraph("")
	rows := planAndRun(t, g, `MATCH (n:Person) RETURN COUNT(n)`)
	require.Len(t, rows, 1)
	require.Equal(t, int64(0), int64(rows[0]["COUNT(n)"].AsNumber()))
}

func TestOrderByAndLimit(t *testing.T) {
	g := seedGraph(t)
	rows := planAndRun(t, g, `MATCH (n:Person) RETURN n.name ORDER BY n.age DESC LIMIT 1`)
	require.Len(t, rows, 1)
	require.Equal(t, "Bob", rows[0]["n.name"].AsString())
}

func TestDistinctDeduplicates(t *testing.T) {
	g := seedGraph(t)
	rows := planAndRun(t, g, `MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN DISTINCT a.name`)
	require.Len(t, rows, 1)
}

func TestExistsSubquery(t *testing.T) {
	g := seedGraph(t)
	rows := planAndRun(t, g, `MATCH (n:Person) WHERE EXISTS { MATCH (n)-[:KNOWS]->(m:Person) } RETURN n.name`)
	require.Len(t, rows, 1)
	require.Equal(t, "Ada", rows[0]["n.name"].AsString())
}

func seedChainGraph(t *testing.T) *storage.Graph {
	t.Helper()
	g := storage.NewGraph("")
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, g.CreateNode(&storage.Node{ID: storage.NodeID(id), Labels: []string{"Person"}, Properties: map[string]any{"name": id}}))
	}
	require.NoError(t, g.CreateEdge(&storage.Edge{ID: "e1", StartNode: "a", EndNode: "b", Label: "KNOWS"}))
	require.NoError(t, g.CreateEdge(&storage.Edge{ID: "e2", StartNode: "b", EndNode: "c", Label: "KNOWS"}))
	require.NoError(t, g.CreateEdge(&storage.Edge{ID: "e3", StartNode: "c", EndNode: "d", Label: "KNOWS"}))
	return g
}

func TestExpandVariableLengthHops(t *testing.T) {
	g := seedChainGraph(t)
	rows := planAndRun(t, g, `MATCH (n:Person)-[:KNOWS*1..2]->(m:Person) RETURN n.name AS n, m.name AS m`)
	var pairs []string
	for _, r := range rows {
		pairs = append(pairs, r["n"].AsString()+"->"+r["m"].AsString())
	}
	require.ElementsMatch(t, []string{"a->b", "b->c", "c->d", "a->c", "b->d"}, pairs)
}

func TestExpandFixedLengthHop(t *testing.T) {
	g := seedChainGraph(t)
	rows := planAndRun(t, g, `MATCH (n:Person)-[:KNOWS*2]->(m:Person) RETURN n.name AS n, m.name AS m`)
	var pairs []string
	for _, r := range rows {
		pairs = append(pairs, r["n"].AsString()+"->"+r["m"].AsString())
	}
	require.ElementsMatch(t, []string{"a->c", "b->d"}, pairs)
}

// seedBounceGraph is a 2-node graph with an edge each way, used to tell
// apart SIMPLE/TRAIL's repeat constraints from plain WALK semantics.
func seedBounceGraph(t *testing.T) *storage.Graph {
	t.Helper()
	g := storage.NewGraph("")
	require.NoError(t, g.CreateNode(&storage.Node{ID: "a", Labels: []string{"Person"}, Properties: map[string]any{"name": "a"}}))
	require.NoError(t, g.CreateNode(&storage.Node{ID: "b", Labels: []string{"Person"}, Properties: map[string]any{"name": "b"}}))
	require.NoError(t, g.CreateEdge(&storage.Edge{ID: "e1", StartNode: "a", EndNode: "b", Label: "KNOWS"}))
	require.NoError(t, g.CreateEdge(&storage.Edge{ID: "e2", StartNode: "b", EndNode: "a", Label: "KNOWS"}))
	return g
}

func TestPathTraversalSimpleForbidsNodeRepeat(t *testing.T) {
	g := seedBounceGraph(t)

	walkRows := planAndRun(t, g, `MATCH (n:Person)-[:KNOWS]->(m:Person)-[:KNOWS]->(o:Person) RETURN n.name AS n, m.name AS m, o.name AS o`)
	require.Len(t, walkRows, 2) // (a,b,a) and (b,a,b): WALK allows revisiting a node

	simpleRows := planAndRun(t, g, `MATCH SIMPLE (n:Person)-[:KNOWS]->(m:Person)-[:KNOWS]->(o:Person) RETURN n.name AS n, m.name AS m, o.name AS o`)
	require.Empty(t, simpleRows) // both 2-hop walks here revisit their own start node
}

func TestPathTraversalTrailForbidsEdgeRepeat(t *testing.T) {
	g := seedBounceGraph(t)

	walkRows := planAndRun(t, g, `MATCH (n:Person)-[:KNOWS]->(m:Person)-[:KNOWS]->(o:Person)-[:KNOWS]->(p:Person) RETURN n.name AS n, p.name AS p`)
	require.Len(t, walkRows, 2) // a-b-a-b and b-a-b-a: WALK allows reusing an edge

	trailRows := planAndRun(t, g, `MATCH TRAIL (n:Person)-[:KNOWS]->(m:Person)-[:KNOWS]->(o:Person)-[:KNOWS]->(p:Person) RETURN n.name AS n, p.name AS p`)
	require.Empty(t, trailRows) // the only 3-hop walks here would reuse the first edge on the third hop
}
