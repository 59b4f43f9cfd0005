package write

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/storage"
)

func strLit(s string) ast.Expression {
	return &ast.Literal{Kind: ast.LitString, Raw: s}
}

// TestInsertNodesBeforeEdgesAcrossPatterns exercises
// "INSERT (a)-[:KNOWS]->(b), (a:Person {name:'A'}), (b:Person {name:'B'})":
// the edge pattern's anonymous endpoints must resolve against the later,
// labeled patterns rather than creating placeholder empty nodes first.
func TestInsertNodesBeforeEdgesAcrossPatterns(t *testing.T) {
	graph := storage.NewGraph("test")

	edgePattern := &ast.PathPattern{
		Nodes: []*ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
		Edges: []*ast.EdgePattern{{Types: []string{"KNOWS"}, Direction: ast.EdgeOutgoing}},
	}
	aPattern := &ast.PathPattern{
		Nodes: []*ast.NodePattern{{
			Variable:   "a",
			Labels:     []string{"Person"},
			Properties: map[string]ast.Expression{"name": strLit("A")},
		}},
	}
	bPattern := &ast.PathPattern{
		Nodes: []*ast.NodePattern{{
			Variable:   "b",
			Labels:     []string{"Person"},
			Properties: map[string]ast.Expression{"name": strLit("B")},
		}},
	}

	node := &planner.PInsert{Patterns: []*ast.PathPattern{edgePattern, aPattern, bPattern}}
	exec := NewInsertExecutor(node, nil)

	ctx := &ExecutionContext{GraphPath: "main/test"}
	_, affected, err := exec.ExecuteModification(graph, ctx)
	require.NoError(t, err)
	require.Equal(t, 3, affected) // 2 nodes + 1 edge

	nodes := graph.AllNodes()
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		require.Equal(t, []string{"Person"}, n.Labels)
		require.Contains(t, []string{"A", "B"}, n.Properties["name"])
	}

	edges := graph.AllEdges()
	require.Len(t, edges, 1)
	require.Equal(t, "KNOWS", edges[0].Label)
}
