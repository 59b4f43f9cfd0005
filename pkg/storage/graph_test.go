package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGraphCreateAndGetNode(t *testing.T) {
	g := NewGraph("/main/social")
	n := &Node{ID: "n1", Labels: []string{"Person"}, Properties: map[string]any{"name": "Ada"}}
	require.NoError(t, g.CreateNode(n))

	got, err := g.GetNode("n1")
	require.NoError(t, err)
	require.Equal(t, "Ada", got.Properties["name"])

	require.ErrorIs(t, g.CreateNode(n), ErrNodeExists)
}

func TestGraphDeleteNodeRequiresDetachWhenEdgesExist(t *testing.T) {
	g := NewGraph("/main/social")
	require.NoError(t, g.CreateNode(&Node{ID: "a", Labels: []string{"Person"}}))
	require.NoError(t, g.CreateNode(&Node{ID: "b", Labels: []string{"Person"}}))
	require.NoError(t, g.CreateEdge(&Edge{ID: "e1", StartNode: "a", EndNode: "b", Label: "KNOWS"}))

	_, err := g.DeleteNode("a")
	require.ErrorIs(t, err, ErrHasIncidentEdges)

	n, edges, err := g.DetachDeleteNode("a")
	require.NoError(t, err)
	require.Equal(t, NodeID("a"), n.ID)
	require.Len(t, edges, 1)

	_, err = g.GetNode("a")
	require.ErrorIs(t, err, ErrNodeNotFound)
	_, err = g.GetEdge("e1")
	require.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestGraphCreateEdgeRequiresExistingEndpoints(t *testing.T) {
	g := NewGraph("/main/social")
	require.NoError(t, g.CreateNode(&Node{ID: "a"}))
	err := g.CreateEdge(&Edge{ID: "e1", StartNode: "a", EndNode: "ghost", Label: "KNOWS"})
	require.ErrorIs(t, err, ErrInvalidEdge)
}

func TestGraphNodesByLabelUnion(t *testing.T) {
	g := NewGraph("/main/social")
	require.NoError(t, g.CreateNode(&Node{ID: "a", Labels: []string{"Person"}}))
	require.NoError(t, g.CreateNode(&Node{ID: "b", Labels: []string{"Company"}}))
	require.NoError(t, g.CreateNode(&Node{ID: "c", Labels: []string{"Person", "Company"}}))

	got := g.NodesByLabel([]string{"Person", "Company"})
	require.Len(t, got, 3)
}

func TestGraphCloneIsIndependent(t *testing.T) {
	g := NewGraph("/main/social")
	require.NoError(t, g.CreateNode(&Node{ID: "a", Labels: []string{"Person"}, Properties: map[string]any{"x": 1}}))

	cp := g.Clone()
	cp.nodes["a"].Properties["x"] = 2
	orig, _ := g.GetNode("a")
	require.Equal(t, 1, orig.Properties["x"])
}

func TestMemoryFacadeSaveAndGetGraph(t *testing.T) {
	f := NewMemoryFacade()
	g := NewGraph("/main/social")
	require.NoError(t, g.CreateNode(&Node{ID: "a", Labels: []string{"Person"}}))
	require.NoError(t, f.SaveGraph("/main/social", g))

	got, err := f.GetGraph("/main/social")
	require.NoError(t, err)
	require.Equal(t, 1, got.NodeCount())

	stats := f.GetCacheStats()
	require.Equal(t, 1, stats.Entries)
	require.Equal(t, uint64(1), stats.Hits)
}
