package coordinator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/coordinator"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	c, err := coordinator.InMemory(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSessionSetSchemaAndRelativeGraph(t *testing.T) {
	c := newTestCoordinator(t)
	sess := c.CreateSimpleSession("alice")

	_, err := c.ProcessQuery(sess, "SESSION SET SCHEMA main")
	require.NoError(t, err)
	require.Equal(t, "main", sess.CurrentSchema)

	_, err = c.ProcessQuery(sess, "SESSION SET GRAPH social")
	require.NoError(t, err)
	require.Equal(t, "social", sess.CurrentGraph)
	require.Equal(t, "main/social", sess.GraphPath())
}

func TestSessionSetGraphFullPath(t *testing.T) {
	c := newTestCoordinator(t)
	sess := c.CreateSimpleSession("alice")

	_, err := c.ProcessQuery(sess, "SESSION SET GRAPH /billing/invoices")
	require.NoError(t, err)
	require.Equal(t, "billing", sess.CurrentSchema)
	require.Equal(t, "invoices", sess.CurrentGraph)
}

func TestSessionSetGraphRelativeWithoutSchemaErrors(t *testing.T) {
	c := newTestCoordinator(t)
	sess := c.CreateSimpleSession("alice")
	sess.SetSchema("")

	_, err := c.ProcessQuery(sess, "SESSION SET GRAPH social")
	require.Error(t, err)
}

func TestSessionSetGraphRejectsCurrentGraph(t *testing.T) {
	c := newTestCoordinator(t)
	sess := c.CreateSimpleSession("alice")

	_, err := c.ProcessQuery(sess, "SESSION SET GRAPH CURRENT_GRAPH")
	require.Error(t, err)
}
