package coordinator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/coordinator"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
)

// TestWALRecoveryDiscardsUncommittedTransactionOnReopen simulates a crash
// mid-transaction (BEGIN + a write, no COMMIT) and reopens the same
// database directory, confirming the orphaned transaction comes back
// RolledBack rather than Active.
func TestWALRecoveryDiscardsUncommittedTransactionOnReopen(t *testing.T) {
	dir := t.TempDir()

	c1, err := coordinator.FromPath(dir)
	require.NoError(t, err)

	sess := c1.CreateSimpleSession("alice")
	sess.SetSchema("main")
	sess.SetGraph("g")
	require.NoError(t, c1.Facade().SaveGraph("main/g", storage.NewGraph("main/g")))

	_, err = c1.ProcessQuery(sess, "BEGIN")
	require.NoError(t, err)
	orphaned, ok := sess.Txn.CurrentTransactionID()
	require.True(t, ok)

	_, err = c1.ProcessQuery(sess, "CREATE (n:Person)")
	require.NoError(t, err)
	// No COMMIT: process "crashes" here.
	require.NoError(t, c1.Close())

	c2, err := coordinator.FromPath(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c2.Close() })

	got, ok := c2.TxnManager().Lookup(orphaned)
	require.True(t, ok)
	require.Equal(t, txn.StatusRolledBack, got.Status)

	for _, id := range c2.TxnManager().InFlight() {
		require.NotEqual(t, orphaned, id, "recovered transaction must not report as in-flight")
	}

	sess2 := c2.CreateSimpleSession("bob")
	sess2.SetSchema("main")
	sess2.SetGraph("g")
	_, err = c2.ProcessQuery(sess2, "BEGIN")
	require.NoError(t, err)
	next, ok := sess2.Txn.CurrentTransactionID()
	require.True(t, ok)
	require.Greater(t, next, orphaned, "recovered IDs must not be reissued")
}
