package txn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

func newManager(t *testing.T) *txn.Manager {
	t.Helper()
	w, err := wal.Open(wal.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return txn.NewManager(w)
}

func TestTransactionLifecycle(t *testing.T) {
	m := newManager(t)
	id, err := m.StartTransaction(txn.ReadCommitted)
	require.NoError(t, err)

	got, ok := m.Lookup(id)
	require.True(t, ok)
	require.Equal(t, txn.StatusActive, got.Status)

	require.NoError(t, m.LogOperation(id, wal.OpInsert, "INSERT (n:Person)"))
	require.NoError(t, m.CommitTransaction(id))

	got, _ = m.Lookup(id)
	require.Equal(t, txn.StatusCommitted, got.Status)
}

func TestCommitWithoutActiveTransactionFails(t *testing.T) {
	m := newManager(t)
	err := m.CommitTransaction(txn.ID(999))
	require.Error(t, err)
}

func TestRecoverDiscardsUncommittedTransactionAndAdvancesIDs(t *testing.T) {
	dir := t.TempDir()

	w, err := wal.Open(wal.DefaultConfig(dir))
	require.NoError(t, err)
	m := txn.NewManager(w)

	committed, err := m.StartTransaction(txn.ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, m.LogOperation(committed, wal.OpInsert, "INSERT (n:Person)"))
	require.NoError(t, m.CommitTransaction(committed))

	orphaned, err := m.StartTransaction(txn.ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, m.LogOperation(orphaned, wal.OpInsert, "INSERT (n:Person)"))
	// No commit/rollback: simulates a crash mid-transaction.
	require.NoError(t, w.Close())

	w2, err := wal.Open(wal.DefaultConfig(dir))
	require.NoError(t, err)
	t.Cleanup(func() { w2.Close() })
	m2 := txn.NewManager(w2)

	entries, err := w2.ReadAll()
	require.NoError(t, err)
	discarded := m2.Recover(entries)
	require.Equal(t, []txn.ID{orphaned}, discarded)

	got, ok := m2.Lookup(orphaned)
	require.True(t, ok)
	require.Equal(t, txn.StatusRolledBack, got.Status)

	got, ok = m2.Lookup(committed)
	require.True(t, ok)
	require.Equal(t, txn.StatusCommitted, got.Status)

	next, err := m2.StartTransaction(txn.ReadCommitted)
	require.NoError(t, err)
	require.Greater(t, next, orphaned, "recovered IDs must not be reissued")
}

func TestInFlightTracksOnlyActiveTransactions(t *testing.T) {
	m := newManager(t)
	id1, err := m.StartTransaction(txn.ReadCommitted)
	require.NoError(t, err)
	id2, err := m.StartTransaction(txn.ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, m.CommitTransaction(id1))

	inFlight := m.InFlight()
	require.Len(t, inFlight, 1)
	require.Equal(t, id2, inFlight[0])
}
