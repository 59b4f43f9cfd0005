package session_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/session"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

func newTxnState(t *testing.T) (*session.TransactionState, storage.Facade) {
	t.Helper()
	w, err := wal.Open(wal.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	facade := storage.NewMemoryFacade()
	mgr := txn.NewManager(w)
	return session.NewTransactionState(mgr, facade), facade
}

func TestBeginCommitClearsActiveTransaction(t *testing.T) {
	ts, _ := newTxnState(t)
	_, err := ts.Begin()
	require.NoError(t, err)
	require.True(t, ts.HasActiveTransaction())

	require.NoError(t, ts.Commit())
	require.False(t, ts.HasActiveTransaction())
}

func TestRollbackUndoesInsertNode(t *testing.T) {
	ts, facade := newTxnState(t)
	g := storage.NewGraph("main/social")
	require.NoError(t, facade.SaveGraph("main/social", g))

	_, err := ts.Begin()
	require.NoError(t, err)

	loaded, err := facade.GetGraph("main/social")
	require.NoError(t, err)
	require.NoError(t, loaded.CreateNode(&storage.Node{ID: "n1", Labels: []string{"Person"}}))
	require.NoError(t, facade.SaveGraph("main/social", loaded))

	require.NoError(t, ts.LogOperation(txn.UndoOperation{
		Kind: txn.UndoInsertNode, GraphPath: "main/social", NodeID: "n1",
	}, wal.OpInsert, "INSERT (n1:Person)"))

	require.NoError(t, ts.Rollback())

	after, err := facade.GetGraph("main/social")
	require.NoError(t, err)
	require.Equal(t, 0, after.NodeCount())
}

func TestExecuteWithAutoCommitRollsBackOnError(t *testing.T) {
	ts, _ := newTxnState(t)
	boom := errors.New("boom")
	_, err := session.ExecuteWithAutoCommit(ts, func() (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, ts.HasActiveTransaction())
}

func TestExecuteWithAutoCommitCommitsOnSuccess(t *testing.T) {
	ts, _ := newTxnState(t)
	result, err := session.ExecuteWithAutoCommit(ts, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.False(t, ts.HasActiveTransaction())
}
