// Package session implements GraphLite's session-scoped transaction state
// (begin/commit/rollback, auto-commit wrapper, undo-log replay) and the
// Session type the coordinator hands out per client connection, grounded
// on original_source/graphlite/src/session/transaction_state.rs.
package session

import (
	"sync"

	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/glog"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

// TransactionState is the per-session transaction state: the current
// active transaction (if any), its undo log, auto-commit mode, and
// isolation level. One TransactionState belongs to exactly one Session;
// the underlying txn.Manager is shared across all sessions.
type TransactionState struct {
	mu         sync.RWMutex
	manager    *txn.Manager
	facade     storage.Facade
	log        *glog.Logger
	current    *txn.ID
	txnLog     *txn.Log
	autoCommit bool
	isolation  txn.IsolationLevel
}

// NewTransactionState returns a TransactionState in auto-commit mode at
// ReadCommitted isolation, matching SessionTransactionState::new.
func NewTransactionState(manager *txn.Manager, facade storage.Facade) *TransactionState {
	return &TransactionState{
		manager:    manager,
		facade:     facade,
		log:        glog.New("session.txn"),
		autoCommit: true,
		isolation:  txn.ReadCommitted,
	}
}

func (s *TransactionState) HasActiveTransaction() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

func (s *TransactionState) CurrentTransactionID() (txn.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}

func (s *TransactionState) IsAutoCommit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoCommit
}

func (s *TransactionState) SetAutoCommit(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoCommit = enabled
}

func (s *TransactionState) SetIsolationLevel(level txn.IsolationLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isolation = level
}

// Begin starts a new transaction, failing if one is already active.
func (s *TransactionState) Begin() (txn.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return 0, errs.Wrap(errs.KindTransaction, "transaction already in progress", errs.ErrTxnAlreadyActive)
	}
	id, err := s.manager.StartTransaction(s.isolation)
	if err != nil {
		return 0, err
	}
	s.current = &id
	s.txnLog = txn.NewLog(id)
	s.log.Infof("session began transaction %d", id)
	return id, nil
}

// LogOperation appends an undo operation to the active transaction's log
// and mirrors an operation-marker WAL entry through the manager.
func (s *TransactionState) LogOperation(op txn.UndoOperation, opType wal.OperationType, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return errs.Wrap(errs.KindTransaction, "no active transaction to log against", errs.ErrNoActiveTxn)
	}
	s.txnLog.Append(op)
	return s.manager.LogOperation(*s.current, opType, description)
}

// Commit commits the active transaction and discards its undo log.
func (s *TransactionState) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return errs.Wrap(errs.KindTransaction, "no active transaction to commit", errs.ErrNoActiveTxn)
	}
	id := *s.current
	if err := s.manager.CommitTransaction(id); err != nil {
		return err
	}
	s.current = nil
	s.txnLog = nil
	s.log.Infof("session committed transaction %d", id)
	return nil
}

// Rollback replays the active transaction's undo log in reverse, then
// rolls back the transaction in the manager. Individual undo-op failures
// are logged and do not abort the rest of the rollback, per spec.md §7's
// best-effort rollback propagation policy.
func (s *TransactionState) Rollback() error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return errs.Wrap(errs.KindTransaction, "no active transaction to rollback", errs.ErrNoActiveTxn)
	}
	id := *s.current
	ops := s.txnLog.Reversed()
	s.mu.Unlock()

	s.log.Infof("applying %d undo operations for transaction %d", len(ops), id)
	for _, op := range ops {
		if err := s.applyUndoOperation(op); err != nil {
			s.log.Errorf("failed to apply undo operation: %+v: %v", op, err)
		}
	}

	if err := s.manager.RollbackTransaction(id); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = nil
	s.txnLog = nil
	s.mu.Unlock()
	s.log.Infof("session rolled back transaction %d", id)
	return nil
}

// applyUndoOperation reverses one mutation by loading the graph, mutating
// it, and saving it back, mirroring
// transaction_state.rs::apply_undo_operation.
func (s *TransactionState) applyUndoOperation(op txn.UndoOperation) error {
	switch op.Kind {
	case txn.UndoBatch:
		for i := len(op.Batch) - 1; i >= 0; i-- {
			if err := s.applyUndoOperation(op.Batch[i]); err != nil {
				s.log.Errorf("batch undo operation failed: %v", err)
			}
		}
		return nil

	case txn.UndoInsertNode:
		g, err := s.facade.GetGraph(op.GraphPath)
		if err != nil {
			return err
		}
		if _, err := g.DeleteNode(storage.NodeID(op.NodeID)); err != nil {
			return err
		}
		return s.facade.SaveGraph(op.GraphPath, g)

	case txn.UndoDeleteNode:
		g, err := s.facade.GetGraph(op.GraphPath)
		if err != nil {
			return err
		}
		n := &storage.Node{ID: storage.NodeID(op.NodeID), Labels: op.DeletedNodeLabels, Properties: op.DeletedNodeProps}
		if err := g.CreateNode(n); err != nil {
			return err
		}
		return s.facade.SaveGraph(op.GraphPath, g)

	case txn.UndoUpdateNode:
		g, err := s.facade.GetGraph(op.GraphPath)
		if err != nil {
			return err
		}
		if _, _, err := g.UpdateNode(storage.NodeID(op.NodeID), op.OldLabels, op.OldProps); err != nil {
			return err
		}
		return s.facade.SaveGraph(op.GraphPath, g)

	case txn.UndoInsertEdge:
		g, err := s.facade.GetGraph(op.GraphPath)
		if err != nil {
			return err
		}
		if _, err := g.DeleteEdge(storage.EdgeID(op.EdgeID)); err != nil {
			return err
		}
		return s.facade.SaveGraph(op.GraphPath, g)

	case txn.UndoDeleteEdge:
		g, err := s.facade.GetGraph(op.GraphPath)
		if err != nil {
			return err
		}
		e := &storage.Edge{
			ID: storage.EdgeID(op.EdgeID), StartNode: storage.NodeID(op.DeletedEdgeFrom),
			EndNode: storage.NodeID(op.DeletedEdgeTo), Label: op.DeletedEdgeLabel, Properties: op.DeletedEdgeProps,
		}
		if err := g.CreateEdge(e); err != nil {
			return err
		}
		return s.facade.SaveGraph(op.GraphPath, g)

	case txn.UndoUpdateEdge:
		g, err := s.facade.GetGraph(op.GraphPath)
		if err != nil {
			return err
		}
		if _, _, err := g.UpdateEdge(storage.EdgeID(op.EdgeID), op.OldEdgeLabel, op.OldEdgeProps); err != nil {
			return err
		}
		return s.facade.SaveGraph(op.GraphPath, g)

	default:
		return nil
	}
}

// ExecuteWithAutoCommit begins a transaction if none is active, invokes f,
// and commits on success or rolls back (propagating f's error) on failure
// — mirroring execute_with_auto_commit. When a transaction is already
// active (explicit START TRANSACTION), f's statement joins it and neither
// commit nor rollback happens here.
func ExecuteWithAutoCommit[R any](s *TransactionState, f func() (R, error)) (R, error) {
	var zero R
	beganHere := false
	if !s.HasActiveTransaction() {
		if _, err := s.Begin(); err != nil {
			return zero, err
		}
		beganHere = true
	}

	result, err := f()
	if err != nil {
		if beganHere {
			if rbErr := s.Rollback(); rbErr != nil {
				s.log.Errorf("rollback after failed auto-commit statement also failed: %v", rbErr)
			}
		}
		return zero, err
	}

	if beganHere {
		if commitErr := s.Commit(); commitErr != nil {
			return zero, commitErr
		}
	}
	return result, nil
}
