// Package txn implements GraphLite's transaction manager: numeric
// transaction identifiers, status tracking, and WAL-backed
// begin/commit/rollback bookkeeping, grounded on
// original_source/graphlite/src/txn/{mod,isolation}.rs and the manager
// surface session/transaction_state.rs calls through
// (start_transaction/commit_transaction/rollback_transaction).
package txn

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/glog"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

// ID is a numeric transaction identifier, unique within a process run
// (spec.md's durability invariant).
type ID uint64

// IsolationLevel mirrors txn/isolation.rs's IsolationLevel enum. GraphLite
// has no cross-session transactions (spec.md §5), so only ReadCommitted is
// ever meaningfully exercised; the others are accepted and stored for
// forward compatibility with a future concurrent-txn design.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

// Status is a transaction's lifecycle state.
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusRolledBack
)

// Transaction is the manager's bookkeeping record for one in-flight or
// completed transaction.
type Transaction struct {
	ID        ID
	Isolation IsolationLevel
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
}

// Manager issues transaction IDs, tracks status, and mirrors
// begin/commit/rollback into the WAL. It holds no undo state itself — that
// is pkg/session's responsibility, per spec.md's ownership split between
// the transaction manager and the session transaction log.
type Manager struct {
	mu           sync.RWMutex
	nextID       uint64
	nextTxnSeq   uint64
	transactions map[ID]*Transaction
	w            *wal.WAL
	log          *glog.Logger
}

// NewManager builds a Manager writing through w.
func NewManager(w *wal.WAL) *Manager {
	return &Manager{transactions: make(map[ID]*Transaction), w: w, log: glog.New("txn")}
}

// StartTransaction allocates a new transaction ID, records it Active, and
// appends a TransactionBegin WAL entry.
func (m *Manager) StartTransaction(isolation IsolationLevel) (ID, error) {
	id := ID(atomic.AddUint64(&m.nextID, 1))

	m.mu.Lock()
	m.transactions[id] = &Transaction{ID: id, Isolation: isolation, Status: StatusActive, StartedAt: time.Now()}
	m.mu.Unlock()

	_, err := m.w.Append(&wal.Entry{
		EntryType:     wal.TransactionBegin,
		TransactionID: uint64(id),
		TimestampNS:   uint64(time.Now().UnixNano()),
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindWAL, "failed to log transaction begin", err)
	}
	m.log.Infof("started transaction %d", id)
	return id, nil
}

// LogOperation appends a TransactionOperation WAL entry describing one
// statement executed under txn id, assigning the next per-transaction
// sequence number.
func (m *Manager) LogOperation(id ID, op wal.OperationType, description string) error {
	m.mu.Lock()
	txn, ok := m.transactions[id]
	txnSeq := atomic.AddUint64(&m.nextTxnSeq, 1)
	m.mu.Unlock()
	if !ok || txn.Status != StatusActive {
		return errs.Wrap(errs.KindTransaction, fmt.Sprintf("transaction %d is not active", id), errs.ErrNoActiveTxn)
	}
	_, err := m.w.Append(&wal.Entry{
		EntryType:     wal.TransactionOperation,
		TransactionID: uint64(id),
		TxnSeq:        txnSeq,
		TimestampNS:   uint64(time.Now().UnixNano()),
		OperationType: op,
		Description:   description,
	})
	if err != nil {
		return errs.Wrap(errs.KindWAL, "failed to log transaction operation", err)
	}
	return nil
}

// CommitTransaction marks the transaction Committed and appends a
// TransactionCommit WAL entry.
func (m *Manager) CommitTransaction(id ID) error {
	m.mu.Lock()
	txn, ok := m.transactions[id]
	if !ok || txn.Status != StatusActive {
		m.mu.Unlock()
		return errs.Wrap(errs.KindTransaction, fmt.Sprintf("transaction %d is not active", id), errs.ErrNoActiveTxn)
	}
	txn.Status = StatusCommitted
	txn.EndedAt = time.Now()
	m.mu.Unlock()

	_, err := m.w.Append(&wal.Entry{
		EntryType:     wal.TransactionCommit,
		TransactionID: uint64(id),
		TimestampNS:   uint64(time.Now().UnixNano()),
	})
	if err != nil {
		return errs.Wrap(errs.KindWAL, "failed to log transaction commit", err)
	}
	m.log.Infof("committed transaction %d", id)
	return nil
}

// RollbackTransaction marks the transaction RolledBack and appends a
// TransactionRollback WAL entry. It does not itself undo graph mutations —
// the caller (pkg/session) applies undo operations before calling this.
func (m *Manager) RollbackTransaction(id ID) error {
	m.mu.Lock()
	txn, ok := m.transactions[id]
	if !ok || txn.Status != StatusActive {
		m.mu.Unlock()
		return errs.Wrap(errs.KindTransaction, fmt.Sprintf("transaction %d is not active", id), errs.ErrNoActiveTxn)
	}
	txn.Status = StatusRolledBack
	txn.EndedAt = time.Now()
	m.mu.Unlock()

	_, err := m.w.Append(&wal.Entry{
		EntryType:     wal.TransactionRollback,
		TransactionID: uint64(id),
		TimestampNS:   uint64(time.Now().UnixNano()),
	})
	if err != nil {
		return errs.Wrap(errs.KindWAL, "failed to log transaction rollback", err)
	}
	m.log.Infof("rolled back transaction %d", id)
	return nil
}

// Recover replays WAL entries read at startup (wal.WAL.ReadAll) to restore
// the manager's bookkeeping: every transaction ID and per-transaction
// sequence number seen bumps nextID/nextTxnSeq past it so freshly issued
// IDs never collide with recovered ones, and every transaction whose
// TransactionBegin entry has no matching TransactionCommit is conservatively
// discarded (marked StatusRolledBack) rather than resumed, per spec.md's
// durability invariant that an interrupted transaction never appears
// committed. It returns the IDs discarded this way. GraphLite's undo log is
// session-local, in-memory state (pkg/session.TransactionState), so a
// crash mid-transaction already lost whatever partial graph mutation that
// transaction made; Recover's job is only to make the manager's own
// bookkeeping consistent with that fact, not to replay or redo graph
// writes.
func (m *Manager) Recover(entries []*wal.Entry) []ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var discarded []ID
	for _, e := range entries {
		id := ID(e.TransactionID)
		if uint64(id) > atomic.LoadUint64(&m.nextID) {
			atomic.StoreUint64(&m.nextID, uint64(id))
		}
		if e.EntryType == wal.TransactionOperation && e.TxnSeq > atomic.LoadUint64(&m.nextTxnSeq) {
			atomic.StoreUint64(&m.nextTxnSeq, e.TxnSeq)
		}

		switch e.EntryType {
		case wal.TransactionBegin:
			m.transactions[id] = &Transaction{ID: id, Status: StatusActive, StartedAt: time.Unix(0, int64(e.TimestampNS))}
		case wal.TransactionCommit:
			if txn, ok := m.transactions[id]; ok {
				txn.Status = StatusCommitted
				txn.EndedAt = time.Unix(0, int64(e.TimestampNS))
			}
		case wal.TransactionRollback:
			if txn, ok := m.transactions[id]; ok {
				txn.Status = StatusRolledBack
				txn.EndedAt = time.Unix(0, int64(e.TimestampNS))
			}
		}
	}

	for id, txn := range m.transactions {
		if txn.Status == StatusActive {
			txn.Status = StatusRolledBack
			txn.EndedAt = time.Now()
			discarded = append(discarded, id)
			m.log.Infof("discarding uncommitted transaction %d found on WAL recovery", id)
		}
	}
	return discarded
}

// Lookup returns the bookkeeping record for id.
func (m *Manager) Lookup(id ID) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.transactions[id]
	return txn, ok
}

// InFlight returns the IDs of every transaction still Active. Recover does
// its own discard pass and leaves none of the recovered transactions
// Active, so right after Recover this is empty.
func (m *Manager) InFlight() []ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ID
	for id, txn := range m.transactions {
		if txn.Status == StatusActive {
			out = append(out, id)
		}
	}
	return out
}
