// Package coordinator is GraphLite's embedding entry point: it opens a
// database directory (or an ephemeral in-memory store), wires the storage
// facade to the catalog manager and the shared transaction manager, mints
// sessions, and turns parsed GQL text into QueryResults, grounded on
// spec.md §2's "applications open a database directory and obtain a query
// coordinator that manages sessions, planning, execution, catalogs,
// caches, and durability" and
// original_source/graphlite/src/coordinator.rs's Coordinator/Session split.
package coordinator

import (
	"fmt"
	"path/filepath"

	"github.com/graphlite-db/graphlite/pkg/auth"
	"github.com/graphlite-db/graphlite/pkg/catalog"
	"github.com/graphlite-db/graphlite/pkg/catalog/providers"
	"github.com/graphlite-db/graphlite/pkg/glog"
	"github.com/graphlite-db/graphlite/pkg/session"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

// Coordinator owns everything one embedded database instance needs:
// the storage facade, the catalog manager (schema/graph-metadata/security
// providers), the shared transaction manager backing every session's
// undo log, the live session table, and a credential/token authenticator
// for callers that want Login instead of CreateSimpleSession.
type Coordinator struct {
	facade   storage.Facade
	catalog  *catalog.Manager
	txnMgr   *txn.Manager
	sessions *session.Manager
	authn    *auth.Authenticator
	log      *glog.Logger
}

// New builds a Coordinator over an already-open facade, starting a WAL
// rooted at walDir. Most callers want FromPath or InMemory instead.
func New(facade storage.Facade, walDir string) (*Coordinator, error) {
	w, err := wal.Open(wal.DefaultConfig(walDir))
	if err != nil {
		return nil, fmt.Errorf("coordinator: opening WAL: %w", err)
	}
	mgr, err := catalog.NewManager(facade,
		providers.NewSchemaProvider(),
		providers.NewGraphMetadataProvider(),
		providers.NewSecurityProvider(),
	)
	if err != nil {
		return nil, fmt.Errorf("coordinator: initializing catalog: %w", err)
	}
	authn, err := newAuthenticator()
	if err != nil {
		return nil, err
	}

	log := glog.New("coordinator")
	txnMgr := txn.NewManager(w)
	if err := recoverFromWAL(w, txnMgr, log); err != nil {
		return nil, err
	}

	return &Coordinator{
		facade:   facade,
		catalog:  mgr,
		txnMgr:   txnMgr,
		sessions: session.NewManager(),
		authn:    authn,
		log:      log,
	}, nil
}

// recoverFromWAL replays every entry on w into txnMgr's bookkeeping,
// discarding any transaction whose begin was never followed by a commit —
// spec.md's "recovery on open" requirement for the durability layer.
// Entries are read, not re-executed: the graph mutations a discarded
// transaction made before a crash are already gone along with the
// in-memory undo log that would have reverted them (pkg/session's
// TransactionState), so there is nothing left to redo or roll back at the
// storage layer, only the manager's own transaction-ID bookkeeping to
// reconcile.
func recoverFromWAL(w *wal.WAL, txnMgr *txn.Manager, log *glog.Logger) error {
	entries, err := w.ReadAll()
	if err != nil {
		return fmt.Errorf("coordinator: reading WAL for recovery: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	discarded := txnMgr.Recover(entries)
	if len(discarded) > 0 {
		log.Infof("WAL recovery discarded %d uncommitted transaction(s): %v", len(discarded), discarded)
	}
	return nil
}

// FromPath opens (creating if absent) a persistent database directory:
// Badger-backed graph/catalog storage under dir/data and a WAL under
// dir/wal.
func FromPath(dir string) (*Coordinator, error) {
	facade, err := storage.OpenBadgerFacade(filepath.Join(dir, "data"))
	if err != nil {
		return nil, fmt.Errorf("coordinator: opening storage: %w", err)
	}
	return New(facade, filepath.Join(dir, "wal"))
}

// InMemory returns a Coordinator backed by an ephemeral MemoryFacade; the
// WAL itself is still disk-backed (rooted at walDir) since it is how
// rollback-after-crash-mid-statement would be recovered, but nothing in
// the graph/catalog survives process exit.
func InMemory(walDir string) (*Coordinator, error) {
	return New(storage.NewMemoryFacade(), walDir)
}

// Close releases the coordinator's storage facade.
func (c *Coordinator) Close() error {
	return c.facade.Close()
}

// CreateSimpleSession creates a session with full permissions, per
// spec.md §6's `create_simple_session(username) → session_id`.
func (c *Coordinator) CreateSimpleSession(username string) *session.Session {
	ts := session.NewTransactionState(c.txnMgr, c.facade)
	sess := c.sessions.Create(username, ts)
	sess.RefreshPermissions([]string{"All"})
	return sess
}

// CreateSession creates a session scoped to the given roles/permissions,
// per spec.md §6's `create_session(username, roles, permissions) →
// session_id`. The roles argument is accepted but not stored on the
// session; GraphLite's permission check (Session.HasPermission) is driven
// by the explicit permission list.
func (c *Coordinator) CreateSession(username string, roles []string, permissions []string) *session.Session {
	ts := session.NewTransactionState(c.txnMgr, c.facade)
	sess := c.sessions.Create(username, ts)
	sess.RefreshPermissions(permissions)
	return sess
}

// Session looks up a live session by ID.
func (c *Coordinator) Session(id session.ID) (*session.Session, bool) {
	return c.sessions.Get(id)
}

// CloseSession ends a session, per spec.md §6's "sessions are created by
// the coordinator and destroyed on close".
func (c *Coordinator) CloseSession(id session.ID) {
	c.sessions.Close(id)
}

// Catalog exposes the catalog manager for DDL/DCL dispatch and system
// procedures.
func (c *Coordinator) Catalog() *catalog.Manager { return c.catalog }

// Facade exposes the storage facade, e.g. for a system procedure that
// reports cache statistics.
func (c *Coordinator) Facade() storage.Facade { return c.facade }

// Authenticator exposes the credential store directly for account
// administration (ListUsers, ChangePassword, DisableUser/EnableUser,
// UnlockUser, DeleteUser, ValidateToken, ...) that has no GQL-statement
// surface of its own and so doesn't warrant a bespoke Coordinator
// pass-through method per operation.
func (c *Coordinator) Authenticator() *auth.Authenticator { return c.authn }

// TxnManager exposes the shared transaction manager, e.g. for a caller that
// wants to inspect in-flight transactions after WAL recovery on open.
func (c *Coordinator) TxnManager() *txn.Manager { return c.txnMgr }
