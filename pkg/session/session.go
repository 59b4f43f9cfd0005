package session

import (
	"sync"
	"time"

	"github.com/graphlite-db/graphlite/pkg/value"
)

// ID uniquely identifies a Session within the process.
type ID string

// Session carries the current schema, current graph, bound query
// parameters, a cached permission set, and a per-session
// TransactionState, per spec.md §3's Session entity.
type Session struct {
	mu sync.RWMutex

	ID            ID
	Username      string
	CurrentSchema string
	CurrentGraph  string
	Parameters    map[string]value.Value
	Permissions   map[string]struct{}
	CreatedAt     time.Time

	Txn *TransactionState
}

// New builds a Session bound to txnState, defaulting to schema "main" with
// no current graph selected.
func New(id ID, username string, txnState *TransactionState) *Session {
	return &Session{
		ID:            id,
		Username:      username,
		CurrentSchema: "main",
		Parameters:    make(map[string]value.Value),
		Permissions:   make(map[string]struct{}),
		CreatedAt:     time.Now(),
		Txn:           txnState,
	}
}

// SetSchema switches the session's current schema.
func (s *Session) SetSchema(schema string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentSchema = schema
}

// SetGraph switches the session's current graph.
func (s *Session) SetGraph(graph string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentGraph = graph
}

// GraphPath returns the schema-qualified path of the session's current
// graph, e.g. "main/social".
func (s *Session) GraphPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.CurrentGraph == "" {
		return ""
	}
	return s.CurrentSchema + "/" + s.CurrentGraph
}

// SetParameter binds a query parameter (from a GQL `$name` reference).
func (s *Session) SetParameter(name string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Parameters[name] = v
}

// Parameter looks up a bound parameter.
func (s *Session) Parameter(name string) (value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Parameters[name]
	return v, ok
}

// RefreshPermissions replaces the cached permission set, typically after a
// role grant/revoke affecting this session's user.
func (s *Session) RefreshPermissions(perms []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Permissions = make(map[string]struct{}, len(perms))
	for _, p := range perms {
		s.Permissions[p] = struct{}{}
	}
}

// HasPermission checks the cached permission set.
func (s *Session) HasPermission(perm string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.Permissions[perm]
	if ok {
		return true
	}
	_, all := s.Permissions["All"]
	return all
}

// Manager tracks live sessions for the coordinator, grounded on
// spec.md §6's "create/close session" surface and the "global
// session-manager handle" the coordinator exposes (§4.4's note on
// deeply-nested execution contexts looking up sessions by ID).
type Manager struct {
	mu       sync.RWMutex
	sessions map[ID]*Session
	nextID   uint64
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[ID]*Session)}
}

// Create registers a new session and returns it.
func (m *Manager) Create(username string, txnState *TransactionState) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := ID(time.Now().UTC().Format("20060102150405.000000000"))
	sess := New(id, username, txnState)
	m.sessions[id] = sess
	return sess
}

// Get looks up a session by ID.
func (m *Manager) Get(id ID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close removes a session.
func (m *Manager) Close(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
