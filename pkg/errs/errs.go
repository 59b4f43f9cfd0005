// Package errs centralizes the GraphLite error-kind taxonomy used across the
// catalog, planner, executor, txn and wal packages, in the spirit of the
// sentinel-error variables the teacher declares in pkg/storage/types.go and
// pkg/storage/transaction.go.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories a GraphLite operation can fail
// with.
type Kind string

const (
	KindParse          Kind = "ParseError"
	KindValidation     Kind = "ValidationError"
	KindPlanning       Kind = "PlanningError"
	KindCatalog        Kind = "CatalogError"
	KindStorage        Kind = "StorageError"
	KindRuntime        Kind = "RuntimeError"
	KindTransaction    Kind = "TransactionError"
	KindWAL            Kind = "WALError"
)

// CatalogSubKind refines KindCatalog errors, mirroring the CatalogError
// variants from spec.md §7.
type CatalogSubKind string

const (
	CatalogNotFound             CatalogSubKind = "NotFound"
	CatalogDuplicateEntry       CatalogSubKind = "DuplicateEntry"
	CatalogInvalidOperation     CatalogSubKind = "InvalidOperation"
	CatalogInvalidParameters    CatalogSubKind = "InvalidParameters"
	CatalogSerializationError   CatalogSubKind = "SerializationError"
	CatalogDeserializationError CatalogSubKind = "DeserializationError"
	CatalogNotSupported         CatalogSubKind = "NotSupported"
)

// WALSubKind refines KindWAL errors, mirroring the WALError variants from
// spec.md §7.
type WALSubKind string

const (
	WALIOError     WALSubKind = "IOError"
	WALCorrupted   WALSubKind = "CorruptedEntry"
	WALConfigError WALSubKind = "ConfigError"
)

// GraphLiteError is the carrier type for every error kind in the taxonomy.
// Identifier names the resource involved (a schema name, a node ID, a
// transaction ID) when one is relevant; it may be empty.
type GraphLiteError struct {
	Kind       Kind
	SubKind    string
	Message    string
	Identifier string
	cause      error
}

func (e *GraphLiteError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Identifier)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GraphLiteError) Unwrap() error { return e.cause }

// New builds a GraphLiteError with no identifier or sub-kind.
func New(kind Kind, message string) *GraphLiteError {
	return &GraphLiteError{Kind: kind, Message: message}
}

// Wrap builds a GraphLiteError around an underlying cause, preserving it for
// errors.Is/errors.As.
func Wrap(kind Kind, message string, cause error) *GraphLiteError {
	return &GraphLiteError{Kind: kind, Message: message, cause: cause}
}

// WithIdentifier returns a copy of e with Identifier set.
func (e *GraphLiteError) WithIdentifier(id string) *GraphLiteError {
	cp := *e
	cp.Identifier = id
	return &cp
}

// WithSubKind returns a copy of e with SubKind set.
func (e *GraphLiteError) WithSubKind(sub string) *GraphLiteError {
	cp := *e
	cp.SubKind = sub
	return &cp
}

// Sentinel errors for the common not-found / duplicate / closed conditions,
// checked with errors.Is the way the teacher checks storage.ErrNotFound.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrClosed            = errors.New("closed")
	ErrNoActiveTxn       = errors.New("no active transaction")
	ErrTxnAlreadyActive  = errors.New("transaction already active")
	ErrSessionNotFound   = errors.New("session not found")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrWALCorrupted      = errors.New("wal entry corrupted")
	ErrWALConfig         = errors.New("wal config error")
	ErrNotSupported      = errors.New("operation not supported")
	ErrDetachRequired    = errors.New("node has incident edges; use DETACH DELETE")
)

// NotFound builds a CatalogError of NotFound sub-kind for the named
// identifier, wrapping ErrNotFound so callers can errors.Is against it.
func NotFound(what, id string) *GraphLiteError {
	return Wrap(KindCatalog, fmt.Sprintf("%s not found", what), ErrNotFound).
		WithSubKind(string(CatalogNotFound)).WithIdentifier(id)
}

// Duplicate builds a CatalogError of DuplicateEntry sub-kind.
func Duplicate(what, id string) *GraphLiteError {
	return Wrap(KindCatalog, fmt.Sprintf("%s already exists", what), ErrDuplicateEntry).
		WithSubKind(string(CatalogDuplicateEntry)).WithIdentifier(id)
}

// Runtime builds a RuntimeError, the catch-all for executor-time failures
// (missing variable binding, incident-edge delete, type mismatch).
func Runtime(message string) *GraphLiteError {
	return New(KindRuntime, message)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var gle *GraphLiteError
	if errors.As(err, &gle) {
		return gle.Kind == kind
	}
	return false
}
