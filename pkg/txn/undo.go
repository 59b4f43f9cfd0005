package txn

// UndoKind discriminates the UndoOperation union, grounded on
// original_source/graphlite/src/session/transaction_state.rs's
// apply_undo_operation match arms.
type UndoKind int

const (
	UndoBatch UndoKind = iota
	UndoInsertNode
	UndoDeleteNode
	UndoUpdateNode
	UndoInsertEdge
	UndoDeleteEdge
	UndoUpdateEdge
)

// UndoOperation is a record sufficient to reverse one graph mutation. Only
// the fields relevant to Kind are populated; this mirrors the Rust enum's
// per-variant payload without Go's lack of tagged unions forcing a
// type switch per field.
type UndoOperation struct {
	Kind      UndoKind
	Batch     []UndoOperation
	GraphPath string

	NodeID string // NodeID as a string to stay storage-package-agnostic here
	// DeleteNode carries the full deleted node so it can be reinserted.
	DeletedNodeLabels []string
	DeletedNodeProps  map[string]any
	// UpdateNode carries the pre-update labels/properties to restore.
	OldLabels []string
	OldProps  map[string]any

	EdgeID string
	// DeleteEdge carries the full deleted edge.
	DeletedEdgeFrom  string
	DeletedEdgeTo    string
	DeletedEdgeLabel string
	DeletedEdgeProps map[string]any
	// UpdateEdge carries the pre-update label/properties to restore.
	OldEdgeLabel string
	OldEdgeProps map[string]any
}

// BatchOf wraps multiple undo operations produced by a single statement
// (spec.md §4.4: "undo ops wrapped in Batch when a single statement
// produces multiple").
func BatchOf(ops ...UndoOperation) UndoOperation {
	return UndoOperation{Kind: UndoBatch, Batch: ops}
}

// Log accumulates undo operations for one active transaction, in the
// order they were produced; rollback replays it in reverse.
type Log struct {
	TxnID ID
	Ops   []UndoOperation
}

// NewLog returns an empty log for txnID.
func NewLog(txnID ID) *Log {
	return &Log{TxnID: txnID}
}

// Append adds an undo operation to the end of the log.
func (l *Log) Append(op UndoOperation) {
	l.Ops = append(l.Ops, op)
}

// Reversed returns the log's operations in reverse order, the order
// rollback applies them in.
func (l *Log) Reversed() []UndoOperation {
	out := make([]UndoOperation, len(l.Ops))
	for i, op := range l.Ops {
		out[len(l.Ops)-1-i] = op
	}
	return out
}
