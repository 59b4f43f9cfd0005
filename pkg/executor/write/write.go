// Package write implements GraphLite's write-path statement executors:
// INSERT (plain CREATE and MATCH-chained CREATE), MATCH...SET,
// MATCH...REMOVE, and MATCH...DELETE/DETACH DELETE.
//
// Grounded file-for-file on
// original_source/graphlite/src/exec/write_stmt/data_stmt/{insert,
// match_set,match_remove,match_insert}.rs. The StatementExecutor/
// DataStatementExecutor split mirrors that package's trait contracts;
// unlike the original's one-struct-per-AST-statement-type design, GraphLite's
// grammar folds CREATE/SET/REMOVE/DELETE into ordinary pipeline clauses
// (pkg/ast.Query.Clauses), so each executor here operates on the planner's
// already-lowered PInsert/PUpdate/PDelete physical node rather than on a
// distinct statement struct.
package write

import (
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

// ExecutionContext carries the information a write statement needs beyond
// the graph itself: the catalog path it is running against and accumulated
// non-fatal warnings (duplicate-insert notices). Query parameters are
// handed to each executor's constructor instead.
type ExecutionContext struct {
	GraphPath string
	Warnings  []string
}

// AddWarning records a non-fatal condition (e.g. a duplicate insert) without
// failing the statement, mirroring original_source's ExecutionContext::add_warning.
func (c *ExecutionContext) AddWarning(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

// StatementExecutor identifies a write statement's WAL operation kind and
// gives it a human-readable description for logging, mirroring
// original_source's StatementExecutor trait.
type StatementExecutor interface {
	OperationType() wal.OperationType
	OperationDescription(ctx *ExecutionContext) string
}

// DataStatementExecutor performs one write statement's mutation against
// graph, returning the undo operation needed to reverse it (wrapped in
// txn.BatchOf when the statement produced more than one mutation) and the
// count of rows/entities affected.
type DataStatementExecutor interface {
	StatementExecutor
	ExecuteModification(graph *storage.Graph, ctx *ExecutionContext) (txn.UndoOperation, int, error)
}

// noopUndo is returned by executors that affected nothing, so callers never
// have to special-case an empty undo log entry.
var noopUndo = txn.UndoOperation{Kind: txn.UndoBatch}
