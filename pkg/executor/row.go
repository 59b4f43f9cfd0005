// Package executor interprets a planner.PhysicalPlan over a
// storage.Graph, grounded on the teacher's pkg/cypher/executor.go
// bottom-up operator-switch shape and pkg/cypher/match.go/traversal.go's
// scan/expand iteration style.
package executor

import "github.com/graphlite-db/graphlite/pkg/value"

// Row is one binding of pattern/alias variables to values as the pipeline
// flows upward through the physical plan tree.
type Row map[string]value.Value

// Clone returns a shallow copy safe for independent downstream mutation.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowSet is an ordered sequence of Rows, the executor's in-memory
// intermediate result representation. GraphLite's operator interpreter is
// not a true iterator/volcano model (each operator materializes its
// output) since the embedded, single-process scale spec.md targets does
// not need streaming execution; this mirrors the teacher's
// StorageExecutor.Execute, which also builds a full Rows slice per query.
type RowSet []Row
