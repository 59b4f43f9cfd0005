package write

import (
	"fmt"

	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/value"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

// MatchRemoveExecutor implements MATCH...REMOVE, grounded on
// original_source's match_remove.rs: match combinations, optional WITH/
// WHERE processing, then for each matched entity remove the named
// property (RemoveItem::Property) or the listed labels
// (RemoveItem::Label); RemoveItem::Variable (removing a whole bound
// variable) is not a graph mutation original_source's planner treats as
// unsupported, and pkg/planner/build.go's buildRemove already lowers it
// to a PUpdate with neither RemoveProperty nor RemoveLabels set, which
// applyItemToStage (match_set.go) treats as a no-op.
//
// The engine itself — chain unwinding, pre-evaluate-then-commit staging,
// one undo record per touched entity — is shared with MATCH...SET in
// match_set.go, since both lower to the same PUpdate physical node shape
// and both must satisfy the same atomicity guarantee: capture the
// pre-state of every touched entity before any mutation, unlike
// original_source's execute_modification, which returns only the first
// undo operation it produced; GraphLite instead batches every touched
// entity's undo record so a multi-item REMOVE rolls back completely.
type MatchRemoveExecutor struct {
	Root   *planner.PUpdate
	Params map[string]value.Value
}

func NewMatchRemoveExecutor(n *planner.PUpdate, params map[string]value.Value) *MatchRemoveExecutor {
	return &MatchRemoveExecutor{Root: n, Params: params}
}

func (x *MatchRemoveExecutor) OperationType() wal.OperationType { return wal.OpRemove }

func (x *MatchRemoveExecutor) OperationDescription(ctx *ExecutionContext) string {
	items, _ := collectUpdateChain(x.Root)
	return fmt.Sprintf("REMOVE %d item(s)", len(items))
}

func (x *MatchRemoveExecutor) ExecuteModification(graph *storage.Graph, ctx *ExecutionContext) (txn.UndoOperation, int, error) {
	items, base := collectUpdateChain(x.Root)
	return runUpdateChain(graph, ctx, x.Params, items, base)
}
