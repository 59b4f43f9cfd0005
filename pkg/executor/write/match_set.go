package write

import (
	"fmt"

	"github.com/graphlite-db/graphlite/pkg/executor"
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/value"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

// MatchSetExecutor implements MATCH...SET, grounded on original_source's
// match_set.rs (match combinations, optional WITH/WHERE processing, then
// apply property assignments and label additions).
//
// GraphLite's planner lowers a SET clause with N items into a chain of N
// nested PUpdate nodes (pkg/planner/build.go's buildSet), one per item,
// each wrapping the previous as Input. To honor spec.md's §4.4.2
// atomicity guarantee — pre-evaluate every item's right-hand side across
// every matched entity before mutating anything, and emit exactly one
// UpdateNode/UpdateEdge undo record per touched entity regardless of how
// many items touched it — this executor first unwinds that chain back
// into its original item order and its single shared match-rows Input,
// runs the match once, stages every item's effect into an in-memory copy
// of each touched entity, and only commits to the graph once every row
// and every item has evaluated successfully.
type MatchSetExecutor struct {
	Root   *planner.PUpdate
	Params map[string]value.Value
}

func NewMatchSetExecutor(n *planner.PUpdate, params map[string]value.Value) *MatchSetExecutor {
	return &MatchSetExecutor{Root: n, Params: params}
}

func (x *MatchSetExecutor) OperationType() wal.OperationType { return wal.OpSet }

func (x *MatchSetExecutor) OperationDescription(ctx *ExecutionContext) string {
	items, _ := collectUpdateChain(x.Root)
	return fmt.Sprintf("SET %d item(s)", len(items))
}

func (x *MatchSetExecutor) ExecuteModification(graph *storage.Graph, ctx *ExecutionContext) (txn.UndoOperation, int, error) {
	items, base := collectUpdateChain(x.Root)
	return runUpdateChain(graph, ctx, x.Params, items, base)
}

// collectUpdateChain walks down a PUpdate node's Input links, which point
// from the last-applied item to the first, collecting every node in the
// chain and then reversing the result so items come back in original
// clause order (first SET/REMOVE item first). The chain bottoms out at
// the shared MATCH/WHERE/WITH plan every item in the clause was built
// against.
func collectUpdateChain(root *planner.PUpdate) ([]*planner.PUpdate, planner.PhysicalNode) {
	var chain []*planner.PUpdate
	cur := root
	for {
		chain = append(chain, cur)
		next, ok := cur.Input.(*planner.PUpdate)
		if !ok {
			for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
				chain[i], chain[j] = chain[j], chain[i]
			}
			return chain, cur.Input
		}
		cur = next
	}
}

// entityStage accumulates every item's effect on one matched node or edge
// in memory; nothing is written to graph until every row and item in the
// statement has staged successfully.
type entityStage struct {
	id     string
	isEdge bool

	labels []string
	props  map[string]any

	edgeLabel string
}

// runUpdateChain executes the shared base plan once, then applies every
// chain item to every matched row, staging changes per distinct touched
// entity before committing any of them. This is the engine behind both
// MATCH...SET (items carrying Properties/AddLabels) and MATCH...REMOVE
// (items carrying RemoveProperty/RemoveLabels) since both lower to the
// same PUpdate node shape.
func runUpdateChain(graph *storage.Graph, ctx *ExecutionContext, params map[string]value.Value, items []*planner.PUpdate, base planner.PhysicalNode) (txn.UndoOperation, int, error) {
	ex := executor.New(graph, params)

	rows, err := ex.Run(base)
	if err != nil {
		return noopUndo, 0, err
	}

	staged := map[string]*entityStage{}
	var touchOrder []string

	for _, row := range rows {
		for _, item := range items {
			bound, ok := row[item.TargetVariable]
			if !ok {
				continue
			}
			id := executor.EntityID(bound)
			if id == "" {
				continue
			}

			stage, seen := staged[id]
			if !seen {
				stage, err = seedStage(graph, id)
				if err != nil {
					return noopUndo, 0, err
				}
				if stage == nil {
					// Entity no longer present; nothing to stage for it.
					continue
				}
				staged[id] = stage
				touchOrder = append(touchOrder, id)
			}

			if err := applyItemToStage(ex, stage, item, row); err != nil {
				return noopUndo, 0, err
			}
		}
	}

	var undoOps []txn.UndoOperation
	count := 0
	for _, id := range touchOrder {
		stage := staged[id]
		if stage.isEdge {
			oldLabel, oldProps, err := graph.UpdateEdge(storage.EdgeID(id), stage.edgeLabel, stage.props)
			if err != nil {
				return combineUndo(undoOps), count, err
			}
			undoOps = append(undoOps, txn.UndoOperation{
				Kind: txn.UndoUpdateEdge, GraphPath: ctx.GraphPath, EdgeID: id,
				OldEdgeLabel: oldLabel, OldEdgeProps: oldProps,
			})
		} else {
			oldLabels, oldProps, err := graph.UpdateNode(storage.NodeID(id), stage.labels, stage.props)
			if err != nil {
				return combineUndo(undoOps), count, err
			}
			undoOps = append(undoOps, txn.UndoOperation{
				Kind: txn.UndoUpdateNode, GraphPath: ctx.GraphPath, NodeID: id,
				OldLabels: oldLabels, OldProps: oldProps,
			})
		}
		count++
	}

	return combineUndo(undoOps), count, nil
}

func seedStage(graph *storage.Graph, id string) (*entityStage, error) {
	if node, err := graph.GetNode(storage.NodeID(id)); err == nil {
		return &entityStage{
			id: id, labels: append([]string(nil), node.Labels...), props: copyProps(node.Properties),
		}, nil
	}
	if edge, err := graph.GetEdge(storage.EdgeID(id)); err == nil {
		return &entityStage{
			id: id, isEdge: true, edgeLabel: edge.Label, props: copyProps(edge.Properties),
		}, nil
	}
	return nil, nil
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// applyItemToStage evaluates and folds a single SET/REMOVE item into the
// staged entity copy. Only Properties (SET) requires evaluating an
// expression; AddLabels/RemoveLabels/RemoveProperty are static.
func applyItemToStage(ex *executor.Executor, stage *entityStage, item *planner.PUpdate, row executor.Row) error {
	switch {
	case len(item.Properties) > 0:
		for k, expr := range item.Properties {
			v, err := ex.Eval(expr, row)
			if err != nil {
				return fmt.Errorf("write: evaluating SET %s.%s: %w", item.TargetVariable, k, err)
			}
			stage.props[k] = v.ToAny()
		}

	case len(item.AddLabels) > 0:
		if stage.isEdge {
			break
		}
		for _, l := range item.AddLabels {
			if !containsStr(stage.labels, l) {
				stage.labels = append(stage.labels, l)
			}
		}

	case len(item.RemoveLabels) > 0:
		if stage.isEdge {
			break
		}
		stage.labels = removeStrs(stage.labels, item.RemoveLabels)

	case item.RemoveProperty != "":
		delete(stage.props, item.RemoveProperty)
	}
	return nil
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeStrs(list []string, remove []string) []string {
	out := list[:0:0]
	for _, v := range list {
		if !containsStr(remove, v) {
			out = append(out, v)
		}
	}
	return out
}
