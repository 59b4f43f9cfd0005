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

// MatchDeleteExecutor implements MATCH...DELETE and MATCH...DETACH DELETE.
// The match/filter/WITH pipeline leading to the deleted variables is
// grounded the same way match_remove.rs builds its matched combinations;
// DETACH DELETE's "remove incident edges, then the node" ordering and its
// per-entity undo capture follow spec.md §4.4.2 directly, mirroring how
// pkg/storage.Graph.DetachDeleteNode already returns both the deleted
// node and its severed edges in one call for exactly this purpose.
type MatchDeleteExecutor struct {
	Node   *planner.PDelete
	Params map[string]value.Value
}

func NewMatchDeleteExecutor(n *planner.PDelete, params map[string]value.Value) *MatchDeleteExecutor {
	return &MatchDeleteExecutor{Node: n, Params: params}
}

func (x *MatchDeleteExecutor) OperationType() wal.OperationType { return wal.OpDelete }

func (x *MatchDeleteExecutor) OperationDescription(ctx *ExecutionContext) string {
	verb := "DELETE"
	if x.Node.Detach {
		verb = "DETACH DELETE"
	}
	return fmt.Sprintf("%s %v", verb, x.Node.TargetVariables)
}

// ExecuteModification deletes every bound node/edge named by the clause's
// target variables, across every matched row. Plain DELETE of a node that
// still has incident edges surfaces pkg/storage's ErrHasIncidentEdges as a
// runtime error, per spec.md; DETACH DELETE removes those edges first.
// Entities reached more than once (the same node bound via multiple rows,
// or an edge touched alongside one of its own endpoints) are only deleted
// once, so the undo log never double-restores an entity.
func (x *MatchDeleteExecutor) ExecuteModification(graph *storage.Graph, ctx *ExecutionContext) (txn.UndoOperation, int, error) {
	ex := executor.New(graph, x.Params)
	rows, err := ex.Run(x.Node.Input)
	if err != nil {
		return noopUndo, 0, err
	}

	deletedNodes := map[storage.NodeID]bool{}
	deletedEdges := map[storage.EdgeID]bool{}
	var undoOps []txn.UndoOperation
	count := 0

	for _, row := range rows {
		for _, varName := range x.Node.TargetVariables {
			bound, ok := row[varName]
			if !ok {
				continue
			}
			id := executor.EntityID(bound)
			if id == "" {
				continue
			}

			if node, err := graph.GetNode(storage.NodeID(id)); err == nil {
				if deletedNodes[node.ID] {
					continue
				}
				if x.Node.Detach {
					deleted, edges, err := graph.DetachDeleteNode(node.ID)
					if err != nil {
						return combineUndo(undoOps), count, err
					}
					for _, e := range edges {
						if deletedEdges[e.ID] {
							continue
						}
						deletedEdges[e.ID] = true
						undoOps = append(undoOps, txn.UndoOperation{
							Kind: txn.UndoDeleteEdge, GraphPath: ctx.GraphPath, EdgeID: string(e.ID),
							DeletedEdgeFrom: string(e.StartNode), DeletedEdgeTo: string(e.EndNode),
							DeletedEdgeLabel: e.Label, DeletedEdgeProps: e.Properties,
						})
						count++
					}
					deletedNodes[deleted.ID] = true
					undoOps = append(undoOps, txn.UndoOperation{
						Kind: txn.UndoDeleteNode, GraphPath: ctx.GraphPath, NodeID: string(deleted.ID),
						DeletedNodeLabels: deleted.Labels, DeletedNodeProps: deleted.Properties,
					})
					count++
				} else {
					deleted, err := graph.DeleteNode(node.ID)
					if err != nil {
						return combineUndo(undoOps), count, err
					}
					deletedNodes[deleted.ID] = true
					undoOps = append(undoOps, txn.UndoOperation{
						Kind: txn.UndoDeleteNode, GraphPath: ctx.GraphPath, NodeID: string(deleted.ID),
						DeletedNodeLabels: deleted.Labels, DeletedNodeProps: deleted.Properties,
					})
					count++
				}
				continue
			}

			if edge, err := graph.GetEdge(storage.EdgeID(id)); err == nil {
				if deletedEdges[edge.ID] {
					continue
				}
				deleted, err := graph.DeleteEdge(edge.ID)
				if err != nil {
					return combineUndo(undoOps), count, err
				}
				deletedEdges[deleted.ID] = true
				undoOps = append(undoOps, txn.UndoOperation{
					Kind: txn.UndoDeleteEdge, GraphPath: ctx.GraphPath, EdgeID: string(deleted.ID),
					DeletedEdgeFrom: string(deleted.StartNode), DeletedEdgeTo: string(deleted.EndNode),
					DeletedEdgeLabel: deleted.Label, DeletedEdgeProps: deleted.Properties,
				})
				count++
			}
		}
	}

	return combineUndo(undoOps), count, nil
}
