package write

import (
	"errors"
	"fmt"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/executor"
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/txn"
	"github.com/graphlite-db/graphlite/pkg/value"
	"github.com/graphlite-db/graphlite/pkg/wal"
)

// InsertExecutor implements INSERT (standalone CREATE) and MATCH-chained
// CREATE, grounded on original_source's insert.rs (anonymous/identifier-
// mapped node and edge creation, content-hash dedup, non-fatal duplicate
// warnings) and match_insert.rs (CREATE patterns that reference a variable
// already bound by a preceding MATCH instead of creating it fresh).
type InsertExecutor struct {
	Node   *planner.PInsert
	Params map[string]value.Value
}

func NewInsertExecutor(n *planner.PInsert, params map[string]value.Value) *InsertExecutor {
	return &InsertExecutor{Node: n, Params: params}
}

func (x *InsertExecutor) OperationType() wal.OperationType { return wal.OpInsert }

func (x *InsertExecutor) OperationDescription(ctx *ExecutionContext) string {
	return fmt.Sprintf("INSERT %d pattern(s)", len(x.Node.Patterns))
}

// ExecuteModification walks each comma-separated pattern once per matched
// row (a single empty row, for a standalone CREATE with no Input), in the
// two outer passes original_source's insert.rs uses: first every node
// pattern across every comma-separated pattern in the clause, then every
// edge pattern across every pattern. This matters because an edge
// pattern's anonymous endpoints (e.g. `(a)-[:KNOWS]->(b)` followed by
// `(a:Person {name:'A'})`) must resolve against the *other* patterns'
// fully-created nodes, not create placeholder empty nodes of their own
// before the labeled patterns run. Node patterns whose variable is already
// bound — by the enclosing row, or by an earlier pattern in the same
// CREATE clause — are references, not new nodes; everything else is
// created with a deterministic content-hash ID, so repeated identical
// INSERTs collapse to a single stored node and the rest surface as
// warnings instead of errors.
func (x *InsertExecutor) ExecuteModification(graph *storage.Graph, ctx *ExecutionContext) (txn.UndoOperation, int, error) {
	ex := executor.New(graph, x.Params)

	rows := executor.RowSet{executor.Row{}}
	if x.Node.Input != nil {
		var err error
		rows, err = ex.Run(x.Node.Input)
		if err != nil {
			return noopUndo, 0, err
		}
	}

	var undoOps []txn.UndoOperation
	count := 0

	for _, row := range rows {
		known := map[string]storage.NodeID{}
		for v, bound := range row {
			varName, isEntity := baseVariable(v)
			if !isEntity {
				continue
			}
			if id := executor.EntityID(bound); id != "" {
				known[varName] = storage.NodeID(id)
			}
		}

		nodeIDsByPattern := make([][]storage.NodeID, len(x.Node.Patterns))
		for pi, pat := range x.Node.Patterns {
			ids, err := x.applyNodes(ex, graph, ctx, pat, row, known, &undoOps, &count)
			if err != nil {
				return combineUndo(undoOps), count, err
			}
			nodeIDsByPattern[pi] = ids
		}

		for pi, pat := range x.Node.Patterns {
			if err := x.applyEdges(ex, graph, ctx, pat, row, nodeIDsByPattern[pi], &undoOps, &count); err != nil {
				return combineUndo(undoOps), count, err
			}
		}
	}

	return combineUndo(undoOps), count, nil
}

// baseVariable reports whether a synthetic row key names a bare bound
// variable (as opposed to a "<var>.<prop>" property key), returning the
// variable name.
func baseVariable(key string) (string, bool) {
	for _, r := range key {
		if r == '.' {
			return "", false
		}
	}
	return key, key != ""
}

// applyNodes creates or resolves every node pattern in pat, the first of
// insert's two outer passes (see ExecuteModification). Its result is
// handed back to applyEdges for the same pattern once every pattern in
// the clause has finished this pass.
func (x *InsertExecutor) applyNodes(ex *executor.Executor, graph *storage.Graph, ctx *ExecutionContext, pat *ast.PathPattern, row executor.Row, known map[string]storage.NodeID, undoOps *[]txn.UndoOperation, count *int) ([]storage.NodeID, error) {
	nodeIDs := make([]storage.NodeID, len(pat.Nodes))

	for i, np := range pat.Nodes {
		if id, ok := known[np.Variable]; np.Variable != "" && ok {
			nodeIDs[i] = id
			continue
		}
		if np.Variable != "" && len(np.Labels) == 0 && len(np.Properties) == 0 {
			// a bare variable takes its labels and properties from the node
			// pattern in this clause that declares them, if any
			for _, other := range x.Node.Patterns {
				for _, cand := range other.Nodes {
					if cand.Variable == np.Variable && (len(cand.Labels) > 0 || len(cand.Properties) > 0) {
						np = cand
					}
				}
			}
		}

		props, err := evalProps(ex, np.Properties, row)
		if err != nil {
			return nil, err
		}
		if len(np.Labels) == 0 && len(props) == 0 && np.Variable == "" {
			return nil, fmt.Errorf("write: anonymous empty node reference in edge position is invalid")
		}

		id := storage.NodeID(value.ContentHash(np.Labels, propsToValue(props)))
		node := &storage.Node{ID: id, Labels: append([]string(nil), np.Labels...), Properties: props}
		if err := graph.CreateNode(node); err != nil {
			if errors.Is(err, storage.ErrNodeExists) {
				ctx.AddWarning(fmt.Sprintf("node %s already exists, skipping insert", id))
			} else {
				return nil, err
			}
		} else {
			*undoOps = append(*undoOps, txn.UndoOperation{Kind: txn.UndoInsertNode, GraphPath: ctx.GraphPath, NodeID: string(id)})
			*count++
		}
		nodeIDs[i] = id
		if np.Variable != "" {
			known[np.Variable] = id
		}
	}

	return nodeIDs, nil
}

// applyEdges creates every edge pattern in pat against nodeIDs, the
// positionally-aligned node IDs applyNodes already resolved for this
// pattern. This is insert's second outer pass (see ExecuteModification),
// run only after every pattern's nodes exist.
func (x *InsertExecutor) applyEdges(ex *executor.Executor, graph *storage.Graph, ctx *ExecutionContext, pat *ast.PathPattern, row executor.Row, nodeIDs []storage.NodeID, undoOps *[]txn.UndoOperation, count *int) error {
	for i, ep := range pat.Edges {
		from, to := nodeIDs[i], nodeIDs[i+1]
		if ep.Direction == ast.EdgeIncoming {
			from, to = to, from
		}

		props, err := evalProps(ex, ep.Properties, row)
		if err != nil {
			return err
		}
		label := ""
		if len(ep.Types) > 0 {
			label = ep.Types[0]
		}

		id := storage.EdgeID(value.EdgeContentHash(string(from), string(to), label, propsToValue(props)))
		edge := &storage.Edge{ID: id, StartNode: from, EndNode: to, Label: label, Properties: props}
		if err := graph.CreateEdge(edge); err != nil {
			if errors.Is(err, storage.ErrEdgeExists) {
				ctx.AddWarning(fmt.Sprintf("edge %s already exists, skipping insert", id))
				continue
			}
			return err
		}
		*undoOps = append(*undoOps, txn.UndoOperation{Kind: txn.UndoInsertEdge, GraphPath: ctx.GraphPath, EdgeID: string(id)})
		*count++
	}

	return nil
}

func evalProps(ex *executor.Executor, exprs map[string]ast.Expression, row executor.Row) (map[string]any, error) {
	if len(exprs) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(exprs))
	for k, expr := range exprs {
		v, err := ex.Eval(expr, row)
		if err != nil {
			return nil, fmt.Errorf("write: evaluating property %q: %w", k, err)
		}
		out[k] = v.ToAny()
	}
	return out, nil
}

func propsToValue(props map[string]any) map[string]value.Value {
	out := make(map[string]value.Value, len(props))
	for k, v := range props {
		out[k] = value.FromAny(v)
	}
	return out
}

// combineUndo wraps multiple undo operations produced by one statement in
// a single Batch, per spec.md's "wrapped in UndoOperation::Batch for
// atomic rollback" rule; a statement that touched nothing returns noopUndo,
// and a statement that touched exactly one entity returns that op bare so
// callers don't have to unwrap a trivial batch.
func combineUndo(ops []txn.UndoOperation) txn.UndoOperation {
	switch len(ops) {
	case 0:
		return noopUndo
	case 1:
		return ops[0]
	default:
		return txn.BatchOf(ops...)
	}
}
