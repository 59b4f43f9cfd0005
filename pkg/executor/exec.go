package executor

import (
	"fmt"
	"sort"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/value"
)

// Executor interprets a planner.PhysicalPlan's read-path operators over a
// single storage.Graph. Scan/expand/filter/project/sort/set-operation
// operators live in this file, aggregation, scalar functions and
// subqueries in aggregate.go, and expression evaluation (including CASE)
// in eval.go.
type Executor struct {
	Graph  *storage.Graph
	Params map[string]value.Value

	// outer carries the enclosing row's bindings for a correlated
	// subquery executor, consulted by Eval when a variable or property
	// is not bound in the subquery's own row.
	outer Row
}

func New(g *storage.Graph, params map[string]value.Value) *Executor {
	if params == nil {
		params = make(map[string]value.Value)
	}
	return &Executor{Graph: g, Params: params}
}

// Run interprets plan's physical tree bottom-up, returning the resulting
// RowSet, mirroring the teacher's StorageExecutor operator-switch walk.
func (e *Executor) Run(plan planner.PhysicalNode) (RowSet, error) {
	switch n := plan.(type) {
	case *planner.NodeSeqScan, *planner.NodeIndexScan:
		return e.runNodeScan(plan)

	case *planner.EdgeSeqScan:
		return e.runEdgeScan(n)

	case *planner.IndexedExpand:
		return e.runExpand(n.Input, n.FromVariable, n.EdgeVariable, n.ToVariable, n.EdgeLabels, n.Direction, n.MinHops, n.MaxHops)

	case *planner.HashExpand:
		return e.runExpand(n.Input, n.FromVariable, n.EdgeVariable, n.ToVariable, n.EdgeLabels, n.Direction, n.MinHops, n.MaxHops)

	case *planner.PPathTraversal:
		return e.runPathTraversal(n)

	case *planner.PFilter:
		return e.runFilter(n)

	case *planner.PProject:
		return e.runProject(n)

	case *planner.PJoin:
		return e.runJoin(n)

	case *planner.PAggregate:
		return e.runAggregate(n)

	case *planner.PHaving:
		return e.runHaving(n)

	case *planner.InMemorySort:
		return e.runSort(n.Expressions, n.Input)

	case *planner.ExternalSort:
		return e.runSort(n.Expressions, n.Input)

	case *planner.PDistinct:
		return e.runDistinct(n)

	case *planner.PLimit:
		return e.runLimit(n)

	case *planner.PExistsSubquery:
		return e.runExistsPhysical(n)

	case *planner.PInSubquery:
		return e.runInSubqueryPhysical(n)

	case *planner.PScalarSubquery:
		return e.runScalarSubqueryPhysical(n)

	case *planner.PUnionAll:
		return e.runUnion(n)

	case *planner.PIntersect:
		return e.runIntersect(n)

	case *planner.PExcept:
		return e.runExcept(n)

	case *planner.PSingleRow:
		return RowSet{Row{}}, nil

	default:
		return nil, errs.Runtime(fmt.Sprintf("unsupported physical node %T in read path", plan))
	}
}

func (e *Executor) runNodeScan(plan planner.PhysicalNode) (RowSet, error) {
	var variable string
	var labels []string
	var props map[string]ast.Expression
	switch n := plan.(type) {
	case *planner.NodeSeqScan:
		variable, labels, props = n.Variable, n.Labels, n.Properties
	case *planner.NodeIndexScan:
		variable, labels, props = n.Variable, n.Labels, n.Properties
	}

	// A correlated subquery re-mentions an outer-bound node variable in
	// its own MATCH pattern; rather than rescanning the whole label set,
	// constrain to the single node already bound by the enclosing row.
	if bound, ok := e.outer[variable]; ok {
		if id := entityID(bound); id != "" {
			node, err := e.Graph.GetNode(storage.NodeID(id))
			if err != nil {
				return RowSet{}, nil
			}
			if !hasAllLabels(node.Labels, labels) {
				return RowSet{}, nil
			}
			row := nodeRow(variable, node)
			if props != nil {
				matched, err := e.nodeMatchesProps(node, props, row)
				if err != nil {
					return nil, err
				}
				if !matched {
					return RowSet{}, nil
				}
			}
			return RowSet{row}, nil
		}
	}

	nodes := e.Graph.NodesByLabel(labels)
	var out RowSet
	for _, node := range nodes {
		row := nodeRow(variable, node)
		if props != nil {
			matched, err := e.nodeMatchesProps(node, props, row)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (e *Executor) nodeMatchesProps(node *storage.Node, props map[string]ast.Expression, row Row) (bool, error) {
	for k, exprVal := range props {
		want, err := e.Eval(exprVal, row)
		if err != nil {
			return false, err
		}
		got := value.FromAny(node.Properties[k])
		if !got.Equal(want) {
			return false, nil
		}
	}
	return true, nil
}

func nodeRow(variable string, n *storage.Node) Row {
	row := Row{variable: entityValue(string(n.ID), n.Labels)}
	for k, v := range n.Properties {
		row[variable+"."+k] = value.FromAny(v)
	}
	return row
}

func edgeRow(variable string, e *storage.Edge) Row {
	row := Row{variable: entityValue(string(e.ID), []string{e.Label})}
	for k, v := range e.Properties {
		row[variable+"."+k] = value.FromAny(v)
	}
	return row
}

// entityValue represents a bound node/edge as its content-hash ID string
// plus its labels encoded as a List, the minimal structural value the
// expression evaluator needs for equality/variable references; property
// access is resolved through the "<var>.<prop>" row keys instead of
// through this value.
func entityValue(id string, labels []string) value.Value {
	items := make([]value.Value, 0, len(labels)+1)
	items = append(items, value.Str(id))
	for _, l := range labels {
		items = append(items, value.Str(l))
	}
	return value.List(items)
}

func (e *Executor) runEdgeScan(n *planner.EdgeSeqScan) (RowSet, error) {
	var out RowSet
	for _, edge := range e.Graph.AllEdges() {
		if len(n.Labels) > 0 && !containsLabel(n.Labels, edge.Label) {
			continue
		}
		out = append(out, edgeRow(n.Variable, edge))
	}
	return out, nil
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// runExpand expands fromVar by one or more hops, bounded by minHops/maxHops
// (the quantifier on `-[:T*lo..hi]->`, both nil for a plain single-hop
// edge). WALK semantics allow a hop to revisit any edge or node, so the
// walk carries no visited-sets - only the bookkeeping for comment 3's
// Mode-constrained PathTraversal does.
func (e *Executor) runExpand(input planner.PhysicalNode, fromVar, edgeVar, toVar string, edgeLabels []string, dir ast.EdgeDirection, minHops, maxHops *int) (RowSet, error) {
	inputRows, err := e.Run(input)
	if err != nil {
		return nil, err
	}
	hr := resolveHopRange(minHops, maxHops)
	var out RowSet
	for _, inRow := range inputRows {
		fromVal, ok := inRow[fromVar]
		if !ok {
			continue
		}
		fromID := storage.NodeID(entityID(fromVal))
		e.walkHops(fromID, edgeLabels, dir, hr, nil, nil, func(edge *storage.Edge, toID storage.NodeID, hops int, _ map[storage.EdgeID]bool, _ map[storage.NodeID]bool) {
			toNode, err := e.Graph.GetNode(toID)
			if err != nil {
				return
			}
			newRow := inRow.Clone()
			if edgeVar != "" {
				for k, v := range edgeRow(edgeVar, edge) {
					newRow[k] = v
				}
			}
			for k, v := range nodeRow(toVar, toNode) {
				newRow[k] = v
			}
			out = append(out, newRow)
		})
	}
	return out, nil
}

// unboundedHopCap guards an open-ended quantifier (`-[:T*2..]->`, no upper
// bound given) from an unbounded walk; GraphLite is an embedded in-process
// engine with no query cancellation, so a hard cap is the safer default.
const unboundedHopCap = 16

type hopRange struct{ min, max int }

func resolveHopRange(minHops, maxHops *int) hopRange {
	switch {
	case minHops == nil && maxHops == nil:
		return hopRange{1, 1}
	case minHops == nil:
		return hopRange{1, *maxHops}
	case maxHops == nil:
		return hopRange{*minHops, *minHops + unboundedHopCap}
	default:
		return hopRange{*minHops, *maxHops}
	}
}

// walkHops performs a bounded DFS of between hr.min and hr.max hops from
// from, invoking visit once per reachable (edge, node) pair at every valid
// hop count. visitedEdges/visitedNodes are nil for plain WALK traversal
// (repeats allowed); when non-nil (PathTraversal's TRAIL/SIMPLE/ACYCLIC
// modes), a hop that would revisit a tracked edge or node is pruned. visit
// receives the accumulated visited-sets reflecting the path up to and
// including this hop, so a caller chaining further PathElements can carry
// them forward without re-deriving them.
func (e *Executor) walkHops(from storage.NodeID, labels []string, dir ast.EdgeDirection, hr hopRange, visitedEdges map[storage.EdgeID]bool, visitedNodes map[storage.NodeID]bool, visit func(edge *storage.Edge, to storage.NodeID, hops int, ve map[storage.EdgeID]bool, vn map[storage.NodeID]bool)) {
	e.walkHopsRec(from, labels, dir, hr, 1, visitedEdges, visitedNodes, visit)
}

func (e *Executor) walkHopsRec(from storage.NodeID, labels []string, dir ast.EdgeDirection, hr hopRange, depth int, visitedEdges map[storage.EdgeID]bool, visitedNodes map[storage.NodeID]bool, visit func(*storage.Edge, storage.NodeID, int, map[storage.EdgeID]bool, map[storage.NodeID]bool)) {
	if depth > hr.max {
		return
	}
	for _, edge := range e.edgesForDirection(from, labels, dir) {
		if visitedEdges != nil && visitedEdges[edge.ID] {
			continue
		}
		to := edge.EndNode
		if dir == ast.EdgeIncoming {
			to = edge.StartNode
		}
		if visitedNodes != nil && visitedNodes[to] {
			continue
		}

		var nextVE map[storage.EdgeID]bool
		if visitedEdges != nil {
			nextVE = cloneEdgeSet(visitedEdges)
			nextVE[edge.ID] = true
		}
		var nextVN map[storage.NodeID]bool
		if visitedNodes != nil {
			nextVN = cloneNodeSet(visitedNodes)
			nextVN[to] = true
		}

		if depth >= hr.min {
			visit(edge, to, depth, nextVE, nextVN)
		}
		if depth < hr.max {
			e.walkHopsRec(to, labels, dir, hr, depth+1, nextVE, nextVN, visit)
		}
	}
}

func cloneEdgeSet(s map[storage.EdgeID]bool) map[storage.EdgeID]bool {
	out := make(map[storage.EdgeID]bool, len(s)+1)
	for k := range s {
		out[k] = true
	}
	return out
}

func cloneNodeSet(s map[storage.NodeID]bool) map[storage.NodeID]bool {
	out := make(map[storage.NodeID]bool, len(s)+1)
	for k := range s {
		out[k] = true
	}
	return out
}

// runPathTraversal walks n.Elements in order from each row's bound
// FromVariable node, enforcing n.Mode's repeat rule across the entire
// path: TRAIL tracks visited edges, SIMPLE and ACYCLIC track visited
// nodes, and ACYCLIC tracks both. Plain WALK patterns never lower to this
// operator (see buildPathTraversal); they stay on the per-hop Expand path.
func (e *Executor) runPathTraversal(n *planner.PPathTraversal) (RowSet, error) {
	inputRows, err := e.Run(n.Input)
	if err != nil {
		return nil, err
	}

	trackEdges := n.Mode == ast.PathModeTrail || n.Mode == ast.PathModeAcyclic
	trackNodes := n.Mode == ast.PathModeSimple || n.Mode == ast.PathModeAcyclic

	var out RowSet
	var walkErr error
	for _, inRow := range inputRows {
		fromVal, ok := inRow[n.FromVariable]
		if !ok {
			continue
		}
		fromID := storage.NodeID(entityID(fromVal))

		var ve map[storage.EdgeID]bool
		if trackEdges {
			ve = map[storage.EdgeID]bool{}
		}
		var vn map[storage.NodeID]bool
		if trackNodes {
			vn = map[storage.NodeID]bool{fromID: true}
		}

		if err := e.walkPathElements(inRow, fromID, n.Elements, 0, ve, vn, func(row Row) {
			out = append(out, row)
		}); err != nil {
			walkErr = err
			break
		}
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func (e *Executor) walkPathElements(row Row, curID storage.NodeID, elements []planner.PathElement, idx int, ve map[storage.EdgeID]bool, vn map[storage.NodeID]bool, emit func(Row)) error {
	if idx == len(elements) {
		emit(row)
		return nil
	}
	elem := elements[idx]
	hr := resolveHopRange(elem.MinHops, elem.MaxHops)

	var walkErr error
	e.walkHops(curID, elem.EdgeLabels, elem.Direction, hr, ve, vn, func(edge *storage.Edge, to storage.NodeID, hops int, nve map[storage.EdgeID]bool, nvn map[storage.NodeID]bool) {
		if walkErr != nil {
			return
		}
		toNode, err := e.Graph.GetNode(to)
		if err != nil {
			return
		}
		if !hasAllLabels(toNode.Labels, elem.NodeLabels) {
			return
		}

		next := row.Clone()
		if elem.EdgeVariable != "" {
			for k, v := range edgeRow(elem.EdgeVariable, edge) {
				next[k] = v
			}
		}
		for k, v := range nodeRow(elem.NodeVariable, toNode) {
			next[k] = v
		}
		if len(elem.NodeProperties) > 0 {
			matched, err := e.nodeMatchesProps(toNode, elem.NodeProperties, next)
			if err != nil {
				walkErr = err
				return
			}
			if !matched {
				return
			}
		}

		if err := e.walkPathElements(next, to, elements, idx+1, nve, nvn, emit); err != nil {
			walkErr = err
		}
	})
	return walkErr
}

func (e *Executor) edgesForDirection(from storage.NodeID, labels []string, dir ast.EdgeDirection) []*storage.Edge {
	switch dir {
	case ast.EdgeOutgoing:
		return e.Graph.OutgoingEdges(from, labels)
	case ast.EdgeIncoming:
		return e.Graph.IncomingEdges(from, labels)
	default:
		out := append([]*storage.Edge{}, e.Graph.OutgoingEdges(from, labels)...)
		out = append(out, e.Graph.IncomingEdges(from, labels)...)
		return out
	}
}

// EntityID extracts the bound node/edge ID from a row value produced by the
// scan/expand operators, for callers outside this package (the write-path
// executors) that need to resolve a MATCH-bound variable back to a
// storage.NodeID/EdgeID.
func EntityID(v value.Value) string { return entityID(v) }

func entityID(v value.Value) string {
	if v.Kind() != value.KindList || len(v.AsList()) == 0 {
		return ""
	}
	return v.AsList()[0].AsString()
}

func (e *Executor) runFilter(n *planner.PFilter) (RowSet, error) {
	inputRows, err := e.Run(n.Input)
	if err != nil {
		return nil, err
	}
	if nc, ok := planner.NodeConstraint(n.Condition); ok {
		return e.filterByNodeConstraint(inputRows, nc)
	}
	var out RowSet
	for _, row := range inputRows {
		v, err := e.Eval(n.Condition, row)
		if err != nil {
			return nil, err
		}
		if v.Truthy() {
			out = append(out, row)
		}
	}
	return out, nil
}

func (e *Executor) filterByNodeConstraint(rows RowSet, nc *ast.NodePattern) (RowSet, error) {
	if nc.Variable == "" {
		return rows, nil
	}
	var out RowSet
	for _, row := range rows {
		v, ok := row[nc.Variable]
		if !ok {
			continue
		}
		id := entityID(v)
		node, err := e.Graph.GetNode(storage.NodeID(id))
		if err != nil {
			continue
		}
		if !hasAllLabels(node.Labels, nc.Labels) {
			continue
		}
		matched, err := e.nodeMatchesProps(node, nc.Properties, row)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, row)
		}
	}
	return out, nil
}

func hasAllLabels(have, want []string) bool {
	for _, w := range want {
		if !containsLabel(have, w) {
			return false
		}
	}
	return true
}

func (e *Executor) runProject(n *planner.PProject) (RowSet, error) {
	inputRows, err := e.Run(n.Input)
	if err != nil {
		return nil, err
	}
	var out RowSet
	for _, row := range inputRows {
		newRow := Row{}
		for _, expr := range n.Expressions {
			if v, ok := expr.Expr.(*ast.Variable); ok && v.Name == "*" {
				for k, val := range row {
					newRow[k] = val
				}
				continue
			}
			v, err := e.Eval(expr.Expr, row)
			if err != nil {
				return nil, err
			}
			key := expr.Alias
			if key == "" {
				key = exprKey(expr.Expr)
			}
			newRow[key] = v
		}
		out = append(out, newRow)
	}
	return out, nil
}

func (e *Executor) runJoin(n *planner.PJoin) (RowSet, error) {
	left, err := e.Run(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.Run(n.Right)
	if err != nil {
		return nil, err
	}
	var out RowSet
	for _, l := range left {
		matchedAny := false
		for _, r := range right {
			if !rowsCompatible(l, r) {
				continue
			}
			merged := l.Clone()
			for k, v := range r {
				merged[k] = v
			}
			if n.Condition != nil {
				ok, err := e.Eval(n.Condition, merged)
				if err != nil {
					return nil, err
				}
				if !ok.Truthy() {
					continue
				}
			}
			out = append(out, merged)
			matchedAny = true
		}
		if !matchedAny && n.Kind == planner.JoinLeftOuter {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

// rowsCompatible checks that any variable bound in both rows agrees; this
// is how sibling MATCH patterns sharing a variable are implicitly joined.
func rowsCompatible(l, r Row) bool {
	for k, lv := range l {
		if rv, ok := r[k]; ok {
			if !lv.Equal(rv) {
				return false
			}
		}
	}
	return true
}

func (e *Executor) runSort(exprs []planner.SortExpression, input planner.PhysicalNode) (RowSet, error) {
	rows, err := e.Run(input)
	if err != nil {
		return nil, err
	}
	var evalErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, se := range exprs {
			vi, err := e.Eval(se.Expr, rows[i])
			if err != nil {
				evalErr = err
				return false
			}
			vj, err := e.Eval(se.Expr, rows[j])
			if err != nil {
				evalErr = err
				return false
			}
			cmp, ok := value.Compare(vi, vj)
			if !ok || cmp == 0 {
				continue
			}
			if se.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return rows, nil
}

func (e *Executor) runDistinct(n *planner.PDistinct) (RowSet, error) {
	rows, err := e.Run(n.Input)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out RowSet
	for _, row := range rows {
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}

func rowKey(row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var s string
	for _, k := range keys {
		s += k + "=" + row[k].String() + ";"
	}
	return s
}

func (e *Executor) runLimit(n *planner.PLimit) (RowSet, error) {
	rows, err := e.Run(n.Input)
	if err != nil {
		return nil, err
	}
	if n.Offset >= len(rows) {
		return RowSet{}, nil
	}
	rows = rows[n.Offset:]
	if n.Count < len(rows) {
		rows = rows[:n.Count]
	}
	return rows, nil
}

func (e *Executor) runUnion(n *planner.PUnionAll) (RowSet, error) {
	var all RowSet
	for _, in := range n.Inputs {
		rows, err := e.Run(in)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	if n.All {
		return all, nil
	}
	return dedupRows(all), nil
}

func dedupRows(rows RowSet) RowSet {
	seen := make(map[string]struct{})
	var out RowSet
	for _, row := range rows {
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

func (e *Executor) runIntersect(n *planner.PIntersect) (RowSet, error) {
	left, err := e.Run(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.Run(n.Right)
	if err != nil {
		return nil, err
	}
	rightKeys := make(map[string]struct{})
	for _, r := range right {
		rightKeys[rowKey(r)] = struct{}{}
	}
	var out RowSet
	for _, l := range left {
		if _, ok := rightKeys[rowKey(l)]; ok {
			out = append(out, l)
		}
	}
	if n.All {
		return out, nil
	}
	return dedupRows(out), nil
}

func (e *Executor) runExcept(n *planner.PExcept) (RowSet, error) {
	left, err := e.Run(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.Run(n.Right)
	if err != nil {
		return nil, err
	}
	rightKeys := make(map[string]struct{})
	for _, r := range right {
		rightKeys[rowKey(r)] = struct{}{}
	}
	var out RowSet
	for _, l := range left {
		if _, ok := rightKeys[rowKey(l)]; !ok {
			out = append(out, l)
		}
	}
	if n.All {
		return out, nil
	}
	return dedupRows(out), nil
}
