// Package planner builds logical and physical query plans from an
// ast.Statement, grounded on original_source/graphlite/src/plan/logical.rs
// and .../plan/trace.rs, restructured in the teacher's operator-tree style
// (pkg/cypher/executor.go's bottom-up walk, pkg/cypher/explain.go's
// EXPLAIN/PROFILE plan shape).
package planner

import "github.com/graphlite-db/graphlite/pkg/ast"

// LogicalNode is one node of the logical (storage-agnostic) plan tree.
type LogicalNode interface {
	logicalNode()
	Cardinality() int
}

type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeftOuter
	JoinLeftSemi // EXISTS unnesting
	JoinLeftAnti // NOT EXISTS unnesting
)

type ProjectExpression struct {
	Expr  ast.Expression
	Alias string
}

type AggregateExpression struct {
	Function string // COUNT, SUM, AVG, MIN, MAX, COLLECT
	Expr     ast.Expression
	Distinct bool
	Alias    string
}

type SortExpression struct {
	Expr ast.Expression
	Desc bool
}

// NodeScan scans all nodes carrying the given labels.
type NodeScan struct {
	Variable   string
	Labels     []string
	Properties map[string]ast.Expression
}

func (*NodeScan) logicalNode()     {}
func (*NodeScan) Cardinality() int { return 1000 }

// EdgeScan scans all edges carrying the given labels.
type EdgeScan struct {
	Variable   string
	Labels     []string
	Properties map[string]ast.Expression
}

func (*EdgeScan) logicalNode()     {}
func (*EdgeScan) Cardinality() int { return 5000 }

// Expand walks edges out of (or into) an already-bound node variable.
type Expand struct {
	FromVariable string
	EdgeVariable string
	ToVariable   string
	EdgeLabels   []string
	Direction    ast.EdgeDirection
	Properties   map[string]ast.Expression
	MinHops      *int
	MaxHops      *int
	Input        LogicalNode
}

func (*Expand) logicalNode()     {}
func (n *Expand) Cardinality() int { return n.Input.Cardinality() * 5 }

type Filter struct {
	Condition ast.Expression
	Input     LogicalNode
}

func (*Filter) logicalNode()     {}
func (n *Filter) Cardinality() int { return maxInt(n.Input.Cardinality()/2, 0) }

type Project struct {
	Expressions []ProjectExpression
	Input       LogicalNode
}

func (*Project) logicalNode()     {}
func (n *Project) Cardinality() int { return n.Input.Cardinality() }

type Join struct {
	Kind      JoinType
	Condition ast.Expression
	Left      LogicalNode
	Right     LogicalNode
}

func (*Join) logicalNode() {}
func (n *Join) Cardinality() int {
	return (n.Left.Cardinality() * n.Right.Cardinality()) / 100
}

type Union struct {
	Inputs []LogicalNode
	All    bool
}

func (*Union) logicalNode() {}
func (n *Union) Cardinality() int {
	total := 0
	for _, in := range n.Inputs {
		total += in.Cardinality()
	}
	return total
}

type Intersect struct {
	Left, Right LogicalNode
	All         bool
}

func (*Intersect) logicalNode() {}
func (n *Intersect) Cardinality() int {
	return minInt(n.Left.Cardinality(), n.Right.Cardinality())
}

type Except struct {
	Left, Right LogicalNode
	All         bool
}

func (*Except) logicalNode() {}
func (n *Except) Cardinality() int {
	return n.Left.Cardinality() - minInt(n.Right.Cardinality(), n.Left.Cardinality())
}

type Aggregate struct {
	GroupBy    []ast.Expression
	Aggregates []AggregateExpression
	Input      LogicalNode
}

func (*Aggregate) logicalNode() {}
func (n *Aggregate) Cardinality() int {
	c := n.Input.Cardinality() / 10
	if c == 0 {
		// COUNT(*) over empty input still returns a single row, per the
		// accepted Open Question resolution.
		return 1
	}
	return c
}

type Having struct {
	Condition ast.Expression
	Input     LogicalNode
}

func (*Having) logicalNode()     {}
func (n *Having) Cardinality() int { return maxInt(n.Input.Cardinality()/3, 0) }

type Sort struct {
	Expressions []SortExpression
	Input       LogicalNode
}

func (*Sort) logicalNode()     {}
func (n *Sort) Cardinality() int { return n.Input.Cardinality() }

type Distinct struct {
	Input LogicalNode
}

func (*Distinct) logicalNode()     {}
func (n *Distinct) Cardinality() int { return maxInt(n.Input.Cardinality()/2, 0) }

type Limit struct {
	Count  int
	Offset int
	Input  LogicalNode
}

func (*Limit) logicalNode() {}
func (n *Limit) Cardinality() int {
	return minInt(n.Count, n.Input.Cardinality())
}

type ExistsSubquery struct {
	Subquery       LogicalNode
	OuterVariables []string
	Negated        bool
}

func (*ExistsSubquery) logicalNode() {}
func (n *ExistsSubquery) Cardinality() int {
	has := n.Subquery.Cardinality() > 0
	if n.Negated {
		has = !has
	}
	if has {
		return 1
	}
	return 0
}

type InSubquery struct {
	Expr           ast.Expression
	Subquery       LogicalNode
	OuterVariables []string
	Negated        bool
}

func (*InSubquery) logicalNode() {}
func (n *InSubquery) Cardinality() int {
	if n.Negated {
		if n.Subquery.Cardinality() == 0 {
			return 1000
		}
		return 100
	}
	return minInt(n.Subquery.Cardinality(), 1000)
}

type ScalarSubquery struct {
	Subquery       LogicalNode
	OuterVariables []string
}

func (*ScalarSubquery) logicalNode() {}
func (n *ScalarSubquery) Cardinality() int { return minInt(n.Subquery.Cardinality(), 1) }

// Insert creates new nodes/edges described by patterns. Input is nil for a
// standalone CREATE (every pattern variable is freshly created); when CREATE
// follows a MATCH/WITH pipeline, Input carries the prior row bindings so a
// pattern can reference an already-bound variable instead of creating it
// (MATCH ... CREATE chaining).
type Insert struct {
	Patterns []*ast.PathPattern
	Input    LogicalNode
}

func (*Insert) logicalNode() {}
func (n *Insert) Cardinality() int {
	if n.Input != nil {
		return maxInt(n.Input.Cardinality(), 1)
	}
	return len(n.Patterns)
}

// Update applies a SET/REMOVE mutation to rows produced by Input.
type Update struct {
	TargetVariable string
	Properties     map[string]ast.Expression
	AddLabels      []string
	RemoveLabels   []string
	RemoveProperty string
	Input          LogicalNode
}

func (*Update) logicalNode()     {}
func (*Update) Cardinality() int { return 1 }

// Delete removes bound nodes/edges, DETACH-deleting incident edges first
// when Detach is set.
type Delete struct {
	TargetVariables []string
	Detach          bool
	Input           LogicalNode
}

func (*Delete) logicalNode()     {}
func (*Delete) Cardinality() int { return 1 }

// PathElement is one edge-then-node step of a PathTraversal, grounded on
// original_source's plan::logical::PathElement.
type PathElement struct {
	EdgeVariable   string
	NodeVariable   string
	NodeLabels     []string
	NodeProperties map[string]ast.Expression
	EdgeLabels     []string
	Direction      ast.EdgeDirection
	MinHops        *int
	MaxHops        *int
}

// PathTraversal replaces the default Expand chain for a path pattern whose
// Mode is TRAIL, SIMPLE, or ACYCLIC: rather than one Expand per hop (which
// only constrains a single step), it walks Elements as one operator that
// enforces the path type's repeat rule across the whole traversal -
// TRAIL forbids reusing an edge, SIMPLE and ACYCLIC forbid reusing a node,
// and ACYCLIC additionally forbids reusing an edge.
type PathTraversal struct {
	Mode         ast.PathMode
	FromVariable string
	ToVariable   string
	Elements     []PathElement
	Input        LogicalNode
}

func (*PathTraversal) logicalNode() {}

// pathCardinalityMultiplier mirrors original_source's estimate_cardinality
// match on PathType (20/15/10/5 for WALK/TRAIL/SIMPLE/ACYCLIC).
var pathCardinalityMultiplier = map[ast.PathMode]int{
	ast.PathModeWalk:    20,
	ast.PathModeTrail:   15,
	ast.PathModeSimple:  10,
	ast.PathModeAcyclic: 5,
}

func (n *PathTraversal) Cardinality() int {
	mult, ok := pathCardinalityMultiplier[n.Mode]
	if !ok {
		mult = 20
	}
	return n.Input.Cardinality() * mult
}

// SingleRow produces exactly one empty row, used for standalone RETURN and
// LET-only queries with no MATCH.
type SingleRow struct{}

func (*SingleRow) logicalNode()     {}
func (*SingleRow) Cardinality() int { return 1 }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// LogicalPlan wraps the tree root plus the statement text it was built
// from, for trace/explain output.
type LogicalPlan struct {
	Root  LogicalNode
	Query string
}
