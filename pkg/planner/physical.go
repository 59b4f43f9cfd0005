package planner

import "github.com/graphlite-db/graphlite/pkg/ast"

// PhysicalNode is one node of the physical (storage-aware) plan tree, the
// shape the executor actually interprets. Grounded on the PhysicalNode
// enum implied by original_source/graphlite/src/plan/trace.rs's
// formatting code (NodeSeqScan/NodeIndexScan/EdgeSeqScan/IndexedExpand/
// HashExpand/Filter/Project/InMemorySort/ExternalSort/Limit/subquery
// variants/UnionAll/Intersect/Except/SingleRow).
type PhysicalNode interface {
	physicalNode()
	EstimatedRows() int
	EstimatedCost() float64
}

type costed struct {
	Rows int
	Cost float64
}

func (c costed) EstimatedRows() int      { return c.Rows }
func (c costed) EstimatedCost() float64  { return c.Cost }

type NodeSeqScan struct {
	costed
	Variable   string
	Labels     []string
	Properties map[string]ast.Expression
}

func (*NodeSeqScan) physicalNode() {}

// NodeIndexScan is chosen over NodeSeqScan when the scan has a label
// filter and its cardinality estimate is at or below
// indexEligibleLabelCardinality (see Lower); GraphLite does not maintain real label
// indexes yet, so this is currently equivalent to a seq scan with a lower
// estimated cost, matching the cost-model distinction original_source
// draws without requiring an actual index structure.
type NodeIndexScan struct {
	costed
	Variable   string
	Labels     []string
	Properties map[string]ast.Expression
}

func (*NodeIndexScan) physicalNode() {}

type EdgeSeqScan struct {
	costed
	Variable string
	Labels   []string
}

func (*EdgeSeqScan) physicalNode() {}

// IndexedExpand looks up adjacency via the storage layer's per-node
// incoming/outgoing edge index — the default expand strategy since
// pkg/storage.Graph always maintains these indexes.
type IndexedExpand struct {
	costed
	FromVariable string
	EdgeVariable string
	ToVariable   string
	EdgeLabels   []string
	Direction    ast.EdgeDirection
	MinHops      *int
	MaxHops      *int
	Input        PhysicalNode
}

func (*IndexedExpand) physicalNode() {}

// HashExpand builds a hash table over the edge set before probing,
// selected instead of IndexedExpand when the input cardinality estimate
// exceeds hashExpandThreshold, matching the teacher's general practice of
// switching strategies past a size threshold (pkg/cypher/cache.go's
// capacity thresholds follow the same idiom).
type HashExpand struct {
	costed
	FromVariable string
	EdgeVariable string
	ToVariable   string
	EdgeLabels   []string
	Direction    ast.EdgeDirection
	MinHops      *int
	MaxHops      *int
	Input        PhysicalNode
}

func (*HashExpand) physicalNode() {}

// PPathTraversal is the physical form of a PathTraversal logical node: one
// operator walking Elements in order and enforcing Mode's repeat rule
// across the whole path, rather than per-hop.
type PPathTraversal struct {
	costed
	Mode         ast.PathMode
	FromVariable string
	ToVariable   string
	Elements     []PathElement
	Input        PhysicalNode
}

func (*PPathTraversal) physicalNode() {}

type PFilter struct {
	costed
	Condition   ast.Expression
	Selectivity float64
	Input       PhysicalNode
}

func (*PFilter) physicalNode() {}

type PProject struct {
	costed
	Expressions []ProjectExpression
	Input       PhysicalNode
}

func (*PProject) physicalNode() {}

type PJoin struct {
	costed
	Kind      JoinType
	Condition ast.Expression
	Left      PhysicalNode
	Right     PhysicalNode
}

func (*PJoin) physicalNode() {}

type PAggregate struct {
	costed
	GroupBy    []ast.Expression
	Aggregates []AggregateExpression
	Input      PhysicalNode
}

func (*PAggregate) physicalNode() {}

type PHaving struct {
	costed
	Condition ast.Expression
	Input     PhysicalNode
}

func (*PHaving) physicalNode() {}

// InMemorySort is used when the input cardinality estimate is at or below
// sortSpillThreshold.
type InMemorySort struct {
	costed
	Expressions []SortExpression
	Input       PhysicalNode
}

func (*InMemorySort) physicalNode() {}

// ExternalSort is used above sortSpillThreshold. GraphLite does not
// actually spill to disk (it is an embedded in-process engine without a
// buffer-pool manager), so this operator executes identically to
// InMemorySort; the distinction is retained because original_source draws
// it in its physical plan and cost model, and EXPLAIN output should name
// it the same way.
type ExternalSort struct {
	costed
	Expressions []SortExpression
	Input       PhysicalNode
}

func (*ExternalSort) physicalNode() {}

type PDistinct struct {
	costed
	Input PhysicalNode
}

func (*PDistinct) physicalNode() {}

type PLimit struct {
	costed
	Count  int
	Offset int
	Input  PhysicalNode
}

func (*PLimit) physicalNode() {}

type PExistsSubquery struct {
	costed
	Subplan   PhysicalNode
	Optimized bool // early-termination enabled
	Negated   bool
}

func (*PExistsSubquery) physicalNode() {}

type PInSubquery struct {
	costed
	Expr    ast.Expression
	Subplan PhysicalNode
	Negated bool
}

func (*PInSubquery) physicalNode() {}

type PScalarSubquery struct {
	costed
	Subplan PhysicalNode
}

func (*PScalarSubquery) physicalNode() {}

type PUnionAll struct {
	costed
	Inputs []PhysicalNode
	All    bool
}

func (*PUnionAll) physicalNode() {}

type PIntersect struct {
	costed
	Left, Right PhysicalNode
	All         bool
}

func (*PIntersect) physicalNode() {}

type PExcept struct {
	costed
	Left, Right PhysicalNode
	All         bool
}

func (*PExcept) physicalNode() {}

type PInsert struct {
	costed
	Patterns []*ast.PathPattern
	Input    PhysicalNode // nil for a standalone CREATE
}

func (*PInsert) physicalNode() {}

type PUpdate struct {
	costed
	TargetVariable string
	Properties     map[string]ast.Expression
	AddLabels      []string
	RemoveLabels   []string
	RemoveProperty string
	Input          PhysicalNode
}

func (*PUpdate) physicalNode() {}

type PDelete struct {
	costed
	TargetVariables []string
	Detach          bool
	Input           PhysicalNode
}

func (*PDelete) physicalNode() {}

type PSingleRow struct {
	costed
}

func (*PSingleRow) physicalNode() {}

// PhysicalPlan wraps the physical tree root with its top-level cost
// estimate, mirroring PhysicalPlan{root, estimated_cost, estimated_rows}.
type PhysicalPlan struct {
	Root          PhysicalNode
	EstimatedCost float64
	EstimatedRows int
}
