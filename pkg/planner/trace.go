package planner

import (
	"fmt"
	"strings"
	"time"
)

// PlanningPhase names one stage of planning, mirroring trace.rs's
// PlanningPhase enum.
type PlanningPhase int

const (
	PhaseParsing PlanningPhase = iota
	PhaseLogicalGeneration
	PhaseLogicalOptimization
	PhasePhysicalGeneration
	PhasePhysicalOptimization
	PhaseCostEstimation
)

func (p PlanningPhase) String() string {
	switch p {
	case PhaseParsing:
		return "Parsing"
	case PhaseLogicalGeneration:
		return "LogicalPlanGeneration"
	case PhaseLogicalOptimization:
		return "LogicalOptimization"
	case PhasePhysicalGeneration:
		return "PhysicalPlanGeneration"
	case PhasePhysicalOptimization:
		return "PhysicalOptimization"
	case PhaseCostEstimation:
		return "CostEstimation"
	default:
		return "Unknown"
	}
}

// TraceMetadata carries optional annotations for one TraceStep.
type TraceMetadata struct {
	OptimizationApplied string
	RuleName            string
	VariablesInScope    []string
	EstimatedRows       *int
	EstimatedCost       *float64
}

// TraceStep is one recorded step of the planning process.
type TraceStep struct {
	Phase       PlanningPhase
	Description string
	Duration    time.Duration
	Metadata    TraceMetadata
}

// PlanTrace records every step taken while planning one query, plus the
// resulting logical and physical plans, mirroring
// original_source/graphlite/src/plan/trace.rs's PlanTrace.
type PlanTrace struct {
	Steps         []TraceStep
	TotalDuration time.Duration
	Logical       *LogicalPlan
	Physical      *PhysicalPlan
}

// Tracer accumulates TraceSteps across a single PlanAndTrace call.
type Tracer struct {
	steps []TraceStep
	start time.Time
}

func NewTracer() *Tracer {
	return &Tracer{start: time.Now()}
}

func (t *Tracer) Record(phase PlanningPhase, description string, stepStart time.Time, meta TraceMetadata) {
	t.steps = append(t.steps, TraceStep{
		Phase: phase, Description: description, Duration: time.Since(stepStart), Metadata: meta,
	})
}

func (t *Tracer) Finish(logical *LogicalPlan, physical *PhysicalPlan) *PlanTrace {
	return &PlanTrace{Steps: t.steps, TotalDuration: time.Since(t.start), Logical: logical, Physical: physical}
}

// FormatTrace renders the trace in the same shape as
// original_source's Rust PlanTrace::format_trace — a numbered list of
// planning steps followed by the logical plan, the physical plan, and a
// summary, all as indented tree text suitable for an EXPLAIN response.
func (pt *PlanTrace) FormatTrace() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query Plan Trace (total: %.2fms)\n", pt.TotalDuration.Seconds()*1000)
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n")

	for i, step := range pt.Steps {
		fmt.Fprintf(&b, "%d. %s (%.2fms)\n", i+1, step.Description, step.Duration.Seconds()*1000)
		fmt.Fprintf(&b, "   Phase: %s\n", step.Phase)
		if step.Metadata.EstimatedRows != nil {
			fmt.Fprintf(&b, "   Estimated rows: %d\n", *step.Metadata.EstimatedRows)
		}
		if step.Metadata.OptimizationApplied != "" {
			fmt.Fprintf(&b, "   Optimization: %s\n", step.Metadata.OptimizationApplied)
		}
		b.WriteString("\n")
	}

	b.WriteString("Logical Plan:\n")
	b.WriteString(strings.Repeat("-", 20))
	b.WriteString("\n")
	b.WriteString(formatLogical(pt.Logical.Root, 0))
	b.WriteString("\n")

	b.WriteString("Physical Plan:\n")
	b.WriteString(strings.Repeat("-", 20))
	b.WriteString("\n")
	b.WriteString(formatPhysical(pt.Physical.Root, 0))
	b.WriteString("\n")

	b.WriteString("Summary:\n")
	b.WriteString(strings.Repeat("-", 20))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total estimated cost: %.2f\n", pt.Physical.EstimatedCost)
	fmt.Fprintf(&b, "Estimated rows: %d\n", pt.Physical.EstimatedRows)
	fmt.Fprintf(&b, "Planning steps: %d\n", len(pt.Steps))

	return b.String()
}

func formatLogical(n LogicalNode, indent int) string {
	prefix := strings.Repeat("  ", indent)
	switch ln := n.(type) {
	case *NodeScan:
		return fmt.Sprintf("%sNodeScan(%s:%s)\n", prefix, ln.Variable, strings.Join(ln.Labels, "|"))
	case *EdgeScan:
		return fmt.Sprintf("%sEdgeScan(%s:%s)\n", prefix, ln.Variable, strings.Join(ln.Labels, "|"))
	case *Expand:
		return fmt.Sprintf("%sExpand(%s -> %s:%s)\n%s", prefix, ln.FromVariable, ln.ToVariable, strings.Join(ln.EdgeLabels, "|"), formatLogical(ln.Input, indent+1))
	case *Filter:
		return fmt.Sprintf("%sFilter(...)\n%s", prefix, formatLogical(ln.Input, indent+1))
	case *Project:
		return fmt.Sprintf("%sProject(%d cols)\n%s", prefix, len(ln.Expressions), formatLogical(ln.Input, indent+1))
	case *Join:
		return fmt.Sprintf("%sJoin\n%s%s", prefix, formatLogical(ln.Left, indent+1), formatLogical(ln.Right, indent+1))
	case *Aggregate:
		return fmt.Sprintf("%sAggregate(%d aggs)\n%s", prefix, len(ln.Aggregates), formatLogical(ln.Input, indent+1))
	case *Sort:
		return fmt.Sprintf("%sSort(%d cols)\n%s", prefix, len(ln.Expressions), formatLogical(ln.Input, indent+1))
	case *Limit:
		return fmt.Sprintf("%sLimit(%d, %d)\n%s", prefix, ln.Count, ln.Offset, formatLogical(ln.Input, indent+1))
	case *Insert:
		return fmt.Sprintf("%sInsert(%d patterns)\n", prefix, len(ln.Patterns))
	case *Delete:
		return fmt.Sprintf("%sDelete(detach=%v)\n%s", prefix, ln.Detach, formatLogical(ln.Input, indent+1))
	case *SingleRow:
		return fmt.Sprintf("%sSingleRow()\n", prefix)
	default:
		return fmt.Sprintf("%sOther(%T)\n", prefix, n)
	}
}

func formatPhysical(n PhysicalNode, indent int) string {
	prefix := strings.Repeat("  ", indent)
	switch pn := n.(type) {
	case *NodeSeqScan:
		return fmt.Sprintf("%sNodeSeqScan(%s:%s) [rows=%d, cost=%.2f]\n", prefix, pn.Variable, strings.Join(pn.Labels, "|"), pn.Rows, pn.Cost)
	case *NodeIndexScan:
		return fmt.Sprintf("%sNodeIndexScan(%s:%s) [rows=%d, cost=%.2f]\n", prefix, pn.Variable, strings.Join(pn.Labels, "|"), pn.Rows, pn.Cost)
	case *EdgeSeqScan:
		return fmt.Sprintf("%sEdgeSeqScan(%s:%s) [rows=%d, cost=%.2f]\n", prefix, pn.Variable, strings.Join(pn.Labels, "|"), pn.Rows, pn.Cost)
	case *IndexedExpand:
		return fmt.Sprintf("%sIndexedExpand(%s -> %s:%s) [rows=%d, cost=%.2f]\n%s", prefix, pn.FromVariable, pn.ToVariable, strings.Join(pn.EdgeLabels, "|"), pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *HashExpand:
		return fmt.Sprintf("%sHashExpand(%s -> %s:%s) [rows=%d, cost=%.2f]\n%s", prefix, pn.FromVariable, pn.ToVariable, strings.Join(pn.EdgeLabels, "|"), pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *PFilter:
		return fmt.Sprintf("%sFilter [rows=%d, cost=%.2f, selectivity=%.3f]\n%s", prefix, pn.Rows, pn.Cost, pn.Selectivity, formatPhysical(pn.Input, indent+1))
	case *PProject:
		return fmt.Sprintf("%sProject[%d columns] [rows=%d, cost=%.2f]\n%s", prefix, len(pn.Expressions), pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *PJoin:
		return fmt.Sprintf("%sJoin [rows=%d, cost=%.2f]\n%s%s", prefix, pn.Rows, pn.Cost, formatPhysical(pn.Left, indent+1), formatPhysical(pn.Right, indent+1))
	case *PAggregate:
		return fmt.Sprintf("%sAggregate[%d aggs] [rows=%d, cost=%.2f]\n%s", prefix, len(pn.Aggregates), pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *InMemorySort:
		return fmt.Sprintf("%sSort[%d columns] (in-memory) [rows=%d, cost=%.2f]\n%s", prefix, len(pn.Expressions), pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *ExternalSort:
		return fmt.Sprintf("%sSort[%d columns] (external) [rows=%d, cost=%.2f]\n%s", prefix, len(pn.Expressions), pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *PLimit:
		return fmt.Sprintf("%sLimit[%d OFFSET %d] [rows=%d, cost=%.2f]\n%s", prefix, pn.Count, pn.Offset, pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *PExistsSubquery:
		name := "EXISTS"
		if pn.Negated {
			name = "NOT EXISTS"
		}
		opt := ""
		if pn.Optimized {
			opt = " (early-term)"
		}
		return fmt.Sprintf("%s%s%s [rows=%d, cost=%.2f]\n%s", prefix, name, opt, pn.Rows, pn.Cost, formatPhysical(pn.Subplan, indent+1))
	case *PUnionAll:
		op := "UNION"
		if pn.All {
			op = "UNION ALL"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s%s[%d inputs] [rows=%d, cost=%.2f]\n", prefix, op, len(pn.Inputs), pn.Rows, pn.Cost)
		for _, in := range pn.Inputs {
			b.WriteString(formatPhysical(in, indent+1))
		}
		return b.String()
	case *PInsert:
		return fmt.Sprintf("%sInsert(%d patterns) [rows=%d, cost=%.2f]\n", prefix, len(pn.Patterns), pn.Rows, pn.Cost)
	case *PDelete:
		return fmt.Sprintf("%sDelete(detach=%v) [rows=%d, cost=%.2f]\n%s", prefix, pn.Detach, pn.Rows, pn.Cost, formatPhysical(pn.Input, indent+1))
	case *PSingleRow:
		return fmt.Sprintf("%sSingleRow() [rows=%d, cost=%.2f]\n", prefix, pn.Rows, pn.Cost)
	default:
		return fmt.Sprintf("%sOther(%T)\n", prefix, n)
	}
}

// PlanAndTrace lowers an already-built logical plan and records a
// PlanTrace for it, the entry point pkg/coordinator's ExplainQuery uses
// after its own parse and planner.Build steps.
func PlanAndTrace(q *LogicalPlan) *PlanTrace {
	tracer := NewTracer()
	stepStart := time.Now()
	physical := Lower(q)
	rows := physical.EstimatedRows
	cost := physical.EstimatedCost
	tracer.Record(PhasePhysicalGeneration, "Lowered logical plan to physical plan", stepStart, TraceMetadata{EstimatedRows: &rows, EstimatedCost: &cost})
	return tracer.Finish(q, physical)
}
