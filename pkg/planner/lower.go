package planner

// hashExpandThreshold is the input-cardinality estimate above which the
// lowering rule prefers HashExpand over IndexedExpand, on the theory that
// building a hash table amortizes better than repeated per-row adjacency
// index lookups once the driving side is large. GraphLite's storage layer
// always maintains adjacency indexes, so IndexedExpand is the default
// below this threshold.
const hashExpandThreshold = 2000

// sortSpillThreshold is the input-cardinality estimate above which the
// lowering rule names the sort operator ExternalSort instead of
// InMemorySort in the physical plan (see ExternalSort's doc comment for
// why both execute identically).
const sortSpillThreshold = 100_000

// indexEligibleLabelCardinality is the NodeScan cardinality estimate at or
// below which a label filter is considered "selective enough" to report as a
// NodeIndexScan in the cost model, versus NodeSeqScan.
const indexEligibleLabelCardinality = 1000

// Lower converts a LogicalPlan into a PhysicalPlan by walking the logical
// tree bottom-up and applying GraphLite's lowering rules (IndexedExpand vs
// HashExpand, sort-spill threshold, EXISTS early-termination), mirroring
// the teacher's bottom-up operator interpretation style in
// pkg/cypher/executor.go.
func Lower(lp *LogicalPlan) *PhysicalPlan {
	root := lowerNode(lp.Root)
	return &PhysicalPlan{Root: root, EstimatedCost: root.EstimatedCost(), EstimatedRows: root.EstimatedRows()}
}

func lowerNode(n LogicalNode) PhysicalNode {
	switch ln := n.(type) {
	case *NodeScan:
		rows := ln.Cardinality()
		if len(ln.Labels) > 0 && rows <= indexEligibleLabelCardinality {
			return &NodeIndexScan{costed: costed{Rows: rows, Cost: float64(rows) * 0.1}, Variable: ln.Variable, Labels: ln.Labels, Properties: ln.Properties}
		}
		return &NodeSeqScan{costed: costed{Rows: rows, Cost: float64(rows)}, Variable: ln.Variable, Labels: ln.Labels, Properties: ln.Properties}

	case *EdgeScan:
		rows := ln.Cardinality()
		return &EdgeSeqScan{costed: costed{Rows: rows, Cost: float64(rows)}, Variable: ln.Variable, Labels: ln.Labels}

	case *Expand:
		input := lowerNode(ln.Input)
		rows := ln.Cardinality()
		if input.EstimatedRows() > hashExpandThreshold {
			return &HashExpand{
				costed: costed{Rows: rows, Cost: float64(input.EstimatedRows()) + float64(rows)*0.5},
				FromVariable: ln.FromVariable, EdgeVariable: ln.EdgeVariable, ToVariable: ln.ToVariable,
				EdgeLabels: ln.EdgeLabels, Direction: ln.Direction, MinHops: ln.MinHops, MaxHops: ln.MaxHops, Input: input,
			}
		}
		return &IndexedExpand{
			costed: costed{Rows: rows, Cost: float64(input.EstimatedRows()) + float64(rows)*0.2},
			FromVariable: ln.FromVariable, EdgeVariable: ln.EdgeVariable, ToVariable: ln.ToVariable,
			EdgeLabels: ln.EdgeLabels, Direction: ln.Direction, MinHops: ln.MinHops, MaxHops: ln.MaxHops, Input: input,
		}

	case *PathTraversal:
		input := lowerNode(ln.Input)
		rows := ln.Cardinality()
		cost := input.EstimatedCost() + float64(input.EstimatedRows())*float64(len(ln.Elements))*0.3
		return &PPathTraversal{
			costed: costed{Rows: rows, Cost: cost}, Mode: ln.Mode,
			FromVariable: ln.FromVariable, ToVariable: ln.ToVariable, Elements: ln.Elements, Input: input,
		}

	case *Filter:
		input := lowerNode(ln.Input)
		rows := ln.Cardinality()
		selectivity := 0.5
		if input.EstimatedRows() > 0 {
			selectivity = float64(rows) / float64(input.EstimatedRows())
		}
		if _, isConstraint := NodeConstraint(ln.Condition); isConstraint {
			selectivity = 0.3
		}
		return &PFilter{costed: costed{Rows: rows, Cost: input.EstimatedCost() + float64(input.EstimatedRows())*0.05}, Condition: ln.Condition, Selectivity: selectivity, Input: input}

	case *Project:
		input := lowerNode(ln.Input)
		return &PProject{costed: costed{Rows: input.EstimatedRows(), Cost: input.EstimatedCost() + float64(input.EstimatedRows())*0.01}, Expressions: ln.Expressions, Input: input}

	case *Join:
		left := lowerNode(ln.Left)
		right := lowerNode(ln.Right)
		rows := ln.Cardinality()
		return &PJoin{costed: costed{Rows: rows, Cost: left.EstimatedCost() + right.EstimatedCost() + float64(rows)*0.1}, Kind: ln.Kind, Condition: ln.Condition, Left: left, Right: right}

	case *Union:
		inputs := make([]PhysicalNode, 0, len(ln.Inputs))
		cost := 0.0
		for _, in := range ln.Inputs {
			p := lowerNode(in)
			inputs = append(inputs, p)
			cost += p.EstimatedCost()
		}
		return &PUnionAll{costed: costed{Rows: ln.Cardinality(), Cost: cost}, Inputs: inputs, All: ln.All}

	case *Intersect:
		left := lowerNode(ln.Left)
		right := lowerNode(ln.Right)
		return &PIntersect{costed: costed{Rows: ln.Cardinality(), Cost: left.EstimatedCost() + right.EstimatedCost()}, Left: left, Right: right, All: ln.All}

	case *Except:
		left := lowerNode(ln.Left)
		right := lowerNode(ln.Right)
		return &PExcept{costed: costed{Rows: ln.Cardinality(), Cost: left.EstimatedCost() + right.EstimatedCost()}, Left: left, Right: right, All: ln.All}

	case *Aggregate:
		input := lowerNode(ln.Input)
		return &PAggregate{costed: costed{Rows: ln.Cardinality(), Cost: input.EstimatedCost() + float64(input.EstimatedRows())*0.2}, GroupBy: ln.GroupBy, Aggregates: ln.Aggregates, Input: input}

	case *Having:
		input := lowerNode(ln.Input)
		return &PHaving{costed: costed{Rows: ln.Cardinality(), Cost: input.EstimatedCost() + float64(input.EstimatedRows())*0.05}, Condition: ln.Condition, Input: input}

	case *Sort:
		input := lowerNode(ln.Input)
		cost := input.EstimatedCost() + float64(input.EstimatedRows())*logCost(input.EstimatedRows())
		if input.EstimatedRows() > sortSpillThreshold {
			return &ExternalSort{costed: costed{Rows: input.EstimatedRows(), Cost: cost * 3}, Expressions: ln.Expressions, Input: input}
		}
		return &InMemorySort{costed: costed{Rows: input.EstimatedRows(), Cost: cost}, Expressions: ln.Expressions, Input: input}

	case *Distinct:
		input := lowerNode(ln.Input)
		return &PDistinct{costed: costed{Rows: ln.Cardinality(), Cost: input.EstimatedCost() + float64(input.EstimatedRows())*0.1}, Input: input}

	case *Limit:
		input := lowerNode(ln.Input)
		return &PLimit{costed: costed{Rows: ln.Cardinality(), Cost: input.EstimatedCost()}, Count: ln.Count, Offset: ln.Offset, Input: input}

	case *ExistsSubquery:
		sub := lowerNode(ln.Subquery)
		// Early termination is safe whenever the executor can stop scanning
		// the subquery's driving operator after the first match, which
		// holds for any subplan without a blocking Sort/Aggregate at its
		// root.
		optimized := !hasBlockingRoot(sub)
		return &PExistsSubquery{costed: costed{Rows: ln.Cardinality(), Cost: sub.EstimatedCost()}, Subplan: sub, Optimized: optimized, Negated: ln.Negated}

	case *InSubquery:
		sub := lowerNode(ln.Subquery)
		return &PInSubquery{costed: costed{Rows: ln.Cardinality(), Cost: sub.EstimatedCost()}, Expr: ln.Expr, Subplan: sub, Negated: ln.Negated}

	case *ScalarSubquery:
		sub := lowerNode(ln.Subquery)
		return &PScalarSubquery{costed: costed{Rows: ln.Cardinality(), Cost: sub.EstimatedCost()}, Subplan: sub}

	case *Insert:
		var input PhysicalNode
		if ln.Input != nil {
			input = lowerNode(ln.Input)
		}
		return &PInsert{costed: costed{Rows: ln.Cardinality(), Cost: float64(len(ln.Patterns))}, Patterns: ln.Patterns, Input: input}

	case *Update:
		var input PhysicalNode
		if ln.Input != nil {
			input = lowerNode(ln.Input)
		}
		return &PUpdate{
			costed: costed{Rows: 1, Cost: 1}, TargetVariable: ln.TargetVariable, Properties: ln.Properties,
			AddLabels: ln.AddLabels, RemoveLabels: ln.RemoveLabels, RemoveProperty: ln.RemoveProperty, Input: input,
		}

	case *Delete:
		input := lowerNode(ln.Input)
		return &PDelete{costed: costed{Rows: 1, Cost: input.EstimatedCost()}, TargetVariables: ln.TargetVariables, Detach: ln.Detach, Input: input}

	case *SingleRow:
		return &PSingleRow{costed: costed{Rows: 1, Cost: 0}}

	default:
		return &PSingleRow{costed: costed{Rows: 1, Cost: 0}}
	}
}

func hasBlockingRoot(p PhysicalNode) bool {
	switch p.(type) {
	case *InMemorySort, *ExternalSort, *PAggregate, *PDistinct:
		return true
	default:
		return false
	}
}

func logCost(rows int) float64 {
	if rows <= 1 {
		return 1
	}
	cost := 1.0
	n := rows
	for n > 1 {
		n /= 2
		cost++
	}
	return cost
}
