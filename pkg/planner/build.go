package planner

import (
	"fmt"

	"github.com/graphlite-db/graphlite/pkg/ast"
)

// Build turns a parsed ast.Query into a LogicalPlan, folding clauses onto
// an accumulating input node in pipeline order, mirroring how
// original_source's planner threads `input: Box<LogicalNode>` through each
// clause's corresponding LogicalNode variant.
func Build(q *ast.Query, queryText string) (*LogicalPlan, error) {
	root, err := buildPipeline(q.Clauses)
	if err != nil {
		return nil, err
	}

	for _, setOp := range q.SetOps {
		rightPlan, err := Build(setOp.Right, queryText)
		if err != nil {
			return nil, err
		}
		switch setOp.Kind {
		case ast.SetUnion:
			root = &Union{Inputs: []LogicalNode{root, rightPlan.Root}, All: false}
		case ast.SetUnionAll:
			root = &Union{Inputs: []LogicalNode{root, rightPlan.Root}, All: true}
		case ast.SetIntersect:
			root = &Intersect{Left: root, Right: rightPlan.Root}
		case ast.SetExcept:
			root = &Except{Left: root, Right: rightPlan.Root}
		}
	}

	if q.OuterLimit != nil {
		count, _ := evalConstIntExpr(q.OuterLimit.Count)
		root = &Limit{Count: count, Input: root}
	}

	return &LogicalPlan{Root: root, Query: queryText}, nil
}

func buildPipeline(clauses []ast.Clause) (LogicalNode, error) {
	var cur LogicalNode = &SingleRow{}
	haveSource := false

	for _, clause := range clauses {
		var err error
		switch c := clause.(type) {
		case *ast.MatchClause:
			cur, err = buildMatch(c, cur, haveSource)
			haveSource = true
		case *ast.WhereClause:
			cur = &Filter{Condition: c.Predicate, Input: cur}
		case *ast.WithClause:
			cur = buildWith(c, cur)
		case *ast.ReturnClause:
			cur = buildReturn(c, cur)
		case *ast.CreateClause:
			var priorInput LogicalNode
			if haveSource {
				priorInput = cur
			}
			cur = &Insert{Patterns: c.Patterns, Input: priorInput}
			haveSource = true
		case *ast.SetClause:
			cur = buildSet(c, cur)
		case *ast.RemoveClause:
			cur = buildRemove(c, cur)
		case *ast.DeleteClause:
			cur = buildDelete(c, cur)
		default:
			return nil, fmt.Errorf("planner: unsupported clause %T", clause)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func buildMatch(c *ast.MatchClause, input LogicalNode, haveSource bool) (LogicalNode, error) {
	var result LogicalNode
	for _, pat := range c.Patterns {
		patNode, err := buildPathPattern(pat)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = patNode
		} else {
			result = &Join{Kind: JoinInner, Left: result, Right: patNode}
		}
	}
	if result == nil {
		result = &SingleRow{}
	}
	if haveSource {
		joinKind := JoinInner
		if c.Optional {
			joinKind = JoinLeftOuter
		}
		result = &Join{Kind: joinKind, Left: input, Right: result}
	} else if c.Optional {
		// OPTIONAL MATCH with no prior source still behaves like a left
		// outer join against a single empty row.
		result = &Join{Kind: JoinLeftOuter, Left: &SingleRow{}, Right: result}
	}
	if c.Where != nil {
		result = &Filter{Condition: c.Where, Input: result}
	}
	return result, nil
}

func buildPathPattern(pat *ast.PathPattern) (LogicalNode, error) {
	if len(pat.Nodes) == 0 {
		return nil, fmt.Errorf("planner: empty path pattern")
	}
	if pat.Mode != ast.PathModeNone && pat.Mode != ast.PathModeWalk {
		return buildPathTraversal(pat)
	}
	var cur LogicalNode = &NodeScan{
		Variable:   pat.Nodes[0].Variable,
		Labels:     pat.Nodes[0].Labels,
		Properties: pat.Nodes[0].Properties,
	}
	for i, edge := range pat.Edges {
		toNode := pat.Nodes[i+1]
		cur = &Expand{
			FromVariable: pat.Nodes[i].Variable,
			EdgeVariable: edge.Variable,
			ToVariable:   toNode.Variable,
			EdgeLabels:   edge.Types,
			Direction:    edge.Direction,
			Properties:   edge.Properties,
			MinHops:      edge.MinHops,
			MaxHops:      edge.MaxHops,
			Input:        cur,
		}
		if len(toNode.Labels) > 0 || len(toNode.Properties) > 0 {
			cur = &Filter{Condition: labelFilterExpr(toNode), Input: cur}
		}
	}
	return cur, nil
}

// buildPathTraversal builds a single PathTraversal node for a path pattern
// carrying a TRAIL/SIMPLE/ACYCLIC quantifier, grounded on original_source's
// LogicalPlan::create_path_traversal: a NodeScan over the start node feeds
// an ordered list of PathElements, one per edge in the pattern.
func buildPathTraversal(pat *ast.PathPattern) (LogicalNode, error) {
	start := pat.Nodes[0]
	end := pat.Nodes[len(pat.Nodes)-1]

	elements := make([]PathElement, 0, len(pat.Edges))
	for i, edge := range pat.Edges {
		toNode := pat.Nodes[i+1]
		elements = append(elements, PathElement{
			EdgeVariable:   edge.Variable,
			NodeVariable:   toNode.Variable,
			NodeLabels:     toNode.Labels,
			NodeProperties: toNode.Properties,
			EdgeLabels:     edge.Types,
			Direction:      edge.Direction,
			MinHops:        edge.MinHops,
			MaxHops:        edge.MaxHops,
		})
	}

	return &PathTraversal{
		Mode:         pat.Mode,
		FromVariable: start.Variable,
		ToVariable:   end.Variable,
		Elements:     elements,
		Input: &NodeScan{
			Variable:   start.Variable,
			Labels:     start.Labels,
			Properties: start.Properties,
		},
	}, nil
}

// labelFilterExpr synthesizes a WHERE-shaped predicate node so label/property
// constraints on an expand's destination node are checked without inventing
// a new logical node kind for it.
func labelFilterExpr(n *ast.NodePattern) ast.Expression {
	return &nodeConstraintExpr{node: n}
}

// nodeConstraintExpr is a planner-internal expression marker the executor's
// filter operator special-cases to check a variable's labels/properties
// against a NodePattern, rather than evaluating a general boolean
// expression tree.
type nodeConstraintExpr struct {
	ast.Variable // embedded for ast.Expression's unexported marker method
	node         *ast.NodePattern
}

// NodeConstraint exposes the pattern for executor consumption.
func NodeConstraint(e ast.Expression) (*ast.NodePattern, bool) {
	if nc, ok := e.(*nodeConstraintExpr); ok {
		return nc.node, true
	}
	return nil, false
}

func buildWith(c *ast.WithClause, input LogicalNode) LogicalNode {
	cur := projectOrAggregate(c.Items, input)
	if c.Where != nil {
		cur = &Filter{Condition: c.Where, Input: cur}
	}
	if c.Distinct {
		cur = &Distinct{Input: cur}
	}
	cur = applyOrderSkipLimit(cur, c.OrderBy, c.Skip, c.Limit)
	return cur
}

func buildReturn(c *ast.ReturnClause, input LogicalNode) LogicalNode {
	cur := projectOrAggregate(c.Items, input)
	if proj, ok := cur.(*Project); ok && !c.Distinct && len(c.OrderBy) > 0 {
		// sort the pre-projection rows unless ORDER BY names a RETURN alias,
		// so ORDER BY can use properties the RETURN list does not project
		byAlias := false
		for _, o := range c.OrderBy {
			if v, isVar := o.Expr.(*ast.Variable); isVar {
				for _, item := range c.Items {
					byAlias = byAlias || item.Alias == v.Name
				}
			}
		}
		if !byAlias {
			proj.Input = applyOrderSkipLimit(proj.Input, c.OrderBy, nil, nil)
			return applyOrderSkipLimit(cur, nil, c.Skip, c.Limit)
		}
	}
	if c.Distinct {
		cur = &Distinct{Input: cur}
	}
	cur = applyOrderSkipLimit(cur, c.OrderBy, c.Skip, c.Limit)
	return cur
}

var aggregateFunctions = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true, "COLLECT": true,
}

// projectOrAggregate inspects the return/with items: if any item is an
// aggregate function call, the whole projection lowers to Aggregate with
// the non-aggregate items as GROUP BY keys (grouping on raw expression
// text, since GROUP BY aliasing of function calls is not honored per the
// accepted Open Question resolution); otherwise it's a plain Project.
func projectOrAggregate(items []*ast.ReturnItem, input LogicalNode) LogicalNode {
	hasAggregate := false
	for _, item := range items {
		if fc, ok := item.Expr.(*ast.FunctionCall); ok && aggregateFunctions[fc.Name] {
			hasAggregate = true
			break
		}
	}
	if !hasAggregate {
		exprs := make([]ProjectExpression, 0, len(items))
		for _, item := range items {
			exprs = append(exprs, ProjectExpression{Expr: item.Expr, Alias: item.Alias})
		}
		return &Project{Expressions: exprs, Input: input}
	}

	var groupBy []ast.Expression
	var aggs []AggregateExpression
	for _, item := range items {
		if fc, ok := item.Expr.(*ast.FunctionCall); ok && aggregateFunctions[fc.Name] {
			var arg ast.Expression
			if len(fc.Args) > 0 {
				arg = fc.Args[0]
			}
			aggs = append(aggs, AggregateExpression{
				Function: fc.Name, Expr: arg, Distinct: fc.Distinct, Alias: item.Alias,
			})
			continue
		}
		groupBy = append(groupBy, item.Expr)
	}
	return &Aggregate{GroupBy: groupBy, Aggregates: aggs, Input: input}
}

func applyOrderSkipLimit(input LogicalNode, order []*ast.OrderItem, skip ast.Expression, limit *ast.LimitClause) LogicalNode {
	cur := input
	if len(order) > 0 {
		exprs := make([]SortExpression, 0, len(order))
		for _, o := range order {
			exprs = append(exprs, SortExpression{Expr: o.Expr, Desc: o.Desc})
		}
		cur = &Sort{Expressions: exprs, Input: cur}
	}
	offset := 0
	if skip != nil {
		offset, _ = evalConstIntExpr(skip)
	}
	if limit != nil {
		count, _ := evalConstIntExpr(limit.Count)
		cur = &Limit{Count: count, Offset: offset, Input: cur}
	} else if offset > 0 {
		cur = &Limit{Count: 1 << 30, Offset: offset, Input: cur}
	}
	return cur
}

func buildSet(c *ast.SetClause, input LogicalNode) LogicalNode {
	cur := input
	for _, item := range c.Items {
		u := &Update{TargetVariable: item.Variable, Input: cur}
		switch item.Kind {
		case ast.SetProperty:
			u.Properties = map[string]ast.Expression{item.Property: item.Value}
		case ast.SetAllProperties:
			u.Properties = flattenMapLiteral(item.Value)
		case ast.SetAddLabels:
			u.AddLabels = item.Labels
		}
		cur = u
	}
	return cur
}

func flattenMapLiteral(e ast.Expression) map[string]ast.Expression {
	if lit, ok := e.(*ast.Literal); ok && lit.Kind == ast.LitMap {
		return lit.Pairs
	}
	return nil
}

func buildRemove(c *ast.RemoveClause, input LogicalNode) LogicalNode {
	cur := input
	for _, item := range c.Items {
		u := &Update{TargetVariable: item.Variable, Input: cur}
		if item.Property != "" {
			u.RemoveProperty = item.Property
		} else {
			u.RemoveLabels = item.Labels
		}
		cur = u
	}
	return cur
}

func buildDelete(c *ast.DeleteClause, input LogicalNode) LogicalNode {
	return &Delete{TargetVariables: c.Variables, Detach: c.Detach, Input: input}
}

// evalConstIntExpr evaluates a LIMIT/SKIP expression as an integer literal
// at plan time. Any other expression (a parameter, arithmetic) yields 100
// and false; callers use that 100 as the plan's row count or offset, and
// the executor applies it as is rather than evaluating the expression.
func evalConstIntExpr(e ast.Expression) (int, bool) {
	if lit, ok := e.(*ast.Literal); ok && lit.Kind == ast.LitNumber {
		var n int
		_, err := fmt.Sscanf(lit.Raw, "%d", &n)
		return n, err == nil
	}
	return 100, false
}
