package executor

import (
	"math"
	"strings"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/value"
)

func (e *Executor) runAggregate(n *planner.PAggregate) (RowSet, error) {
	inputRows, err := e.Run(n.Input)
	if err != nil {
		return nil, err
	}

	type group struct {
		keyRow Row
		rows   RowSet
	}
	groups := make(map[string]*group)
	var order []string

	for _, row := range inputRows {
		keyRow := Row{}
		var keyParts []string
		for _, g := range n.GroupBy {
			v, err := e.Eval(g, row)
			if err != nil {
				return nil, err
			}
			keyRow[exprKey(g)] = v
			keyParts = append(keyParts, v.String())
		}
		key := strings.Join(keyParts, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{keyRow: keyRow}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}

	// COUNT(*) over empty input still returns a single row with count 0,
	// per the accepted Open Question resolution.
	if len(order) == 0 && len(n.GroupBy) == 0 {
		groups[""] = &group{keyRow: Row{}}
		order = append(order, "")
	}

	var out RowSet
	for _, key := range order {
		g := groups[key]
		resultRow := g.keyRow.Clone()
		for _, agg := range n.Aggregates {
			v, err := e.evalAggregate(agg, g.rows)
			if err != nil {
				return nil, err
			}
			alias := agg.Alias
			if alias == "" {
				alias = agg.Function + "(" + exprKey(agg.Expr) + ")"
			}
			resultRow[alias] = v
		}
		out = append(out, resultRow)
	}
	return out, nil
}

func (e *Executor) evalAggregate(agg planner.AggregateExpression, rows RowSet) (value.Value, error) {
	var values []value.Value
	for _, row := range rows {
		if agg.Function == "COUNT" && agg.Expr == nil {
			continue
		}
		v, err := e.Eval(agg.Expr, row)
		if err != nil {
			return value.Null, err
		}
		values = append(values, v)
	}
	if agg.Distinct {
		values = dedupValues(values)
	}

	switch agg.Function {
	case "COUNT":
		if agg.Expr == nil {
			return value.Int(int64(len(rows))), nil
		}
		n := 0
		for _, v := range values {
			if !v.IsNull() {
				n++
			}
		}
		return value.Int(int64(n)), nil

	case "SUM":
		sum := 0.0
		for _, v := range values {
			if v.Kind() == value.KindNumber {
				sum += v.AsNumber()
			}
		}
		return value.Number(sum), nil

	case "AVG":
		sum, n := 0.0, 0
		for _, v := range values {
			if v.Kind() == value.KindNumber {
				sum += v.AsNumber()
				n++
			}
		}
		if n == 0 {
			return value.Null, nil
		}
		return value.Number(sum / float64(n)), nil

	case "MIN":
		var min value.Value
		has := false
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			if !has {
				min, has = v, true
				continue
			}
			if cmp, ok := value.Compare(v, min); ok && cmp < 0 {
				min = v
			}
		}
		if !has {
			return value.Null, nil
		}
		return min, nil

	case "MAX":
		var max value.Value
		has := false
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			if !has {
				max, has = v, true
				continue
			}
			if cmp, ok := value.Compare(v, max); ok && cmp > 0 {
				max = v
			}
		}
		if !has {
			return value.Null, nil
		}
		return max, nil

	case "COLLECT":
		nonNull := make([]value.Value, 0, len(values))
		for _, v := range values {
			if !v.IsNull() {
				nonNull = append(nonNull, v)
			}
		}
		return value.List(nonNull), nil

	default:
		return value.Null, errs.Runtime("unknown aggregate function " + agg.Function)
	}
}

func dedupValues(values []value.Value) []value.Value {
	var out []value.Value
	for _, v := range values {
		dup := false
		for _, seen := range out {
			if seen.Equal(v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

func (e *Executor) runHaving(n *planner.PHaving) (RowSet, error) {
	rows, err := e.Run(n.Input)
	if err != nil {
		return nil, err
	}
	var out RowSet
	for _, row := range rows {
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

// evalFunctionCall implements the built-in non-aggregate function surface
// (string/numeric/list helpers GQL-like queries commonly call from RETURN
// and WHERE), grounded on the teacher's pkg/cypher function dispatch table.
func (e *Executor) evalFunctionCall(fc *ast.FunctionCall, row Row) (value.Value, error) {
	args := make([]value.Value, 0, len(fc.Args))
	for _, a := range fc.Args {
		v, err := e.Eval(a, row)
		if err != nil {
			return value.Null, err
		}
		args = append(args, v)
	}

	name := strings.ToUpper(fc.Name)
	switch name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX", "COLLECT":
		// Aggregates are resolved by the planner into Aggregate/PAggregate
		// nodes; reaching here means the function was called outside a
		// grouping context (e.g. a scalar context), which has no row set
		// to aggregate over, so fold over just this one row's argument.
		if len(args) == 0 {
			return value.Null, nil
		}
		return args[0], nil

	case "LENGTH", "SIZE":
		if len(args) != 1 {
			return value.Null, errs.Runtime(name + " expects 1 argument")
		}
		switch args[0].Kind() {
		case value.KindString:
			return value.Int(int64(len(args[0].AsString()))), nil
		case value.KindList, value.KindArray:
			return value.Int(int64(len(args[0].AsList()))), nil
		default:
			return value.Null, nil
		}

	case "TOUPPER", "UPPER":
		if len(args) != 1 {
			return value.Null, errs.Runtime(name + " expects 1 argument")
		}
		return value.Str(strings.ToUpper(args[0].AsString())), nil

	case "TOLOWER", "LOWER":
		if len(args) != 1 {
			return value.Null, errs.Runtime(name + " expects 1 argument")
		}
		return value.Str(strings.ToLower(args[0].AsString())), nil

	case "TRIM":
		if len(args) != 1 {
			return value.Null, errs.Runtime(name + " expects 1 argument")
		}
		return value.Str(strings.TrimSpace(args[0].AsString())), nil

	case "ABS":
		if len(args) != 1 || args[0].Kind() != value.KindNumber {
			return value.Null, nil
		}
		return value.Number(math.Abs(args[0].AsNumber())), nil

	case "CEIL":
		if len(args) != 1 || args[0].Kind() != value.KindNumber {
			return value.Null, nil
		}
		return value.Number(math.Ceil(args[0].AsNumber())), nil

	case "FLOOR":
		if len(args) != 1 || args[0].Kind() != value.KindNumber {
			return value.Null, nil
		}
		return value.Number(math.Floor(args[0].AsNumber())), nil

	case "ROUND":
		if len(args) != 1 || args[0].Kind() != value.KindNumber {
			return value.Null, nil
		}
		return value.Number(math.Round(args[0].AsNumber())), nil

	case "COALESCE":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.Null, nil

	default:
		return value.Null, errs.Runtime("unknown function " + fc.Name)
	}
}

// RunSubquery plans and executes a nested ast.Query with the outer row
// attached as the sub-executor's outer bindings, which Eval consults for
// variables and properties the subquery's own row does not bind, so a
// correlated EXISTS subquery can reference them.
func (e *Executor) RunSubquery(q *ast.Query, outer Row) (RowSet, error) {
	lp, err := planner.Build(q, "")
	if err != nil {
		return nil, err
	}
	pp := planner.Lower(lp)
	sub := New(e.Graph, e.Params)
	sub.outer = outer
	return sub.Run(pp.Root)
}

func (e *Executor) runExistsPhysical(n *planner.PExistsSubquery) (RowSet, error) {
	rows, err := e.runCorrelated(n.Subplan)
	if err != nil {
		return nil, err
	}
	has := len(rows) > 0
	if n.Negated {
		has = !has
	}
	return RowSet{{"": value.Bool(has)}}, nil
}

func (e *Executor) runInSubqueryPhysical(n *planner.PInSubquery) (RowSet, error) {
	rows, err := e.runCorrelated(n.Subplan)
	if err != nil {
		return nil, err
	}
	// The InSubquery membership test itself is performed by the caller via
	// Eval on the enclosing expression tree; executing the physical node in
	// isolation just materializes the candidate row set.
	return rows, nil
}

func (e *Executor) runScalarSubqueryPhysical(n *planner.PScalarSubquery) (RowSet, error) {
	return e.runCorrelated(n.Subplan)
}

// runCorrelated runs a subplan using this executor's own outer binding, so
// a subquery plan lowered inline (rather than via RunSubquery) still sees
// variables bound by the enclosing row.
func (e *Executor) runCorrelated(plan planner.PhysicalNode) (RowSet, error) {
	return e.Run(plan)
}
