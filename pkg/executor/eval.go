package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/value"
)

// Eval evaluates a scalar expression against a row binding and the
// executor's bound query parameters.
func (e *Executor) Eval(expr ast.Expression, row Row) (value.Value, error) {
	switch ex := expr.(type) {
	case *ast.Literal:
		return evalLiteral(ex)

	case *ast.Parameter:
		v, ok := e.Params[ex.Name]
		if !ok {
			return value.Null, nil
		}
		return v, nil

	case *ast.Variable:
		if v, ok := row[ex.Name]; ok {
			return v, nil
		}
		if v, ok := e.outer[ex.Name]; ok {
			return v, nil
		}
		return value.Null, nil

	case *ast.PropertyAccess:
		return e.evalPropertyAccess(ex, row)

	case *ast.UnaryOp:
		return e.evalUnary(ex, row)

	case *ast.BinaryOp:
		return e.evalBinary(ex, row)

	case *ast.FunctionCall:
		return e.evalFunctionCall(ex, row)

	case *ast.CaseExpression:
		return e.evalCase(ex, row)

	case *ast.ExistsExpression:
		return e.evalExists(ex, row)

	case *ast.ListExpression:
		items := make([]value.Value, 0, len(ex.Items))
		for _, it := range ex.Items {
			v, err := e.Eval(it, row)
			if err != nil {
				return value.Null, err
			}
			items = append(items, v)
		}
		return value.List(items), nil

	default:
		return value.Null, errs.Runtime(fmt.Sprintf("unsupported expression type %T", expr))
	}
}

func evalLiteral(lit *ast.Literal) (value.Value, error) {
	switch lit.Kind {
	case ast.LitNull:
		return value.Null, nil
	case ast.LitBoolean:
		return value.Bool(lit.Raw == "true"), nil
	case ast.LitNumber:
		n, err := strconv.ParseFloat(lit.Raw, 64)
		if err != nil {
			return value.Null, errs.New(errs.KindRuntime, "invalid number literal "+lit.Raw)
		}
		return value.Number(n), nil
	case ast.LitString:
		return value.Str(lit.Raw), nil
	default:
		return value.Null, nil
	}
}

func (e *Executor) evalPropertyAccess(ex *ast.PropertyAccess, row Row) (value.Value, error) {
	target, err := e.Eval(ex.Target, row)
	if err != nil {
		return value.Null, err
	}
	_ = target
	// Node/edge-bound variables store their properties under
	// "<var>.<prop>" synthetic row keys, populated by the scan/expand
	// operators; this avoids needing a separate entity-table alongside Row.
	if vr, ok := ex.Target.(*ast.Variable); ok {
		if v, ok := row[vr.Name+"."+ex.Property]; ok {
			return v, nil
		}
		if v, ok := e.outer[vr.Name+"."+ex.Property]; ok {
			return v, nil
		}
	}
	return value.Null, nil
}

func (e *Executor) evalUnary(ex *ast.UnaryOp, row Row) (value.Value, error) {
	v, err := e.Eval(ex.Operand, row)
	if err != nil {
		return value.Null, err
	}
	switch ex.Op {
	case "NOT":
		if v.IsNull() {
			return value.Null, nil
		}
		return value.Bool(!v.Truthy()), nil
	case "-":
		if v.Kind() != value.KindNumber {
			return value.Null, nil
		}
		return value.Number(-v.AsNumber()), nil
	default:
		return value.Null, errs.Runtime("unknown unary operator " + ex.Op)
	}
}

func (e *Executor) evalBinary(ex *ast.BinaryOp, row Row) (value.Value, error) {
	switch ex.Op {
	case "AND":
		l, err := e.Eval(ex.Left, row)
		if err != nil {
			return value.Null, err
		}
		if !l.Truthy() {
			return value.Bool(false), nil
		}
		r, err := e.Eval(ex.Right, row)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(r.Truthy()), nil

	case "OR":
		l, err := e.Eval(ex.Left, row)
		if err != nil {
			return value.Null, err
		}
		if l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := e.Eval(ex.Right, row)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(r.Truthy()), nil

	case "XOR":
		l, err := e.Eval(ex.Left, row)
		if err != nil {
			return value.Null, err
		}
		r, err := e.Eval(ex.Right, row)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(l.Truthy() != r.Truthy()), nil

	case "IS NULL":
		l, err := e.Eval(ex.Left, row)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(l.IsNull()), nil

	case "IS NOT NULL":
		l, err := e.Eval(ex.Left, row)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(!l.IsNull()), nil

	case "IN":
		return e.evalIn(ex, row)
	}

	l, err := e.Eval(ex.Left, row)
	if err != nil {
		return value.Null, err
	}
	r, err := e.Eval(ex.Right, row)
	if err != nil {
		return value.Null, err
	}
	if l.IsNull() || r.IsNull() {
		return value.Null, nil
	}

	switch ex.Op {
	case "=":
		return value.Bool(l.Equal(r)), nil
	case "<>":
		return value.Bool(!l.Equal(r)), nil
	case "<", "<=", ">", ">=":
		cmp, ok := value.Compare(l, r)
		if !ok {
			return value.Null, nil
		}
		switch ex.Op {
		case "<":
			return value.Bool(cmp < 0), nil
		case "<=":
			return value.Bool(cmp <= 0), nil
		case ">":
			return value.Bool(cmp > 0), nil
		case ">=":
			return value.Bool(cmp >= 0), nil
		}
	case "+":
		if l.Kind() == value.KindString || r.Kind() == value.KindString {
			return value.Str(l.String() + r.String()), nil
		}
		return value.Number(l.AsNumber() + r.AsNumber()), nil
	case "-":
		return value.Number(l.AsNumber() - r.AsNumber()), nil
	case "*":
		return value.Number(l.AsNumber() * r.AsNumber()), nil
	case "/":
		if r.AsNumber() == 0 {
			return value.Null, errs.New(errs.KindRuntime, "division by zero")
		}
		return value.Number(l.AsNumber() / r.AsNumber()), nil
	case "%":
		if r.AsNumber() == 0 {
			return value.Null, errs.New(errs.KindRuntime, "modulo by zero")
		}
		return value.Number(float64(int64(l.AsNumber()) % int64(r.AsNumber()))), nil
	}
	return value.Null, errs.Runtime("unknown binary operator " + ex.Op)
}

func (e *Executor) evalIn(ex *ast.BinaryOp, row Row) (value.Value, error) {
	l, err := e.Eval(ex.Left, row)
	if err != nil {
		return value.Null, err
	}
	r, err := e.Eval(ex.Right, row)
	if err != nil {
		return value.Null, err
	}
	if r.Kind() != value.KindList && r.Kind() != value.KindArray {
		return value.Bool(false), nil
	}
	for _, item := range r.AsList() {
		if l.Equal(item) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func (e *Executor) evalCase(ex *ast.CaseExpression, row Row) (value.Value, error) {
	var operand value.Value
	var hasOperand bool
	if ex.Operand != nil {
		v, err := e.Eval(ex.Operand, row)
		if err != nil {
			return value.Null, err
		}
		operand = v
		hasOperand = true
	}
	for _, when := range ex.Whens {
		cond, err := e.Eval(when.Condition, row)
		if err != nil {
			return value.Null, err
		}
		matched := false
		if hasOperand {
			matched = operand.Equal(cond)
		} else {
			matched = cond.Truthy()
		}
		if matched {
			return e.Eval(when.Result, row)
		}
	}
	if ex.Else != nil {
		return e.Eval(ex.Else, row)
	}
	return value.Null, nil
}

func (e *Executor) evalExists(ex *ast.ExistsExpression, row Row) (value.Value, error) {
	sub, err := e.RunSubquery(ex.Query, row)
	if err != nil {
		return value.Null, err
	}
	has := len(sub) > 0
	if ex.Negated {
		has = !has
	}
	return value.Bool(has), nil
}

// exprKey renders an expression as stable text, used as the output column
// name of an unaliased projection item, of a GROUP BY key (whose RETURN
// alias is not applied), and inside an unaliased aggregate's default
// name. Grouping itself compares evaluated values, not this text.
func exprKey(e ast.Expression) string {
	var b strings.Builder
	writeExprKey(&b, e)
	return b.String()
}

func writeExprKey(b *strings.Builder, e ast.Expression) {
	switch ex := e.(type) {
	case *ast.Variable:
		b.WriteString(ex.Name)
	case *ast.PropertyAccess:
		writeExprKey(b, ex.Target)
		b.WriteByte('.')
		b.WriteString(ex.Property)
	case *ast.Literal:
		b.WriteString(ex.Raw)
	case *ast.FunctionCall:
		b.WriteString(ex.Name)
		b.WriteByte('(')
		for i, a := range ex.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeExprKey(b, a)
		}
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "%p", e)
	}
}
