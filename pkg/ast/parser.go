package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser is a recursive-descent parser over a token stream produced by
// Lexer, generalizing the teacher's stub clause dispatch
// (pkg/cypher/parser.go's Parse/tokenize shape) into a working grammar for
// the GQL-like subset SPEC_FULL.md names.
type Parser struct {
	toks []Token
	pos  int
}

func NewParser(src string) *Parser {
	return &Parser{toks: NewLexer(src).Tokens()}
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) atEnd() bool { return p.cur().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == TokKeyword && t.Text == kw
}

func (p *Parser) isPunct(s string) bool {
	t := p.cur()
	return t.Kind == TokPunct && t.Text == s
}

func (p *Parser) isOperator(s string) bool {
	t := p.cur()
	return t.Kind == TokOperator && t.Text == s
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return fmt.Errorf("expected keyword %s, got %q at pos %d", kw, p.cur().Text, p.cur().Pos)
	}
	p.advance()
	return nil
}

func (p *Parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return fmt.Errorf("expected %q, got %q at pos %d", s, p.cur().Text, p.cur().Pos)
	}
	p.advance()
	return nil
}

// Parse parses a single top-level statement.
func (p *Parser) Parse() (Statement, error) {
	switch {
	case p.isKeyword("CREATE"):
		return p.parseCreateOrDDLOrDCL()
	case p.isKeyword("DROP"):
		return p.parseDropStatement()
	case p.isKeyword("ALTER"):
		return p.parseAlterStatement()
	case p.isKeyword("GRANT"):
		return p.parseGrant()
	case p.isKeyword("REVOKE"):
		return p.parseRevoke()
	case p.isKeyword("BEGIN"):
		p.advance()
		return &TxnControlStatement{Kind: TxnBegin}, nil
	case p.isKeyword("START"):
		p.advance()
		if err := p.expectKeyword("TRANSACTION"); err != nil {
			return nil, err
		}
		return &TxnControlStatement{Kind: TxnBegin}, nil
	case p.isKeyword("COMMIT"):
		p.advance()
		return &TxnControlStatement{Kind: TxnCommit}, nil
	case p.isKeyword("ROLLBACK"):
		p.advance()
		return &TxnControlStatement{Kind: TxnRollback}, nil
	case p.isKeyword("SESSION"):
		return p.parseSessionSet()
	default:
		return p.parseQuery()
	}
}

// parseSessionSet parses `SESSION SET GRAPH <ref>` / `SESSION SET SCHEMA
// <ref>`, grounded on original_source's coordinator handle_session_result:
// CURRENT_GRAPH and a set-operation (UNION/...) expression are rejected
// outright for SESSION SET GRAPH, since neither names a resolvable catalog
// path.
func (p *Parser) parseSessionSet() (Statement, error) {
	p.advance() // SESSION
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}

	var kind SessionSetKind
	switch {
	case p.isKeyword("GRAPH"):
		p.advance()
		kind = SessionSetGraph
	case p.isKeyword("SCHEMA"):
		p.advance()
		kind = SessionSetSchema
	default:
		return nil, fmt.Errorf("expected GRAPH or SCHEMA after SESSION SET, got %q at pos %d", p.cur().Text, p.cur().Pos)
	}

	if kind == SessionSetGraph {
		if p.cur().Kind == TokIdent && strings.EqualFold(p.cur().Text, "CURRENT_GRAPH") {
			return nil, fmt.Errorf("CURRENT_GRAPH cannot be used in SESSION SET GRAPH")
		}
		if p.isKeyword("MATCH") || p.isPunct("(") {
			return nil, fmt.Errorf("UNION expressions cannot be used in SESSION SET GRAPH")
		}
	}

	segments, err := p.parseCatalogPath()
	if err != nil {
		return nil, err
	}
	return &SessionSetStatement{Kind: kind, PathSegments: segments}, nil
}

// parseCatalogPath parses a slash-separated catalog reference such as
// `/main/social` or the bare relative form `social`.
func (p *Parser) parseCatalogPath() ([]string, error) {
	if p.isOperator("/") {
		p.advance()
	}
	var segments []string
	for {
		if p.cur().Kind != TokIdent && p.cur().Kind != TokKeyword {
			return nil, fmt.Errorf("expected catalog path segment, got %q at pos %d", p.cur().Text, p.cur().Pos)
		}
		segments = append(segments, p.advance().Text)
		if p.isOperator("/") {
			p.advance()
			continue
		}
		break
	}
	return segments, nil
}

// parseQuery parses a clause pipeline (or a parenthesized one, per
// spec.md's normative `(MATCH ... RETURN ... LIMIT n) UNION ALL (...)
// LIMIT m` shape) plus any set-operation continuations and an outer
// trailing LIMIT.
func (p *Parser) parseQuery() (*Query, error) {
	q, err := p.parseQueryBranch()
	if err != nil {
		return nil, err
	}

	var lastBareRight *Query
	for p.isKeyword("UNION") || p.isKeyword("INTERSECT") || p.isKeyword("EXCEPT") {
		var kind SetOpKind
		switch {
		case p.isKeyword("UNION"):
			p.advance()
			kind = SetUnion
			if p.isKeyword("ALL") {
				p.advance()
				kind = SetUnionAll
			}
		case p.isKeyword("INTERSECT"):
			p.advance()
			kind = SetIntersect
		case p.isKeyword("EXCEPT"):
			p.advance()
			kind = SetExcept
		}
		// Each set-op operand is a single branch, not a full (further
		// set-op-composing) query: a trailing LIMIT after the last operand
		// belongs to the composed result, folded into q.OuterLimit below,
		// not to this operand alone.
		parenthesized := p.isPunct("(")
		right, err := p.parseQueryBranch()
		if err != nil {
			return nil, err
		}
		q.SetOps = append(q.SetOps, SetOperation{Kind: kind, Right: right})
		lastBareRight = nil
		if !parenthesized {
			lastBareRight = right
		}
	}

	// An unparenthesized last operand's RETURN has already consumed the
	// trailing LIMIT; lift it out to the composed result.
	if lastBareRight != nil && len(lastBareRight.Clauses) > 0 {
		if ret, ok := lastBareRight.Clauses[len(lastBareRight.Clauses)-1].(*ReturnClause); ok && ret.Limit != nil {
			q.OuterLimit = ret.Limit
			ret.Limit = nil
		}
	}

	if p.isKeyword("LIMIT") {
		lim, err := p.parseLimit(false)
		if err != nil {
			return nil, err
		}
		q.OuterLimit = lim
	}

	return q, nil
}

// parseQueryBranch parses one operand of a (possible) set operation: a
// parenthesized sub-query `(MATCH ... RETURN ... LIMIT n)` — recursing
// into parseQuery so a parenthesized branch can itself contain nested set
// operations — or a bare clause pipeline.
func (p *Parser) parseQueryBranch() (*Query, error) {
	if p.isPunct("(") {
		p.advance()
		inner, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	q := &Query{}
	for {
		if p.atEnd() {
			break
		}
		clause, stop, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
		q.Clauses = append(q.Clauses, clause)
		if _, isReturn := clause.(*ReturnClause); isReturn {
			// RETURN is terminal for this branch; a following set op or
			// outer LIMIT may still apply.
			break
		}
	}
	return q, nil
}

func (p *Parser) parseClause() (Clause, bool, error) {
	switch {
	case p.isKeyword("MATCH"):
		return p.parseMatch(false)
	case p.isKeyword("OPTIONAL"):
		p.advance()
		if err := p.expectKeyword("MATCH"); err != nil {
			return nil, false, err
		}
		return p.parseMatchBody(true)
	case p.isKeyword("WHERE"):
		return p.parseWhere()
	case p.isKeyword("WITH"):
		return p.parseWith()
	case p.isKeyword("RETURN"):
		return p.parseReturn()
	case p.isKeyword("CREATE"):
		return p.parseCreateClause()
	case p.isKeyword("SET"):
		return p.parseSet()
	case p.isKeyword("REMOVE"):
		return p.parseRemove()
	case p.isKeyword("DELETE"):
		return p.parseDelete(false)
	case p.isKeyword("DETACH"):
		p.advance()
		if err := p.expectKeyword("DELETE"); err != nil {
			return nil, false, err
		}
		return p.parseDelete(true)
	default:
		return nil, true, nil
	}
}

func (p *Parser) parseMatch(optional bool) (Clause, bool, error) {
	p.advance() // MATCH
	return p.parseMatchBody(optional)
}

func (p *Parser) parseMatchBody(optional bool) (Clause, bool, error) {
	mc := &MatchClause{Optional: optional}
	for {
		pat, err := p.parsePathPattern()
		if err != nil {
			return nil, false, err
		}
		mc.Patterns = append(mc.Patterns, pat)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if p.isKeyword("WHERE") {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, false, err
		}
		mc.Where = expr
	}
	return mc, false, nil
}

func (p *Parser) parsePathPattern() (*PathPattern, error) {
	pp := &PathPattern{}

	switch {
	case p.isKeyword("WALK"):
		p.advance()
		pp.Mode = PathModeWalk
	case p.isKeyword("TRAIL"):
		p.advance()
		pp.Mode = PathModeTrail
	case p.isKeyword("SIMPLE"):
		p.advance()
		pp.Mode = PathModeSimple
	case p.isKeyword("ACYCLIC"):
		p.advance()
		pp.Mode = PathModeAcyclic
	}

	// variable = (pattern)
	if p.cur().Kind == TokIdent {
		save := p.pos
		name := p.advance().Text
		if p.isOperator("=") {
			p.advance()
			pp.Variable = name
		} else {
			p.pos = save
		}
	}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pp.Nodes = append(pp.Nodes, node)

	for p.isOperator("-") || p.isOperator("<-") {
		dir := EdgeOutgoing
		if p.isOperator("<-") {
			dir = EdgeIncoming
			p.advance()
		} else {
			p.advance() // consume '-'
		}
		edge := &EdgePattern{Direction: dir}
		if p.isPunct("[") {
			p.advance()
			if p.cur().Kind == TokIdent {
				edge.Variable = p.advance().Text
			}
			if p.isPunct(":") {
				p.advance()
				edge.Types = append(edge.Types, p.advance().Text)
				for p.isOperator("|") {
					p.advance()
					edge.Types = append(edge.Types, p.advance().Text)
				}
			}
			if p.isPunct("*") {
				p.advance()
				if err := p.parseVariableLength(edge); err != nil {
					return nil, err
				}
			}
			if p.isPunct("{") {
				props, err := p.parsePropertyMap()
				if err != nil {
					return nil, err
				}
				edge.Properties = props
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
		}
		if p.isOperator("->") {
			// the lexer folds a closing "->" into one token
			p.advance()
		} else {
			if p.isOperator("-") {
				p.advance()
			}
			if p.isOperator(">") {
				p.advance()
			} else if dir == EdgeOutgoing {
				edge.Direction = EdgeEither
			}
		}
		pp.Edges = append(pp.Edges, edge)

		next, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		pp.Nodes = append(pp.Nodes, next)
	}

	return pp, nil
}

func (p *Parser) parseVariableLength(edge *EdgePattern) error {
	if p.cur().Kind == TokNumber {
		n, _ := strconv.Atoi(p.advance().Text)
		edge.MinHops = &n
		edge.MaxHops = &n
	}
	if p.isPunct(".") {
		p.advance()
		if p.isPunct(".") {
			p.advance()
		}
		if p.cur().Kind == TokNumber {
			n, _ := strconv.Atoi(p.advance().Text)
			edge.MaxHops = &n
		}
	}
	return nil
}

func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	np := &NodePattern{}
	if p.cur().Kind == TokIdent {
		np.Variable = p.advance().Text
	}
	for p.isPunct(":") {
		p.advance()
		np.Labels = append(np.Labels, p.advance().Text)
	}
	if p.isPunct("{") {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		np.Properties = props
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return np, nil
}

func (p *Parser) parsePropertyMap() (map[string]Expression, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	m := make(map[string]Expression)
	for !p.isPunct("}") {
		key := p.advance().Text
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		m[key] = val
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Parser) parseWhere() (Clause, bool, error) {
	p.advance()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, false, err
	}
	return &WhereClause{Predicate: expr}, false, nil
}

func (p *Parser) parseWith() (Clause, bool, error) {
	p.advance()
	wc := &WithClause{}
	if p.isKeyword("DISTINCT") {
		p.advance()
		wc.Distinct = true
	}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, false, err
	}
	wc.Items = items
	if p.isKeyword("WHERE") {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, false, err
		}
		wc.Where = expr
	}
	if err := p.parseOrderSkipLimit(&wc.OrderBy, &wc.Skip, &wc.Limit); err != nil {
		return nil, false, err
	}
	return wc, false, nil
}

func (p *Parser) parseReturn() (Clause, bool, error) {
	p.advance()
	rc := &ReturnClause{}
	if p.isKeyword("DISTINCT") {
		p.advance()
		rc.Distinct = true
	}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, false, err
	}
	rc.Items = items
	if err := p.parseOrderSkipLimit(&rc.OrderBy, &rc.Skip, &rc.Limit); err != nil {
		return nil, false, err
	}
	return rc, false, nil
}

func (p *Parser) parseReturnItems() ([]*ReturnItem, error) {
	var items []*ReturnItem
	for {
		if p.isPunct("*") {
			p.advance()
			items = append(items, &ReturnItem{Expr: &Variable{Name: "*"}})
		} else {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			item := &ReturnItem{Expr: expr}
			if p.isKeyword("AS") {
				p.advance()
				item.Alias = p.advance().Text
			}
			items = append(items, item)
		}
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseOrderSkipLimit(order *[]*OrderItem, skip *Expression, limit **LimitClause) error {
	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for {
			expr, err := p.parseExpression()
			if err != nil {
				return err
			}
			item := &OrderItem{Expr: expr}
			if p.isKeyword("DESC") {
				p.advance()
				item.Desc = true
			} else if p.isKeyword("ASC") {
				p.advance()
			}
			*order = append(*order, item)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if p.isKeyword("SKIP") {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return err
		}
		*skip = expr
	}
	if p.isKeyword("LIMIT") {
		lim, err := p.parseLimit(true)
		if err != nil {
			return err
		}
		*limit = lim
	}
	return nil
}

// parseLimit parses LIMIT <expr>, recording Parenthesized when the count
// expression is wrapped in parens. The branchLocal argument is not used;
// parseQuery decides whether a LIMIT becomes Query.OuterLimit.
func (p *Parser) parseLimit(branchLocal bool) (*LimitClause, error) {
	p.advance() // LIMIT
	parenthesized := false
	if p.isPunct("(") {
		parenthesized = true
		p.advance()
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if parenthesized {
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	_ = branchLocal
	return &LimitClause{Count: expr, Parenthesized: parenthesized}, nil
}

func (p *Parser) parseCreateClause() (Clause, bool, error) {
	p.advance()
	cc := &CreateClause{}
	for {
		pat, err := p.parsePathPattern()
		if err != nil {
			return nil, false, err
		}
		cc.Patterns = append(cc.Patterns, pat)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return cc, false, nil
}

func (p *Parser) parseSet() (Clause, bool, error) {
	p.advance()
	sc := &SetClause{}
	for {
		item, err := p.parseSetItem()
		if err != nil {
			return nil, false, err
		}
		sc.Items = append(sc.Items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return sc, false, nil
}

func (p *Parser) parseSetItem() (*SetItem, error) {
	variable := p.advance().Text
	switch {
	case p.isPunct("."):
		p.advance()
		prop := p.advance().Text
		if err := p.expectOperatorEquals(); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &SetItem{Kind: SetProperty, Variable: variable, Property: prop, Value: val}, nil
	case p.isOperator("="):
		p.advance()
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &SetItem{Kind: SetAllProperties, Variable: variable, Value: val}, nil
	case p.isPunct(":"):
		var labels []string
		for p.isPunct(":") {
			p.advance()
			labels = append(labels, p.advance().Text)
		}
		return &SetItem{Kind: SetAddLabels, Variable: variable, Labels: labels}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q in SET item at pos %d", p.cur().Text, p.cur().Pos)
	}
}

func (p *Parser) expectOperatorEquals() error {
	if !p.isOperator("=") {
		return fmt.Errorf("expected '=' at pos %d, got %q", p.cur().Pos, p.cur().Text)
	}
	p.advance()
	return nil
}

func (p *Parser) parseRemove() (Clause, bool, error) {
	p.advance()
	rc := &RemoveClause{}
	for {
		variable := p.advance().Text
		item := &RemoveItem{Variable: variable}
		if p.isPunct(".") {
			p.advance()
			item.Property = p.advance().Text
		} else {
			for p.isPunct(":") {
				p.advance()
				item.Labels = append(item.Labels, p.advance().Text)
			}
		}
		rc.Items = append(rc.Items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return rc, false, nil
}

func (p *Parser) parseDelete(detach bool) (Clause, bool, error) {
	p.advance()
	dc := &DeleteClause{Detach: detach}
	for {
		dc.Variables = append(dc.Variables, p.advance().Text)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return dc, false, nil
}

// --- Expression parsing (precedence climbing) ---

func (p *Parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expression, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseXor() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("XOR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: "XOR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expression, error) {
	if p.isKeyword("NOT") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseComparison() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur().Kind == TokOperator && comparisonOps[p.cur().Text] {
			op := p.advance().Text
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &BinaryOp{Op: op, Left: left, Right: right}
			continue
		}
		if p.isKeyword("IN") {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &BinaryOp{Op: "IN", Left: left, Right: right}
			continue
		}
		if p.isKeyword("NOT") {
			save := p.pos
			p.advance()
			if p.isKeyword("IN") {
				p.advance()
				right, err := p.parseAdditive()
				if err != nil {
					return nil, err
				}
				left = &UnaryOp{Op: "NOT", Operand: &BinaryOp{Op: "IN", Left: left, Right: right}}
				continue
			}
			p.pos = save
		}
		if p.isKeyword("IS") {
			p.advance()
			negated := false
			if p.isKeyword("NOT") {
				p.advance()
				negated = true
			}
			if err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			op := "IS NULL"
			if negated {
				op = "IS NOT NULL"
			}
			left = &BinaryOp{Op: op, Left: left, Right: &Literal{Kind: LitNull}}
			continue
		}
		break
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOperator("+") || p.isOperator("-") {
		op := p.advance().Text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isOperator("/") || p.isOperator("%") {
		op := p.advance().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	if p.isOperator("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isPunct(".") {
		p.advance()
		prop := p.advance().Text
		expr = &PropertyAccess{Target: expr, Property: prop}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (Expression, error) {
	switch {
	case p.isPunct("("):
		p.advance()
		// parenthesized expression
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case p.isPunct("["):
		p.advance()
		lst := &ListExpression{}
		for !p.isPunct("]") {
			item, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			lst.Items = append(lst.Items, item)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		return lst, nil

	case p.cur().Kind == TokParam:
		name := p.advance().Text
		return &Parameter{Name: name}, nil

	case p.cur().Kind == TokNumber:
		raw := p.advance().Text
		return &Literal{Kind: LitNumber, Raw: raw}, nil

	case p.cur().Kind == TokString:
		raw := p.advance().Text
		return &Literal{Kind: LitString, Raw: raw}, nil

	case p.isKeyword("TRUE"):
		p.advance()
		return &Literal{Kind: LitBoolean, Raw: "true"}, nil

	case p.isKeyword("FALSE"):
		p.advance()
		return &Literal{Kind: LitBoolean, Raw: "false"}, nil

	case p.isKeyword("NULL"):
		p.advance()
		return &Literal{Kind: LitNull}, nil

	case p.isKeyword("CASE"):
		return p.parseCase()

	case p.isKeyword("EXISTS"):
		return p.parseExists(false)

	case p.isKeyword("COUNT"), p.isKeyword("SUM"), p.isKeyword("AVG"),
		p.isKeyword("MIN"), p.isKeyword("MAX"), p.isKeyword("COLLECT"):
		return p.parseFunctionCall()

	case p.cur().Kind == TokIdent:
		name := p.advance().Text
		if p.isPunct("(") {
			return p.parseFunctionCallNamed(name)
		}
		return &Variable{Name: name}, nil

	default:
		return nil, fmt.Errorf("unexpected token %q at pos %d", p.cur().Text, p.cur().Pos)
	}
}

func (p *Parser) parseFunctionCall() (Expression, error) {
	name := p.advance().Text
	return p.parseFunctionCallNamed(name)
}

func (p *Parser) parseFunctionCallNamed(name string) (Expression, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	fc := &FunctionCall{Name: strings.ToUpper(name)}
	if p.isPunct("*") {
		p.advance()
		fc.Star = true
	} else {
		if p.isKeyword("DISTINCT") {
			p.advance()
			fc.Distinct = true
		}
		for !p.isPunct(")") {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, arg)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return fc, nil
}

func (p *Parser) parseCase() (Expression, error) {
	p.advance() // CASE
	ce := &CaseExpression{}
	if !p.isKeyword("WHEN") {
		operand, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ce.Operand = operand
	}
	for p.isKeyword("WHEN") {
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		result, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, &WhenClause{Condition: cond, Result: result})
	}
	if p.isKeyword("ELSE") {
		p.advance()
		elseExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ce.Else = elseExpr
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return ce, nil
}

func (p *Parser) parseExists(negated bool) (Expression, error) {
	p.advance() // EXISTS
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &ExistsExpression{Negated: negated, Query: q}, nil
}

// --- DDL / DCL ---

func (p *Parser) parseCreateOrDDLOrDCL() (Statement, error) {
	save := p.pos
	p.advance() // CREATE
	switch {
	case p.isKeyword("SCHEMA"):
		return p.parseCreateSchema()
	case p.isKeyword("GRAPH"):
		return p.parseCreateGraph()
	case p.isKeyword("USER"):
		return p.parseCreateUser()
	case p.isKeyword("ROLE"):
		return p.parseCreateRole()
	default:
		// Not DDL/DCL: rewind and treat as a CREATE clause query (INSERT-style).
		p.pos = save
		return p.parseQuery()
	}
}

func (p *Parser) parseIfNotExists() bool {
	if p.isKeyword("IF") {
		save := p.pos
		p.advance()
		if p.isKeyword("NOT") {
			p.advance()
			if err := p.expectKeyword("EXISTS"); err == nil {
				return true
			}
		}
		p.pos = save
	}
	return false
}

func (p *Parser) parseIfExists() bool {
	if p.isKeyword("IF") {
		save := p.pos
		p.advance()
		if p.isKeyword("EXISTS") {
			p.advance()
			return true
		}
		p.pos = save
	}
	return false
}

func (p *Parser) parseCreateSchema() (Statement, error) {
	p.advance() // SCHEMA
	ine := p.parseIfNotExists()
	name := p.advance().Text
	return &DDLStatement{Kind: DDLCreateSchema, Name: name, IfNotExists: ine}, nil
}

func (p *Parser) parseCreateGraph() (Statement, error) {
	p.advance() // GRAPH
	if p.isKeyword("TYPE") {
		p.advance()
		ine := p.parseIfNotExists()
		name := p.advance().Text
		return &DDLStatement{Kind: DDLCreateGraphType, Name: name, IfNotExists: ine}, nil
	}
	ine := p.parseIfNotExists()
	name := p.advance().Text
	return &DDLStatement{Kind: DDLCreateGraph, Name: name, IfNotExists: ine}, nil
}

func (p *Parser) parseCreateUser() (Statement, error) {
	p.advance() // USER
	name := p.advance().Text
	params := make(map[string]Expression)
	if p.isKeyword("VALUES") || p.isPunct("{") {
		if p.isKeyword("VALUES") {
			p.advance()
		}
		m, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		params = m
	}
	return &DCLStatement{Kind: DCLCreateUser, Name: name, Params: params}, nil
}

func (p *Parser) parseCreateRole() (Statement, error) {
	p.advance() // ROLE
	name := p.advance().Text
	return &DCLStatement{Kind: DCLCreateRole, Name: name}, nil
}

func (p *Parser) parseDropStatement() (Statement, error) {
	p.advance() // DROP
	switch {
	case p.isKeyword("SCHEMA"):
		p.advance()
		ie := p.parseIfExists()
		name := p.advance().Text
		cascade := p.parseCascade()
		return &DDLStatement{Kind: DDLDropSchema, Name: name, IfExists: ie, Cascade: cascade}, nil
	case p.isKeyword("GRAPH"):
		p.advance()
		if p.isKeyword("TYPE") {
			p.advance()
			ie := p.parseIfExists()
			name := p.advance().Text
			cascade := p.parseCascade()
			return &DDLStatement{Kind: DDLDropGraphType, Name: name, IfExists: ie, Cascade: cascade}, nil
		}
		ie := p.parseIfExists()
		name := p.advance().Text
		cascade := p.parseCascade()
		return &DDLStatement{Kind: DDLDropGraph, Name: name, IfExists: ie, Cascade: cascade}, nil
	case p.isKeyword("USER"):
		p.advance()
		name := p.advance().Text
		return &DCLStatement{Kind: DCLDropUser, Name: name}, nil
	case p.isKeyword("ROLE"):
		p.advance()
		name := p.advance().Text
		cascade := p.parseCascade()
		return &DCLStatement{Kind: DCLDropRole, Name: name, Cascade: cascade}, nil
	default:
		return nil, fmt.Errorf("unsupported DROP target %q at pos %d", p.cur().Text, p.cur().Pos)
	}
}

func (p *Parser) parseCascade() bool {
	if p.isKeyword("CASCADE") {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) parseAlterStatement() (Statement, error) {
	p.advance() // ALTER
	if err := p.expectKeyword("SCHEMA"); err != nil {
		return nil, err
	}
	name := p.advance().Text
	params := make(map[string]Expression)
	if p.isKeyword("SET") {
		p.advance()
		for {
			key := p.advance().Text
			if err := p.expectOperatorEquals(); err != nil {
				return nil, err
			}
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			params[key] = val
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return &DDLStatement{Kind: DDLAlterSchema, Name: name, Params: params}, nil
}

func (p *Parser) parseGrant() (Statement, error) {
	p.advance() // GRANT
	if err := p.expectKeyword("ROLE"); err != nil {
		return nil, err
	}
	role := p.advance().Text
	if err := p.expectKeyword("TO"); err != nil {
		return nil, err
	}
	user := p.advance().Text
	return &DCLStatement{Kind: DCLGrantRole, RoleName: role, ToUser: user}, nil
}

func (p *Parser) parseRevoke() (Statement, error) {
	p.advance() // REVOKE
	if err := p.expectKeyword("ROLE"); err != nil {
		return nil, err
	}
	role := p.advance().Text
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	user := p.advance().Text
	return &DCLStatement{Kind: DCLRevokeRole, RoleName: role, ToUser: user}, nil
}
