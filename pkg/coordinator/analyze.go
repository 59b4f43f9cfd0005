package coordinator

import (
	"fmt"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/planner"
)

// QueryInfo is the metadata ValidateQuery's parse-without-execute sibling,
// AnalyzeQuery, reports, grounded on
// original_source/graphlite/src/coordinator/query_coordinator.rs's
// QueryInfo/analyze_query.
type QueryInfo struct {
	StatementKind string
	ClauseCount   int
	IsWrite       bool
}

// ValidateQuery parses queryText and reports any syntax error, without
// planning or executing it.
func (c *Coordinator) ValidateQuery(queryText string) error {
	_, err := ast.NewParser(queryText).Parse()
	if err != nil {
		return fmt.Errorf("coordinator: parse error: %w", err)
	}
	return nil
}

// IsValidQuery is ValidateQuery's boolean convenience form.
func (c *Coordinator) IsValidQuery(queryText string) bool {
	return c.ValidateQuery(queryText) == nil
}

// AnalyzeQuery parses queryText and reports its statement kind without
// running it, useful for tooling that wants to branch on "is this a write"
// before deciding whether to execute.
func (c *Coordinator) AnalyzeQuery(queryText string) (*QueryInfo, error) {
	stmt, err := ast.NewParser(queryText).Parse()
	if err != nil {
		return nil, fmt.Errorf("coordinator: parse error: %w", err)
	}

	switch s := stmt.(type) {
	case *ast.TxnControlStatement:
		return &QueryInfo{StatementKind: "TransactionControl"}, nil
	case *ast.DDLStatement:
		return &QueryInfo{StatementKind: "DDL", IsWrite: true}, nil
	case *ast.DCLStatement:
		return &QueryInfo{StatementKind: "DCL", IsWrite: true}, nil
	case *ast.Query:
		info := &QueryInfo{StatementKind: "Query", ClauseCount: len(s.Clauses)}
		for _, cl := range s.Clauses {
			switch cl.(type) {
			case *ast.CreateClause, *ast.SetClause, *ast.RemoveClause, *ast.DeleteClause:
				info.IsWrite = true
			}
		}
		return info, nil
	default:
		return nil, fmt.Errorf("coordinator: unsupported statement type %T", stmt)
	}
}

// ExplainQuery parses, plans, and lowers queryText, returning a formatted
// plan trace. Only MATCH/RETURN-shaped queries can be explained; DDL/DCL/
// transaction control statements carry no plan.
func (c *Coordinator) ExplainQuery(queryText string) (string, error) {
	stmt, err := ast.NewParser(queryText).Parse()
	if err != nil {
		return "", fmt.Errorf("coordinator: parse error: %w", err)
	}

	q, ok := stmt.(*ast.Query)
	if !ok {
		return "", fmt.Errorf("coordinator: EXPLAIN is only supported for MATCH/RETURN queries")
	}

	lp, err := planner.Build(q, queryText)
	if err != nil {
		return "", fmt.Errorf("coordinator: building plan: %w", err)
	}

	trace := planner.PlanAndTrace(lp)
	return trace.FormatTrace(), nil
}
