package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/graphlite-db/graphlite/pkg/ast"
	"github.com/graphlite-db/graphlite/pkg/catalog"
	"github.com/graphlite-db/graphlite/pkg/executor"
	"github.com/graphlite-db/graphlite/pkg/executor/write"
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/session"
	"github.com/graphlite-db/graphlite/pkg/storage"
	"github.com/graphlite-db/graphlite/pkg/value"
)

// QueryResult is what ProcessQuery returns for every statement kind: row
// data for a read, an affected-row count and warnings for a write, nothing
// beyond timing for DDL/DCL/transaction control, per spec.md §6's unified
// QueryResult shape (original_source's exec::QueryResult).
type QueryResult struct {
	Rows          executor.RowSet
	Variables     []string
	RowsAffected  int
	Warnings      []string
	ExecutionTime time.Duration
}

// ProcessQuery parses queryText and dispatches it according to its
// statement kind, grounded on original_source/graphlite/src/coordinator.rs's
// Session::execute: transaction control adjusts the session's
// TransactionState directly, DDL/DCL go to the catalog manager, and
// everything else is planned and run against the session's current graph.
func (c *Coordinator) ProcessQuery(sess *session.Session, queryText string) (*QueryResult, error) {
	start := time.Now()

	stmt, err := ast.NewParser(queryText).Parse()
	if err != nil {
		return nil, fmt.Errorf("coordinator: parsing query: %w", err)
	}

	switch s := stmt.(type) {
	case *ast.TxnControlStatement:
		return c.execTxnControl(sess, s, start)
	case *ast.DDLStatement:
		return c.execDDL(sess, s, start)
	case *ast.DCLStatement:
		return c.execDCL(sess, s, start)
	case *ast.SessionSetStatement:
		return c.execSessionSet(sess, s, start)
	case *ast.Query:
		return c.execQuery(sess, s, queryText, start)
	default:
		return nil, fmt.Errorf("coordinator: unsupported statement type %T", stmt)
	}
}

// execSessionSet applies SESSION SET GRAPH / SESSION SET SCHEMA to sess,
// grounded on original_source's handle_session_result: a single-segment
// graph path is relative to the session's current schema (an error if none
// is set), a two-segment path is a full /schema/graph reference, and a
// schema path is always taken whole as the schema name.
func (c *Coordinator) execSessionSet(sess *session.Session, s *ast.SessionSetStatement, start time.Time) (*QueryResult, error) {
	switch s.Kind {
	case ast.SessionSetSchema:
		sess.SetSchema(strings.Join(s.PathSegments, "/"))

	case ast.SessionSetGraph:
		switch len(s.PathSegments) {
		case 1:
			if sess.CurrentSchema == "" {
				return nil, fmt.Errorf("coordinator: cannot use relative graph path without current schema set; use SESSION SET SCHEMA or provide full path /schema_name/graph_name")
			}
			sess.SetGraph(s.PathSegments[0])
		case 2:
			sess.SetSchema(s.PathSegments[0])
			sess.SetGraph(s.PathSegments[1])
		default:
			return nil, fmt.Errorf("coordinator: graph path %q must have 1 (relative) or 2 (/schema/graph) segments", strings.Join(s.PathSegments, "/"))
		}

	default:
		return nil, fmt.Errorf("coordinator: unsupported session set kind %v", s.Kind)
	}
	return &QueryResult{ExecutionTime: time.Since(start)}, nil
}

func (c *Coordinator) execTxnControl(sess *session.Session, s *ast.TxnControlStatement, start time.Time) (*QueryResult, error) {
	switch s.Kind {
	case ast.TxnBegin:
		if _, err := sess.Txn.Begin(); err != nil {
			return nil, err
		}
		sess.Txn.SetAutoCommit(false)
	case ast.TxnCommit:
		if err := sess.Txn.Commit(); err != nil {
			return nil, err
		}
		sess.Txn.SetAutoCommit(true)
	case ast.TxnRollback:
		if err := sess.Txn.Rollback(); err != nil {
			return nil, err
		}
		sess.Txn.SetAutoCommit(true)
	default:
		return nil, fmt.Errorf("coordinator: unsupported transaction control kind %v", s.Kind)
	}
	return &QueryResult{ExecutionTime: time.Since(start)}, nil
}

// execQuery plans and runs a Query clause pipeline against the session's
// current graph. A write clause (CREATE/SET/REMOVE/DELETE, lowered to
// PInsert/PUpdate/PDelete) mutates the graph and logs an undo record;
// anything else is a plain read. Chaining a RETURN after a write clause in
// the same statement is not supported: the planner would wrap the write
// node in a projection, and that shape is rejected below rather than
// silently read back stale rows.
func (c *Coordinator) execQuery(sess *session.Session, q *ast.Query, queryText string, start time.Time) (*QueryResult, error) {
	graphPath := sess.GraphPath()
	if graphPath == "" {
		return nil, fmt.Errorf("coordinator: no current graph set on session")
	}

	lp, err := planner.Build(q, queryText)
	if err != nil {
		return nil, fmt.Errorf("coordinator: building plan: %w", err)
	}
	pp := planner.Lower(lp)

	return session.ExecuteWithAutoCommit(sess.Txn, func() (*QueryResult, error) {
		graph, err := c.facade.GetGraph(graphPath)
		if err != nil {
			return nil, err
		}

		switch n := pp.Root.(type) {
		case *planner.PInsert:
			return c.runWrite(sess, graphPath, graph, write.NewInsertExecutor(n, sess.Parameters), start)
		case *planner.PUpdate:
			if isRemoveNode(n) {
				return c.runWrite(sess, graphPath, graph, write.NewMatchRemoveExecutor(n, sess.Parameters), start)
			}
			return c.runWrite(sess, graphPath, graph, write.NewMatchSetExecutor(n, sess.Parameters), start)
		case *planner.PDelete:
			return c.runWrite(sess, graphPath, graph, write.NewMatchDeleteExecutor(n, sess.Parameters), start)
		default:
			ex := executor.New(graph, sess.Parameters)
			rows, err := ex.Run(pp.Root)
			if err != nil {
				return nil, err
			}
			return &QueryResult{Rows: rows, ExecutionTime: time.Since(start)}, nil
		}
	})
}

// isRemoveNode distinguishes a REMOVE-lowered PUpdate from a SET-lowered
// one: both share the same physical node type (pkg/planner/build.go's
// buildSet/buildRemove both emit PUpdate), but a REMOVE item never carries
// property assignments, only label removal or RemoveProperty.
func isRemoveNode(n *planner.PUpdate) bool {
	return len(n.Properties) == 0 && len(n.AddLabels) == 0
}

func (c *Coordinator) runWrite(sess *session.Session, graphPath string, graph *storage.Graph, exec write.DataStatementExecutor, start time.Time) (*QueryResult, error) {
	ctx := &write.ExecutionContext{GraphPath: graphPath}

	undoOp, affected, err := exec.ExecuteModification(graph, ctx)
	if err != nil {
		return nil, err
	}

	if err := c.facade.SaveGraph(graphPath, graph); err != nil {
		return nil, err
	}

	if affected > 0 {
		if err := sess.Txn.LogOperation(undoOp, exec.OperationType(), exec.OperationDescription(ctx)); err != nil {
			return nil, err
		}
	}

	return &QueryResult{
		RowsAffected:  affected,
		Warnings:      ctx.Warnings,
		ExecutionTime: time.Since(start),
	}, nil
}

// execDDL dispatches schema/graph/graph-type statements to the catalog
// manager. The graph_metadata provider only tracks which graphs and graph
// types exist; CREATE GRAPH/DROP GRAPH additionally need the coordinator to
// create or remove the underlying storage.Graph blob itself.
func (c *Coordinator) execDDL(sess *session.Session, s *ast.DDLStatement, start time.Time) (*QueryResult, error) {
	params := evalParams(sess, s.Params)
	params["if_not_exists"] = s.IfNotExists

	var resp catalog.Response
	var err error

	switch s.Kind {
	case ast.DDLCreateSchema:
		resp, err = c.catalog.Execute("schema", catalog.Operation{Kind: catalog.OpCreate, Name: s.Name, Params: params})
	case ast.DDLDropSchema:
		resp, err = c.catalog.Execute("schema", catalog.Operation{Kind: catalog.OpDrop, Name: s.Name, Cascade: s.Cascade})
	case ast.DDLAlterSchema:
		resp, err = c.catalog.Execute("schema", catalog.Operation{Kind: catalog.OpUpdate, Name: s.Name, Updates: params})

	case ast.DDLCreateGraph:
		resp, err = c.catalog.Execute("graph_metadata", catalog.Operation{
			Kind: catalog.OpCreate, EntityType: "graph", Name: s.Name, Params: params,
		})
		if err == nil {
			err = c.facade.SaveGraph(s.Name, storage.NewGraph(s.Name))
		}
	case ast.DDLDropGraph:
		resp, err = c.catalog.Execute("graph_metadata", catalog.Operation{
			Kind: catalog.OpDrop, EntityType: "graph", Name: s.Name, Cascade: s.Cascade,
		})
		if err == nil {
			err = c.facade.DropGraph(s.Name)
		}

	case ast.DDLCreateGraphType:
		resp, err = c.catalog.Execute("graph_metadata", catalog.Operation{
			Kind: catalog.OpCreate, EntityType: "graph_type", Name: s.Name, Params: params,
		})
	case ast.DDLDropGraphType:
		resp, err = c.catalog.Execute("graph_metadata", catalog.Operation{
			Kind: catalog.OpDrop, EntityType: "graph_type", Name: s.Name, Cascade: s.Cascade,
		})

	default:
		return nil, fmt.Errorf("coordinator: unsupported DDL kind %v", s.Kind)
	}
	if err != nil {
		return nil, err
	}
	return responseToResult(resp, start), nil
}

// execDCL dispatches user/role statements to the security provider.
// GRANT/REVOKE are modeled as updates to the target user's role set, since
// that provider keeps roles as a property of the user record rather than a
// standalone grant table.
func (c *Coordinator) execDCL(sess *session.Session, s *ast.DCLStatement, start time.Time) (*QueryResult, error) {
	params := evalParams(sess, s.Params)

	var resp catalog.Response
	var err error

	switch s.Kind {
	case ast.DCLCreateUser:
		resp, err = c.catalog.Execute("security", catalog.Operation{Kind: catalog.OpCreate, EntityType: "user", Name: s.Name, Params: params})
	case ast.DCLDropUser:
		resp, err = c.catalog.Execute("security", catalog.Operation{Kind: catalog.OpDrop, EntityType: "user", Name: s.Name, Cascade: s.Cascade})
	case ast.DCLCreateRole:
		resp, err = c.catalog.Execute("security", catalog.Operation{Kind: catalog.OpCreate, EntityType: "role", Name: s.Name, Params: params})
	case ast.DCLDropRole:
		resp, err = c.catalog.Execute("security", catalog.Operation{Kind: catalog.OpDrop, EntityType: "role", Name: s.Name, Cascade: s.Cascade})
	case ast.DCLGrantRole:
		resp, err = c.catalog.Execute("security", catalog.Operation{
			Kind: catalog.OpUpdate, EntityType: "user", Name: s.ToUser,
			Updates: map[string]any{"grant_role": s.RoleName},
		})
	case ast.DCLRevokeRole:
		resp, err = c.catalog.Execute("security", catalog.Operation{
			Kind: catalog.OpUpdate, EntityType: "user", Name: s.ToUser,
			Updates: map[string]any{"revoke_role": s.RoleName},
		})
	default:
		return nil, fmt.Errorf("coordinator: unsupported DCL kind %v", s.Kind)
	}
	if err != nil {
		return nil, err
	}
	return responseToResult(resp, start), nil
}

// evalParams turns a DDL/DCL statement's parameter expressions into plain
// Go values for catalog.Operation.Params/Updates. DDL/DCL carry no MATCH
// context to bind a graph-backed Executor against, but pkg/executor.Eval
// only touches its Graph field for pattern/path expressions — literals and
// session parameters (the only expressions the grammar allows here) are
// evaluated without it, so a nil-graph Executor is reused rather than
// duplicating evalLiteral's logic.
func evalParams(sess *session.Session, exprs map[string]ast.Expression) map[string]any {
	out := make(map[string]any, len(exprs))
	ex := executor.New(nil, sess.Parameters)
	for k, e := range exprs {
		v, err := ex.Eval(e, executor.Row{})
		if err != nil {
			continue
		}
		out[k] = v.ToAny()
	}
	return out
}

func responseToResult(resp catalog.Response, start time.Time) *QueryResult {
	qr := &QueryResult{ExecutionTime: time.Since(start)}
	switch resp.Kind {
	case catalog.RespQuery:
		qr.Rows = mapsToRows(resp.Results)
	case catalog.RespList:
		qr.Rows = mapsToRows(resp.Items)
	}
	return qr
}

func mapsToRows(maps []map[string]any) executor.RowSet {
	rows := make(executor.RowSet, 0, len(maps))
	for _, m := range maps {
		row := executor.Row{}
		for k, v := range m {
			row[k] = value.FromAny(v)
		}
		rows = append(rows, row)
	}
	return rows
}
