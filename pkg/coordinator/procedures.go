package coordinator

import (
	"fmt"
	"sort"
	"time"

	"github.com/graphlite-db/graphlite/pkg/catalog"
	"github.com/graphlite-db/graphlite/pkg/executor"
	"github.com/graphlite-db/graphlite/pkg/session"
	"github.com/graphlite-db/graphlite/pkg/value"
)

// builtinFunctions is the static set gql.list_functions reports. GraphLite
// has no user-defined-function registry (spec.md's Non-goals), so this is
// just the scalar/aggregate names pkg/executor/eval.go and aggregate.go
// recognize.
var builtinFunctions = []string{
	"count", "sum", "avg", "min", "max", "collect",
	"length", "size", "toupper", "upper", "tolower", "lower", "trim",
	"abs", "ceil", "floor", "round", "coalesce",
}

// CallProcedure executes a vendor system procedure under the gql.*
// namespace, grounded on
// original_source/graphlite/src/catalog/system_procedures.rs's
// SystemProcedures::execute_procedure. Only the gql.* namespace is
// recognized; user-defined procedures are out of scope (spec.md
// Non-goals).
func (c *Coordinator) CallProcedure(sess *session.Session, name string, args []value.Value) (*QueryResult, error) {
	start := time.Now()
	if len(name) < 4 || name[:4] != "gql." {
		return nil, fmt.Errorf("coordinator: invalid procedure namespace %q, must start with \"gql.\"", name)
	}

	switch name {
	case "gql.list_schemas":
		return c.listFromCatalog("schema", "", start)
	case "gql.list_graphs":
		return c.listFromCatalog("graph_metadata", "graph", start)
	case "gql.list_graph_types":
		return c.listFromCatalog("graph_metadata", "graph_type", start)
	case "gql.list_roles":
		return c.listFromCatalog("security", "role", start)
	case "gql.list_users":
		return c.listFromCatalog("security", "user", start)
	case "gql.list_functions":
		return c.listFunctions(start), nil
	case "gql.authenticate_user":
		return c.authenticateUser(args, start)
	case "gql.show_session":
		return c.showSession(sess, start), nil
	case "gql.cache_stats":
		return c.cacheStats(start), nil
	case "gql.clear_cache":
		c.facade.ClearCache()
		return &QueryResult{
			Rows:          executor.RowSet{executor.Row{"status": value.FromAny("ok")}},
			ExecutionTime: time.Since(start),
		}, nil
	default:
		return nil, fmt.Errorf("coordinator: unknown system procedure %q", name)
	}
}

// IsValidProcedure reports whether name names a recognized gql.* system
// procedure, without running it. ValidateQuery/IsValidQuery do not call
// it; the parser has no CALL statement.
func IsValidProcedure(name string) bool {
	switch name {
	case "gql.list_schemas", "gql.list_graphs", "gql.list_graph_types",
		"gql.list_roles", "gql.list_users", "gql.list_functions",
		"gql.authenticate_user", "gql.show_session", "gql.cache_stats", "gql.clear_cache":
		return true
	default:
		return false
	}
}

func (c *Coordinator) listFromCatalog(provider, entityType string, start time.Time) (*QueryResult, error) {
	resp, err := c.catalog.ExecuteReadOnly(provider, catalog.Operation{Kind: catalog.OpList, EntityType: entityType})
	if err != nil {
		return nil, err
	}
	return responseToResult(resp, start), nil
}

func (c *Coordinator) listFunctions(start time.Time) *QueryResult {
	names := append([]string(nil), builtinFunctions...)
	sort.Strings(names)
	rows := make(executor.RowSet, 0, len(names))
	for _, n := range names {
		rows = append(rows, executor.Row{"name": value.FromAny(n)})
	}
	return &QueryResult{Rows: rows, ExecutionTime: time.Since(start)}
}

func (c *Coordinator) authenticateUser(args []value.Value, start time.Time) (*QueryResult, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("coordinator: gql.authenticate_user requires (username, password)")
	}
	username, password := args[0].AsString(), args[1].AsString()
	resp, err := c.catalog.ExecuteReadOnly("security", catalog.Operation{
		Kind: catalog.OpQuery, EntityType: "authenticate", Name: username,
		Params: map[string]any{"password": password},
	})
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		Rows:          executor.RowSet{mapToRow(resp.Data)},
		ExecutionTime: time.Since(start),
	}, nil
}

func (c *Coordinator) showSession(sess *session.Session, start time.Time) *QueryResult {
	row := executor.Row{
		"session_id":  value.FromAny(string(sess.ID)),
		"user_name":   value.FromAny(sess.Username),
		"schema_name": value.FromAny(sess.CurrentSchema),
		"graph_name":  value.FromAny(sess.CurrentGraph),
	}
	return &QueryResult{Rows: executor.RowSet{row}, ExecutionTime: time.Since(start)}
}

func (c *Coordinator) cacheStats(start time.Time) *QueryResult {
	stats := c.facade.GetCacheStats()
	hitRate := 0.0
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}
	row := executor.Row{
		"cache_type":   value.FromAny("graph_blob"),
		"entries":      value.FromAny(int64(stats.Entries)),
		"hit_rate":     value.FromAny(hitRate),
		"memory_bytes": value.FromAny(int64(0)), // not tracked by storage.Facade
	}
	return &QueryResult{Rows: executor.RowSet{row}, ExecutionTime: time.Since(start)}
}

func mapToRow(m map[string]any) executor.Row {
	row := executor.Row{}
	for k, v := range m {
		row[k] = value.FromAny(v)
	}
	return row
}
