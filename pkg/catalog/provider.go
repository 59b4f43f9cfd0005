// Package catalog implements GraphLite's catalog manager: a uniform,
// typed surface over several metadata providers (schema, graph-metadata,
// security), each owning one entity family, grounded on
// original_source/graphlite/src/catalog/providers/{schema,graph_metadata,security}.rs
// and original_source/graphlite/src/catalog/system_procedures.rs.
package catalog

import "github.com/graphlite-db/graphlite/pkg/storage"

// OpKind is the closed operation set every provider understands.
type OpKind string

const (
	OpCreate OpKind = "Create"
	OpDrop   OpKind = "Drop"
	OpUpdate OpKind = "Update"
	OpQuery  OpKind = "Query"
	OpList   OpKind = "List"
)

// Operation is one request dispatched to a provider.
type Operation struct {
	Kind       OpKind
	EntityType string
	Name       string
	Params     map[string]any
	Updates    map[string]any
	Cascade    bool
	QueryType  string
	Filters    map[string]any
}

// RespKind is the closed response set.
type RespKind string

const (
	RespSuccess     RespKind = "Success"
	RespQuery       RespKind = "Query"
	RespList        RespKind = "List"
	RespError       RespKind = "Error"
	RespNotSupported RespKind = "NotSupported"
)

// Response is a provider's reply to an Operation.
type Response struct {
	Kind    RespKind
	Data    map[string]any
	Results []map[string]any
	Items   []map[string]any
	Message string
}

func Success(data map[string]any) Response { return Response{Kind: RespSuccess, Data: data} }
func QueryResp(results []map[string]any) Response {
	return Response{Kind: RespQuery, Results: results}
}
func ListResp(items []map[string]any) Response { return Response{Kind: RespList, Items: items} }
func ErrorResp(message string) Response         { return Response{Kind: RespError, Message: message} }
func NotSupported() Response                    { return Response{Kind: RespNotSupported} }

// Provider is the contract every catalog entity family implements,
// mirroring spec.md §4.1's init/execute/execute_read_only/save/load/
// schema/supported_operations surface.
type Provider interface {
	Name() string
	Init(facade storage.Facade) error
	Execute(op Operation) (Response, error)
	ExecuteReadOnly(op Operation) (Response, error)
	Save() ([]byte, error)
	Load(blob []byte) error
	Schema() map[string]any
	SupportedOperations() []OpKind
}
