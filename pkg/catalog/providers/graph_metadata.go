package providers

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"
	"sync"

	"github.com/graphlite-db/graphlite/pkg/catalog"
	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/storage"
)

// VertexTypeDef and EdgeTypeDef are purely descriptive type definitions
// within a Graph Type, per spec.md §3 ("no runtime enforcement beyond
// opt-in runtime validation on INSERT").
type VertexTypeDef struct {
	Label      string
	Properties map[string]string // property name -> declared type name
}

type EdgeTypeDef struct {
	Label      string
	From       string
	To         string
	Properties map[string]string
}

// GraphTypeEntry is a named collection of vertex/edge type definitions.
type GraphTypeEntry struct {
	SchemaQualifiedName string // "schema/graphtype"
	VertexTypes         map[string]*VertexTypeDef
	EdgeTypes            map[string]*EdgeTypeDef
}

// GraphEntry is one graph's catalog record: its schema-qualified path and
// the graph type it was declared against (optional).
type GraphEntry struct {
	SchemaQualifiedName string // "schema/graph"
	GraphTypeName       string // "" if untyped
}

// GraphMetadataProvider implements catalog.Provider for graphs and graph
// types, grounded on
// original_source/graphlite/src/catalog/providers/graph_metadata.rs.
type GraphMetadataProvider struct {
	mu         sync.RWMutex
	graphs     map[string]*GraphEntry
	graphTypes map[string]*GraphTypeEntry
}

func NewGraphMetadataProvider() *GraphMetadataProvider {
	return &GraphMetadataProvider{
		graphs:     make(map[string]*GraphEntry),
		graphTypes: make(map[string]*GraphTypeEntry),
	}
}

func (p *GraphMetadataProvider) Name() string { return "graph_metadata" }

func (p *GraphMetadataProvider) Init(_ storage.Facade) error { return nil }

func (p *GraphMetadataProvider) Execute(op catalog.Operation) (catalog.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch op.EntityType {
	case "graph":
		return p.executeGraph(op)
	case "graph_type":
		return p.executeGraphType(op)
	default:
		return catalog.NotSupported(), nil
	}
}

func (p *GraphMetadataProvider) executeGraph(op catalog.Operation) (catalog.Response, error) {
	switch op.Kind {
	case catalog.OpCreate:
		if _, exists := p.graphs[op.Name]; exists {
			return catalog.Response{}, errs.Duplicate("graph", op.Name)
		}
		entry := &GraphEntry{SchemaQualifiedName: op.Name}
		if gt, ok := op.Params["graph_type"].(string); ok {
			entry.GraphTypeName = gt
		}
		p.graphs[op.Name] = entry
		return catalog.Success(map[string]any{"name": op.Name}), nil
	case catalog.OpDrop:
		if _, ok := p.graphs[op.Name]; !ok {
			return catalog.Response{}, errs.NotFound("graph", op.Name)
		}
		delete(p.graphs, op.Name)
		return catalog.Success(nil), nil
	default:
		return catalog.NotSupported(), nil
	}
}

func (p *GraphMetadataProvider) executeGraphType(op catalog.Operation) (catalog.Response, error) {
	switch op.Kind {
	case catalog.OpCreate:
		if _, exists := p.graphTypes[op.Name]; exists {
			return catalog.Response{}, errs.Duplicate("graph type", op.Name)
		}
		p.graphTypes[op.Name] = &GraphTypeEntry{
			SchemaQualifiedName: op.Name,
			VertexTypes:         map[string]*VertexTypeDef{},
			EdgeTypes:           map[string]*EdgeTypeDef{},
		}
		return catalog.Success(map[string]any{"name": op.Name}), nil
	case catalog.OpDrop:
		if _, ok := p.graphTypes[op.Name]; !ok {
			return catalog.Response{}, errs.NotFound("graph type", op.Name)
		}
		if !op.Cascade {
			for _, g := range p.graphs {
				if g.GraphTypeName == op.Name {
					return catalog.Response{}, errs.New(errs.KindCatalog,
						"graph type still referenced by a graph; use cascade").
						WithSubKind(string(errs.CatalogInvalidOperation)).WithIdentifier(op.Name)
				}
			}
		}
		delete(p.graphTypes, op.Name)
		return catalog.Success(nil), nil
	default:
		return catalog.NotSupported(), nil
	}
}

func (p *GraphMetadataProvider) ExecuteReadOnly(op catalog.Operation) (catalog.Response, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch op.Kind {
	case catalog.OpQuery:
		if op.EntityType == "graph_type" {
			gt, ok := p.lookupGraphType(op.Name)
			if !ok {
				return catalog.Response{}, errs.NotFound("graph type", op.Name)
			}
			return catalog.QueryResp([]map[string]any{{"name": gt.SchemaQualifiedName}}), nil
		}
		g, ok := p.lookupGraph(op.Name)
		if !ok {
			return catalog.Response{}, errs.NotFound("graph", op.Name)
		}
		return catalog.QueryResp([]map[string]any{{"name": g.SchemaQualifiedName, "graph_type": g.GraphTypeName}}), nil

	case catalog.OpList:
		var items []map[string]any
		if op.EntityType == "graph_type" {
			for _, gt := range p.graphTypes {
				items = append(items, map[string]any{"name": gt.SchemaQualifiedName})
			}
		} else {
			for _, g := range p.graphs {
				items = append(items, map[string]any{"name": g.SchemaQualifiedName, "graph_type": g.GraphTypeName})
			}
		}
		return catalog.ListResp(items), nil
	default:
		return catalog.NotSupported(), nil
	}
}

// lookupGraph resolves name, falling back to an unqualified suffix match
// ("graph" matches "main/graph") per spec.md's backward-compat rule.
func (p *GraphMetadataProvider) lookupGraph(name string) (*GraphEntry, bool) {
	if g, ok := p.graphs[name]; ok {
		return g, true
	}
	for qualified, g := range p.graphs {
		if strings.HasSuffix(qualified, "/"+name) {
			return g, true
		}
	}
	return nil, false
}

func (p *GraphMetadataProvider) lookupGraphType(name string) (*GraphTypeEntry, bool) {
	if gt, ok := p.graphTypes[name]; ok {
		return gt, true
	}
	for qualified, gt := range p.graphTypes {
		if strings.HasSuffix(qualified, "/"+name) {
			return gt, true
		}
	}
	return nil, false
}

func (p *GraphMetadataProvider) Save() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var buf bytes.Buffer
	payload := struct {
		Graphs     map[string]*GraphEntry
		GraphTypes map[string]*GraphTypeEntry
	}{p.graphs, p.graphTypes}
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("graph_metadata provider: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *GraphMetadataProvider) Load(blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var payload struct {
		Graphs     map[string]*GraphEntry
		GraphTypes map[string]*GraphTypeEntry
	}
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&payload); err != nil {
		return fmt.Errorf("graph_metadata provider: decode: %w", err)
	}
	p.graphs = payload.Graphs
	p.graphTypes = payload.GraphTypes
	return nil
}

func (p *GraphMetadataProvider) Schema() map[string]any {
	return map[string]any{"entity": "graph_metadata", "fields": []string{"name", "graph_type"}}
}

func (p *GraphMetadataProvider) SupportedOperations() []catalog.OpKind {
	return []catalog.OpKind{catalog.OpCreate, catalog.OpDrop, catalog.OpQuery, catalog.OpList}
}
