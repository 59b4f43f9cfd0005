// Package providers implements GraphLite's three catalog providers:
// schema, graph-metadata and security, each grounded on the matching file
// in original_source/graphlite/src/catalog/providers/.
package providers

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/graphlite-db/graphlite/pkg/catalog"
	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/storage"
)

// SchemaEntry is one named schema directory, grounded on
// original_source/graphlite/src/catalog/providers/schema.rs.
type SchemaEntry struct {
	Name        string
	Description string
	Version     string
	Properties  map[string]string
	IsDefault   bool
}

// SchemaProvider implements catalog.Provider for schema entities.
type SchemaProvider struct {
	mu      sync.RWMutex
	schemas map[string]*SchemaEntry
}

// NewSchemaProvider returns an empty provider; Init bootstraps the default
// "main" schema on first use.
func NewSchemaProvider() *SchemaProvider {
	return &SchemaProvider{schemas: make(map[string]*SchemaEntry)}
}

func (p *SchemaProvider) Name() string { return "schema" }

func (p *SchemaProvider) Init(_ storage.Facade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.schemas) == 0 {
		p.schemas["main"] = &SchemaEntry{Name: "main", Properties: map[string]string{}, IsDefault: true}
	}
	return nil
}

func (p *SchemaProvider) Execute(op catalog.Operation) (catalog.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch op.Kind {
	case catalog.OpCreate:
		if _, exists := p.schemas[op.Name]; exists {
			if ifNotExists, _ := op.Params["if_not_exists"].(bool); ifNotExists {
				return catalog.Success(map[string]any{"name": op.Name, "existed": true}), nil
			}
			return catalog.Response{}, errs.Duplicate("schema", op.Name)
		}
		entry := &SchemaEntry{Name: op.Name, Properties: map[string]string{}}
		if desc, ok := op.Params["description"].(string); ok {
			entry.Description = desc
		}
		if makeDefault, _ := op.Params["is_default"].(bool); makeDefault {
			p.clearDefaultLocked()
			entry.IsDefault = true
		}
		p.schemas[op.Name] = entry
		return catalog.Success(map[string]any{"name": op.Name}), nil

	case catalog.OpDrop:
		entry, ok := p.schemas[op.Name]
		if !ok {
			return catalog.Response{}, errs.NotFound("schema", op.Name)
		}
		if entry.IsDefault && !op.Cascade {
			return catalog.Response{}, errs.New(errs.KindCatalog, "cannot drop default schema without cascade").
				WithSubKind(string(errs.CatalogInvalidOperation)).WithIdentifier(op.Name)
		}
		delete(p.schemas, op.Name)
		return catalog.Success(nil), nil

	case catalog.OpUpdate:
		entry, ok := p.schemas[op.Name]
		if !ok {
			return catalog.Response{}, errs.NotFound("schema", op.Name)
		}
		for k, v := range op.Updates {
			switch k {
			case "description":
				if s, ok := v.(string); ok {
					entry.Description = s
				}
			case "version":
				if s, ok := v.(string); ok {
					entry.Version = s
				}
			case "add_property":
				if kv, ok := v.([2]string); ok {
					entry.Properties[kv[0]] = kv[1]
				}
			case "remove_property":
				if key, ok := v.(string); ok {
					delete(entry.Properties, key)
				}
			case "is_default":
				if makeDefault, ok := v.(bool); ok && makeDefault {
					p.clearDefaultLocked()
					entry.IsDefault = true
				}
			}
		}
		return catalog.Success(map[string]any{"name": op.Name}), nil

	default:
		return catalog.NotSupported(), nil
	}
}

func (p *SchemaProvider) clearDefaultLocked() {
	for _, s := range p.schemas {
		s.IsDefault = false
	}
}

func (p *SchemaProvider) ExecuteReadOnly(op catalog.Operation) (catalog.Response, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch op.Kind {
	case catalog.OpQuery:
		entry, ok := p.schemas[op.Name]
		if !ok {
			return catalog.Response{}, errs.NotFound("schema", op.Name)
		}
		return catalog.QueryResp([]map[string]any{schemaToMap(entry)}), nil
	case catalog.OpList:
		var items []map[string]any
		for _, s := range p.schemas {
			items = append(items, schemaToMap(s))
		}
		return catalog.ListResp(items), nil
	default:
		return catalog.NotSupported(), nil
	}
}

func schemaToMap(s *SchemaEntry) map[string]any {
	return map[string]any{
		"name":        s.Name,
		"description": s.Description,
		"version":     s.Version,
		"is_default":  s.IsDefault,
	}
}

func (p *SchemaProvider) Save() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p.schemas); err != nil {
		return nil, fmt.Errorf("schema provider: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *SchemaProvider) Load(blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	schemas := make(map[string]*SchemaEntry)
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&schemas); err != nil {
		return fmt.Errorf("schema provider: decode: %w", err)
	}
	p.schemas = schemas
	return nil
}

func (p *SchemaProvider) Schema() map[string]any {
	return map[string]any{"entity": "schema", "fields": []string{"name", "description", "version", "is_default"}}
}

func (p *SchemaProvider) SupportedOperations() []catalog.OpKind {
	return []catalog.OpKind{catalog.OpCreate, catalog.OpDrop, catalog.OpUpdate, catalog.OpQuery, catalog.OpList}
}

// DefaultSchema returns the name of the schema currently flagged default,
// or "" if none is (should not happen after Init).
func (p *SchemaProvider) DefaultSchema() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.schemas {
		if s.IsDefault {
			return s.Name
		}
	}
	return ""
}
