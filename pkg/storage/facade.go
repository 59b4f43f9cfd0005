package storage

import (
	"sync"

	"github.com/graphlite-db/graphlite/pkg/errs"
)

// CacheStats reports the facade's graph-blob cache occupancy, surfaced by
// the coordinator's gql.cache_stats system procedure.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// Facade is the storage-facade contract from spec.md §6: whole-graph blobs
// and catalog-provider blobs, owned by the facade and borrowed by the
// executor/catalog for the duration of one operation.
type Facade interface {
	GetGraph(path string) (*Graph, error)
	SaveGraph(path string, g *Graph) error
	DropGraph(path string) error

	LoadCatalogProvider(name string) ([]byte, error)
	SaveCatalogProvider(name string, blob []byte) error

	GetCacheStats() CacheStats
	ClearCache()

	Close() error
}

// MemoryFacade is an in-process Facade backed by plain Go maps, grounded on
// the teacher's pkg/storage/memory.go in-memory engine shape. It is used
// for tests and for ephemeral (non-persistent) sessions.
type MemoryFacade struct {
	mu        sync.RWMutex
	graphs    map[string]*Graph
	providers map[string][]byte
	hits      uint64
	misses    uint64
}

// NewMemoryFacade returns an empty MemoryFacade.
func NewMemoryFacade() *MemoryFacade {
	return &MemoryFacade{
		graphs:    make(map[string]*Graph),
		providers: make(map[string][]byte),
	}
}

func (f *MemoryFacade) GetGraph(path string) (*Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.graphs[path]
	if !ok {
		f.misses++
		return nil, errs.NotFound("graph", path)
	}
	f.hits++
	return g.Clone(), nil
}

func (f *MemoryFacade) SaveGraph(path string, g *Graph) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs[path] = g.Clone()
	return nil
}

func (f *MemoryFacade) DropGraph(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.graphs[path]; !ok {
		return errs.NotFound("graph", path)
	}
	delete(f.graphs, path)
	return nil
}

func (f *MemoryFacade) LoadCatalogProvider(name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	blob, ok := f.providers[name]
	if !ok {
		return nil, errs.NotFound("catalog provider", name)
	}
	return blob, nil
}

func (f *MemoryFacade) SaveCatalogProvider(name string, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[name] = blob
	return nil
}

func (f *MemoryFacade) GetCacheStats() CacheStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return CacheStats{Entries: len(f.graphs), Hits: f.hits, Misses: f.misses}
}

func (f *MemoryFacade) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits, f.misses = 0, 0
}

func (f *MemoryFacade) Close() error { return nil }
