package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/glog"
)

// graphKeyPrefix / providerKeyPrefix namespace Badger keys, mirroring the
// teacher's pkg/storage/badger.go key-prefix convention.
const (
	graphKeyPrefix    = "graph:"
	providerKeyPrefix = "catalog:"
)

// graphSnapshot is the on-disk JSON shape of a Graph blob, grounded on the
// teacher's serializeNode/serializeEdge JSON convention
// (pkg/storage/badger_serialization.go).
type graphSnapshot struct {
	Path  string  `json:"path"`
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// BadgerFacade is a Facade backed by github.com/dgraph-io/badger/v4,
// storing whole-graph blobs and catalog-provider blobs as Badger keys,
// grounded on the teacher's pkg/storage/badger.go engine.
type BadgerFacade struct {
	db     *badger.DB
	log    *glog.Logger
	mu     sync.Mutex // serializes graph-level read-modify-write around Badger txns
	hits   uint64
	misses uint64
}

// OpenBadgerFacade opens (or creates) a Badger database at dir.
func OpenBadgerFacade(dir string) (*BadgerFacade, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}
	return &BadgerFacade{db: db, log: glog.New("storage.badger")}, nil
}

func (f *BadgerFacade) GetGraph(path string) (*Graph, error) {
	var data []byte
	err := f.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(graphKeyPrefix + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		atomic.AddUint64(&f.misses, 1)
		return nil, errs.NotFound("graph", path)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get graph %s: %w", path, err)
	}
	atomic.AddUint64(&f.hits, 1)

	var snap graphSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "corrupt graph blob", err).WithIdentifier(path)
	}
	g := NewGraph(snap.Path)
	for _, n := range snap.Nodes {
		if err := g.CreateNode(n); err != nil {
			f.log.Warnf("skipping duplicate node %s loading %s: %v", n.ID, path, err)
		}
	}
	for _, e := range snap.Edges {
		if err := g.CreateEdge(e); err != nil {
			f.log.Warnf("skipping edge %s loading %s: %v", e.ID, path, err)
		}
	}
	return g, nil
}

func (f *BadgerFacade) SaveGraph(path string, g *Graph) error {
	snap := graphSnapshot{Path: path, Nodes: g.AllNodes(), Edges: g.AllEdges()}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("storage: marshal graph %s: %w", path, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(graphKeyPrefix+path), data)
	})
}

func (f *BadgerFacade) DropGraph(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(graphKeyPrefix + path))
	})
	if err != nil {
		return fmt.Errorf("storage: drop graph %s: %w", path, err)
	}
	return nil
}

func (f *BadgerFacade) LoadCatalogProvider(name string) ([]byte, error) {
	var data []byte
	err := f.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(providerKeyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, errs.NotFound("catalog provider", name)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load provider %s: %w", name, err)
	}
	return data, nil
}

func (f *BadgerFacade) SaveCatalogProvider(name string, blob []byte) error {
	return f.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(providerKeyPrefix+name), blob)
	})
}

func (f *BadgerFacade) GetCacheStats() CacheStats {
	return CacheStats{Hits: atomic.LoadUint64(&f.hits), Misses: atomic.LoadUint64(&f.misses)}
}

// ClearCache is a no-op for BadgerFacade: Badger itself manages its block
// cache, and GraphLite keeps no separate graph-blob cache here (unlike
// MemoryFacade's map, every GetGraph re-reads from Badger).
func (f *BadgerFacade) ClearCache() {}

func (f *BadgerFacade) Close() error {
	return f.db.Close()
}
