package catalog

import (
	"fmt"
	"sync"

	"github.com/graphlite-db/graphlite/pkg/errs"
	"github.com/graphlite-db/graphlite/pkg/glog"
	"github.com/graphlite-db/graphlite/pkg/storage"
)

// Manager is the RW-locked router over providers, per spec.md §5's single
// catalog lock discipline: reads may proceed concurrently, writes exclude
// every other catalog access.
type Manager struct {
	mu        sync.RWMutex
	facade    storage.Facade
	log       *glog.Logger
	providers map[string]Provider
}

// NewManager builds a Manager over facade, registering providers (schema,
// graph-metadata, security by convention) and loading any previously saved
// blobs.
func NewManager(facade storage.Facade, providers ...Provider) (*Manager, error) {
	m := &Manager{
		facade:    facade,
		log:       glog.New("catalog"),
		providers: make(map[string]Provider, len(providers)),
	}
	for _, p := range providers {
		if err := p.Init(facade); err != nil {
			return nil, fmt.Errorf("catalog: init provider %s: %w", p.Name(), err)
		}
		if blob, err := facade.LoadCatalogProvider(p.Name()); err == nil {
			if loadErr := p.Load(blob); loadErr != nil {
				return nil, fmt.Errorf("catalog: load provider %s: %w", p.Name(), loadErr)
			}
			m.log.Infof("loaded provider %s", p.Name())
		}
		m.providers[p.Name()] = p
	}
	return m, nil
}

// Provider returns a registered provider by name.
func (m *Manager) Provider(name string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	return p, ok
}

// Execute routes a mutating operation to the named provider, persisting the
// provider's new state on success.
func (m *Manager) Execute(providerName string, op Operation) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[providerName]
	if !ok {
		return Response{}, errs.NotFound("catalog provider", providerName)
	}
	resp, err := p.Execute(op)
	if err != nil {
		return resp, err
	}
	if resp.Kind == RespSuccess || resp.Kind == RespQuery {
		blob, saveErr := p.Save()
		if saveErr != nil {
			return resp, fmt.Errorf("catalog: save provider %s: %w", providerName, saveErr)
		}
		if saveErr := m.facade.SaveCatalogProvider(providerName, blob); saveErr != nil {
			return resp, fmt.Errorf("catalog: persist provider %s: %w", providerName, saveErr)
		}
	}
	return resp, nil
}

// ExecuteReadOnly routes a non-mutating operation without persisting.
func (m *Manager) ExecuteReadOnly(providerName string, op Operation) (Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[providerName]
	if !ok {
		return Response{}, errs.NotFound("catalog provider", providerName)
	}
	return p.ExecuteReadOnly(op)
}

// Providers returns every registered provider name, used by system
// procedures that enumerate catalog state across providers.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for n := range m.providers {
		names = append(names, n)
	}
	return names
}
