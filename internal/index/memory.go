package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
)

// MemoryIndex provides in-memory storage for the catalog.
// It is used when no Redis address is configured, and in tests.
// Records are copied on the way in and out so callers never share state
// with the index.
type MemoryIndex struct {
	mu       sync.RWMutex
	catalogs map[string]*domain.Catalog
	services map[int64]*domain.Service // ID -> Service
	layers   map[int64]*domain.Layer   // ID -> Layer
	srs      map[string]struct{}
	checks   map[domain.ResourceKey][]domain.Check

	serviceByURL map[string]int64 // catalog|url -> ID
	layerByName  map[string]int64 // serviceID|name -> ID

	nextServiceID int64
	nextLayerID   int64
	lastWrite     time.Time
}

var _ domain.Repository = (*MemoryIndex)(nil)

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		catalogs:     make(map[string]*domain.Catalog),
		services:     make(map[int64]*domain.Service),
		layers:       make(map[int64]*domain.Layer),
		srs:          make(map[string]struct{}),
		checks:       make(map[domain.ResourceKey][]domain.Check),
		serviceByURL: make(map[string]int64),
		layerByName:  make(map[string]int64),
	}
}

func serviceKey(catalog, url string) string { return catalog + "|" + strings.TrimSpace(url) }
func layerKey(serviceID int64, name string) string {
	return fmt.Sprintf("%d|%s", serviceID, name)
}

// ─────────────────────────────────────────────────────────────────
// Catalogs
// ─────────────────────────────────────────────────────────────────

// SaveCatalog adds or updates a catalog
func (idx *MemoryIndex) SaveCatalog(_ context.Context, c *domain.Catalog) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cp := *c
	idx.catalogs[c.Slug] = &cp
	idx.lastWrite = time.Now()
	return nil
}

// GetCatalog retrieves a catalog by slug
func (idx *MemoryIndex) GetCatalog(_ context.Context, slug string) (*domain.Catalog, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	c, ok := idx.catalogs[slug]
	if !ok {
		return nil, fmt.Errorf("catalog %s: %w", slug, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// ListCatalogs returns all catalogs sorted by slug
func (idx *MemoryIndex) ListCatalogs(_ context.Context) ([]*domain.Catalog, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*domain.Catalog, 0, len(idx.catalogs))
	for _, c := range idx.catalogs {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// Services
// ─────────────────────────────────────────────────────────────────

// CreateService stores a new service and assigns its ID
func (idx *MemoryIndex) CreateService(_ context.Context, s *domain.Service) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := serviceKey(s.Catalog, s.URL)
	if _, taken := idx.serviceByURL[key]; taken {
		return fmt.Errorf("%s in %s: %w", s.URL, s.Catalog, domain.ErrDuplicateService)
	}

	idx.nextServiceID++
	s.ID = idx.nextServiceID
	idx.services[s.ID] = s.Clone()
	idx.serviceByURL[key] = s.ID
	idx.lastWrite = time.Now()
	return nil
}

// SaveService updates an existing service
func (idx *MemoryIndex) SaveService(_ context.Context, s *domain.Service) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	old, ok := idx.services[s.ID]
	if !ok {
		return fmt.Errorf("service %d: %w", s.ID, domain.ErrNotFound)
	}
	oldKey, newKey := serviceKey(old.Catalog, old.URL), serviceKey(s.Catalog, s.URL)
	if oldKey != newKey {
		if other, taken := idx.serviceByURL[newKey]; taken && other != s.ID {
			return fmt.Errorf("%s in %s: %w", s.URL, s.Catalog, domain.ErrDuplicateService)
		}
		delete(idx.serviceByURL, oldKey)
		idx.serviceByURL[newKey] = s.ID
	}
	idx.services[s.ID] = s.Clone()
	idx.lastWrite = time.Now()
	return nil
}

// GetService retrieves a service by ID
func (idx *MemoryIndex) GetService(_ context.Context, id int64) (*domain.Service, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s, ok := idx.services[id]
	if !ok {
		return nil, fmt.Errorf("service %d: %w", id, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

// FindService retrieves a service by its (catalog, url) pair
func (idx *MemoryIndex) FindService(_ context.Context, catalog, url string) (*domain.Service, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	id, ok := idx.serviceByURL[serviceKey(catalog, url)]
	if !ok {
		return nil, fmt.Errorf("service %s in %s: %w", url, catalog, domain.ErrNotFound)
	}
	return idx.services[id].Clone(), nil
}

// ListServices returns all services ordered by ID
func (idx *MemoryIndex) ListServices(_ context.Context) ([]*domain.Service, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*domain.Service, 0, len(idx.services))
	for _, s := range idx.services {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// Layers
// ─────────────────────────────────────────────────────────────────

// GetOrCreateLayer returns the layer keyed by (serviceID, name)
func (idx *MemoryIndex) GetOrCreateLayer(_ context.Context, serviceID int64, name string) (*domain.Layer, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.services[serviceID]; !ok {
		return nil, false, fmt.Errorf("service %d: %w", serviceID, domain.ErrNotFound)
	}

	key := layerKey(serviceID, name)
	if id, ok := idx.layerByName[key]; ok {
		return idx.layers[id].Clone(), false, nil
	}

	idx.nextLayerID++
	l := domain.NewLayer(serviceID, name, time.Now())
	l.ID = idx.nextLayerID
	idx.layers[l.ID] = l
	idx.layerByName[key] = l.ID
	idx.lastWrite = time.Now()
	return l.Clone(), true, nil
}

// SaveLayer updates an existing layer
func (idx *MemoryIndex) SaveLayer(_ context.Context, l *domain.Layer) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.layers[l.ID]; !ok {
		return fmt.Errorf("layer %d: %w", l.ID, domain.ErrNotFound)
	}
	idx.layers[l.ID] = l.Clone()
	idx.lastWrite = time.Now()
	return nil
}

// GetLayer retrieves a layer by ID
func (idx *MemoryIndex) GetLayer(_ context.Context, id int64) (*domain.Layer, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	l, ok := idx.layers[id]
	if !ok {
		return nil, fmt.Errorf("layer %d: %w", id, domain.ErrNotFound)
	}
	return l.Clone(), nil
}

// ListLayers returns the layers of a service ordered by ID.
// A zero serviceID lists every layer.
func (idx *MemoryIndex) ListLayers(_ context.Context, serviceID int64) ([]*domain.Layer, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*domain.Layer, 0)
	for _, l := range idx.layers {
		if serviceID == 0 || l.ServiceID == serviceID {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// SRS & checks
// ─────────────────────────────────────────────────────────────────

// GetOrCreateSRS registers a CRS code
func (idx *MemoryIndex) GetOrCreateSRS(_ context.Context, code string) (domain.SpatialReferenceSystem, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.srs[code] = struct{}{}
	return domain.SpatialReferenceSystem{Code: code}, nil
}

// ListSRS returns every known CRS code sorted
func (idx *MemoryIndex) ListSRS(_ context.Context) ([]domain.SpatialReferenceSystem, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.SpatialReferenceSystem, 0, len(idx.srs))
	for code := range idx.srs {
		out = append(out, domain.SpatialReferenceSystem{Code: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// AppendCheck appends to the check history of a resource
func (idx *MemoryIndex) AppendCheck(_ context.Context, c domain.Check) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.checks[c.Resource] = append(idx.checks[c.Resource], c)
	return nil
}

// ListChecks returns the check history of a resource in insertion order
func (idx *MemoryIndex) ListChecks(_ context.Context, key domain.ResourceKey) ([]domain.Check, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return append([]domain.Check(nil), idx.checks[key]...), nil
}

// Count returns the number of services and layers in the index
func (idx *MemoryIndex) Count() (services, layers int) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.services), len(idx.layers)
}

// GetLastWrite returns the timestamp of the last mutation
func (idx *MemoryIndex) GetLastWrite() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastWrite
}
