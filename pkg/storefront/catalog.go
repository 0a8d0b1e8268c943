package storefront

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/guidepost/pkg/observability"
)

// Catalog is an immutable snapshot of modules and templates
type Catalog struct {
	modules   []Module
	byID      map[string]Module
	byKey     map[string]Module
	templates map[string]Template
	defaults  map[string]Template
}

// NewCatalog indexes modules and templates. Modules are ordered by sort
// order then key.
func NewCatalog(modules []Module, templates []Template) *Catalog {
	c := &Catalog{
		modules:   append([]Module(nil), modules...),
		byID:      make(map[string]Module, len(modules)),
		byKey:     make(map[string]Module, len(modules)),
		templates: make(map[string]Template, len(templates)),
		defaults:  make(map[string]Template),
	}
	sort.SliceStable(c.modules, func(i, j int) bool {
		if c.modules[i].SortOrder != c.modules[j].SortOrder {
			return c.modules[i].SortOrder < c.modules[j].SortOrder
		}
		return c.modules[i].Key < c.modules[j].Key
	})
	for _, m := range c.modules {
		c.byID[m.ID] = m
		c.byKey[m.Key] = m
	}
	for _, t := range templates {
		c.templates[t.ID] = t
		if t.IsDefault && t.Active {
			c.defaults[t.Category] = t
		}
	}
	return c
}

// Modules returns every module in display order
func (c *Catalog) Modules() []Module {
	return append([]Module(nil), c.modules...)
}

// Module looks up a module by id
func (c *Catalog) Module(id string) (Module, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// ModuleByURLKey translates a URL key and looks the module up
func (c *Catalog) ModuleByURLKey(urlKey string) (Module, error) {
	key, err := CatalogKey(urlKey)
	if err != nil {
		return Module{}, err
	}
	m, ok := c.byKey[key]
	if !ok {
		return Module{}, ErrModuleNotFound
	}
	return m, nil
}

// Template looks up a template by id
func (c *Catalog) Template(id string) (Template, bool) {
	t, ok := c.templates[id]
	return t, ok
}

// Templates returns every template ordered by category then id
func (c *Catalog) Templates() []Template {
	out := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DefaultTemplate returns the active default template of a category
func (c *Catalog) DefaultTemplate(category string) (Template, bool) {
	t, ok := c.defaults[category]
	return t, ok
}

// Categories returns the distinct module categories
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range c.modules {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	sort.Strings(out)
	return out
}

// CatalogLoader reads a full catalog snapshot
type CatalogLoader interface {
	Load(ctx context.Context) (*Catalog, error)
}

// CatalogSource serves a snapshot and reloads it after ttl. A failed reload
// keeps serving the previous snapshot.
type CatalogSource struct {
	loader CatalogLoader
	ttl    time.Duration
	mu     sync.Mutex
	cached *Catalog
	loaded time.Time
	now    func() time.Time
}

// NewCatalogSource creates a new CatalogSource
func NewCatalogSource(loader CatalogLoader, ttl time.Duration) *CatalogSource {
	return &CatalogSource{loader: loader, ttl: ttl, now: time.Now}
}

// Get returns the current snapshot
func (s *CatalogSource) Get(ctx context.Context) (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.loaded) < s.ttl {
		return s.cached, nil
	}
	c, err := s.loader.Load(ctx)
	if err != nil {
		if s.cached != nil {
			observability.FromContext(ctx).WithError(err).Warn("catalog reload failed, serving previous snapshot")
			return s.cached, nil
		}
		return nil, err
	}
	s.cached = c
	s.loaded = s.now()
	return c, nil
}

// Invalidate forces a reload on the next Get
func (s *CatalogSource) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
