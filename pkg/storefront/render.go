package storefront

import (
	"fmt"
	"io"
	"sync"

	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// HomeCategory is the registry key for the storefront landing page
const HomeCategory = "home"

// NavLink is one navigation entry
type NavLink struct {
	Title  string
	Href   string
	Active bool
}

// Page is everything a renderer may draw. Branding comes only from Tenant.
type Page struct {
	Tenant     tenant.Context
	Title      string
	Module     *Module
	Item       string
	Template   Template
	Navigation []NavLink
	Modules    []Module
}

// Renderer draws one page category
type Renderer interface {
	Render(w io.Writer, page *Page) error
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(w io.Writer, page *Page) error

// Render calls f
func (f RendererFunc) Render(w io.Writer, page *Page) error {
	return f(w, page)
}

// Registry maps a category to its renderer
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register sets the renderer of a category, replacing any previous one
func (r *Registry) Register(category string, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[category] = renderer
}

// Lookup returns the renderer of a category
func (r *Registry) Lookup(category string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRenderer, category)
	}
	return renderer, nil
}

// TemplateRenderer renders pages with the template chosen for them, falling
// back to fallback when the set has no file for that template id
type TemplateRenderer struct {
	set      *TemplateSet
	fallback string
}

// NewTemplateRenderer creates a renderer over set
func NewTemplateRenderer(set *TemplateSet, fallback string) *TemplateRenderer {
	return &TemplateRenderer{set: set, fallback: fallback}
}

// Render executes the page's template
func (r *TemplateRenderer) Render(w io.Writer, page *Page) error {
	name := page.Template.ID
	if name == "" || !r.set.Has(name) {
		name = r.fallback
	}
	return r.set.Execute(w, name, page)
}

// RegisterTemplateRenderers registers a template renderer for the home page
// and for each category
func RegisterTemplateRenderers(registry *Registry, set *TemplateSet, categories []string) {
	registry.Register(HomeCategory, NewTemplateRenderer(set, "home"))
	for _, c := range categories {
		registry.Register(c, NewTemplateRenderer(set, "module"))
	}
}
