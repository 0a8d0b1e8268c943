package storefront

import (
	"context"
	"errors"
	"io"

	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// Pages assembles and renders storefront pages for the resolved tenant
type Pages struct {
	configs  ConfigReader
	catalog  CatalogProvider
	registry *Registry
	official tenant.Context
	metrics  *observability.Metrics
}

// NewPages creates the page service. official is the branding used when a
// white-label storefront cannot be served.
func NewPages(configs ConfigReader, catalog CatalogProvider, registry *Registry, official tenant.Context, metrics *observability.Metrics) *Pages {
	return &Pages{
		configs:  configs,
		catalog:  catalog,
		registry: registry,
		official: official,
		metrics:  metrics,
	}
}

// storefront returns the tenant to brand the page with and its config. A
// white-label tenant whose storefront is unavailable degrades to official.
func (p *Pages) storefront(ctx context.Context, tc tenant.Context) (tenant.Context, *Config) {
	if !tc.IsWhiteLabel() {
		return p.official, nil
	}
	cfg, err := p.configs.GetConfig(ctx, tc.ResellerID)
	if err != nil {
		if !errors.Is(err, ErrStorefrontUnavailable) {
			observability.FromContext(ctx).WithError(err).WithField("reseller_id", tc.ResellerID).
				Error("storefront config load failed, rendering official branding")
		}
		return p.official, nil
	}
	return tc, cfg
}

// RenderHome renders the landing page
func (p *Pages) RenderHome(ctx context.Context, w io.Writer, tc tenant.Context) error {
	cat, err := p.catalog.Get(ctx)
	if err != nil {
		return err
	}
	brand, cfg := p.storefront(ctx, tc)
	modules := VisibleModules(cat, cfg)

	page := &Page{
		Tenant:     brand,
		Title:      brand.Brand.Name,
		Navigation: navigation(modules, ""),
		Modules:    modules,
	}
	renderer, err := p.registry.Lookup(HomeCategory)
	if err != nil {
		return err
	}
	if err := renderer.Render(w, page); err != nil {
		return err
	}
	p.metrics.RecordPageRendered(HomeCategory, string(brand.Mode))
	return nil
}

// RenderModule renders a module page, or one item within it. Modules not
// visible on the tenant's storefront are ErrModuleNotFound.
func (p *Pages) RenderModule(ctx context.Context, w io.Writer, tc tenant.Context, urlKey, item string) error {
	cat, err := p.catalog.Get(ctx)
	if err != nil {
		return err
	}
	m, err := cat.ModuleByURLKey(urlKey)
	if err != nil {
		return err
	}
	if item != "" {
		if _, err := CatalogKey(item); err != nil {
			return err
		}
	}

	brand, cfg := p.storefront(ctx, tc)
	modules := VisibleModules(cat, cfg)
	visible := false
	for _, v := range modules {
		if v.ID == m.ID {
			m = v
			visible = true
			break
		}
	}
	if !visible {
		return ErrModuleNotFound
	}

	tmpl, err := SelectTemplate(cat, cfg, m)
	if err != nil {
		return err
	}
	renderer, err := p.registry.Lookup(m.Category)
	if err != nil {
		return err
	}

	page := &Page{
		Tenant:     brand,
		Title:      m.Title,
		Module:     &m,
		Item:       item,
		Template:   tmpl,
		Navigation: navigation(modules, m.ID),
		Modules:    modules,
	}
	if err := renderer.Render(w, page); err != nil {
		return err
	}
	p.metrics.RecordPageRendered(m.Category, string(brand.Mode))
	return nil
}

func navigation(modules []Module, activeID string) []NavLink {
	links := make([]NavLink, 0, len(modules))
	for _, m := range modules {
		key, err := URLKey(m.Key)
		if err != nil {
			continue
		}
		links = append(links, NavLink{Title: m.Title, Href: "/" + key, Active: m.ID == activeID})
	}
	return links
}
