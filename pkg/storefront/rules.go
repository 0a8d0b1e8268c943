package storefront

import (
	"errors"
	"fmt"
)

// ErrInvalidOverride is returned for unknown or oversize module overrides
var ErrInvalidOverride = errors.New("invalid module override")

var overrideKeys = map[string]int{"title": 120, "description": 1000}

func validateUpsert(cat *Catalog, mc ModuleConfig) error {
	for k, v := range mc.Overrides {
		limit, ok := overrideKeys[k]
		if !ok {
			return fmt.Errorf("%w: unknown key %q", ErrInvalidOverride, k)
		}
		if len(v) > limit {
			return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidOverride, k, limit)
		}
	}
	m, ok := cat.Module(mc.ModuleID)
	if !ok {
		return ErrModuleNotFound
	}
	if !m.Active {
		return fmt.Errorf("%w: %s", ErrModuleInactive, m.ID)
	}
	if m.Required && !mc.Enabled {
		return fmt.Errorf("%w: %s", ErrRequiredModule, m.ID)
	}
	return nil
}

func validateRemove(cat *Catalog, moduleID string) error {
	m, ok := cat.Module(moduleID)
	if !ok {
		return ErrModuleNotFound
	}
	if m.Required {
		return fmt.Errorf("%w: %s", ErrRequiredModule, m.ID)
	}
	return nil
}

// validateReorder requires ids to be a permutation of the configured modules
func validateReorder(cfg *Config, ids []string) error {
	if len(ids) != len(cfg.Modules) {
		return ErrInvalidOrder
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return ErrInvalidOrder
		}
		if _, ok := cfg.Module(id); !ok {
			return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
		}
		seen[id] = true
	}
	return nil
}

func validateTemplate(cat *Catalog, category, templateID string) error {
	t, ok := cat.Template(templateID)
	if !ok || !t.Active {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	if t.Category != category {
		return fmt.Errorf("%w: %s is a %s template", ErrTemplateCategory, templateID, t.Category)
	}
	return nil
}

// validatePages checks every page is an active module's URL key and that no
// required module is left out. An empty list enables every page.
func validatePages(cat *Catalog, pages []string) error {
	if len(pages) == 0 {
		return nil
	}
	listed := make(map[string]bool, len(pages))
	for _, p := range pages {
		m, err := cat.ModuleByURLKey(p)
		if err != nil {
			return err
		}
		if !m.Active {
			return fmt.Errorf("%w: %s", ErrModuleInactive, m.ID)
		}
		listed[m.ID] = true
	}
	for _, m := range cat.Modules() {
		if m.Required && m.Active && !listed[m.ID] {
			return fmt.Errorf("%w: %s", ErrRequiredModule, m.ID)
		}
	}
	return nil
}

// SelectTemplate picks the configured template for the module's category
// when it is present, active and of that category, else the category
// default. cfg is nil on the official storefront.
func SelectTemplate(cat *Catalog, cfg *Config, m Module) (Template, error) {
	if cfg != nil {
		if id, ok := cfg.Templates[m.Category]; ok {
			if t, ok := cat.Template(id); ok && t.Active && t.Category == m.Category {
				return t, nil
			}
		}
	}
	if t, ok := cat.DefaultTemplate(m.Category); ok {
		return t, nil
	}
	return Template{}, fmt.Errorf("%w: %s", ErrNoTemplate, m.Category)
}

// VisibleModules lists the modules a storefront shows, in display order.
// Required modules are always shown; optional ones only when configured,
// enabled and listed in the enabled pages.
func VisibleModules(cat *Catalog, cfg *Config) []Module {
	if cfg == nil {
		var out []Module
		for _, m := range cat.Modules() {
			if m.Active {
				out = append(out, m)
			}
		}
		return out
	}

	configured := append([]ModuleConfig(nil), cfg.Modules...)
	sortModuleConfigs(configured)

	var out []Module
	included := make(map[string]bool)
	for _, mc := range configured {
		m, ok := cat.Module(mc.ModuleID)
		if !ok || !m.Active {
			continue
		}
		if !m.Required {
			if !mc.Enabled {
				continue
			}
			if urlKey, err := URLKey(m.Key); err != nil || !cfg.PageEnabled(urlKey) {
				continue
			}
		}
		m = applyOverrides(m, mc.Overrides)
		out = append(out, m)
		included[m.ID] = true
	}
	for _, m := range cat.Modules() {
		if m.Required && m.Active && !included[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

func applyOverrides(m Module, overrides map[string]string) Module {
	if v := overrides["title"]; v != "" {
		m.Title = v
	}
	if v := overrides["description"]; v != "" {
		m.Description = v
	}
	return m
}
