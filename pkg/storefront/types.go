package storefront

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrStorefrontUnavailable = errors.New("storefront unavailable")
	ErrModuleNotFound        = errors.New("module not found")
	ErrModuleInactive        = errors.New("module is not active")
	ErrRequiredModule        = errors.New("required module cannot be removed or disabled")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrTemplateCategory      = errors.New("template category does not match")
	ErrNoTemplate            = errors.New("no template available for category")
	ErrNoRenderer            = errors.New("no renderer registered for category")
	ErrMalformedKey          = errors.New("malformed module key")
	ErrInvalidOrder          = errors.New("module order must list configured modules exactly once")
)

// Module is a catalog entry that can appear on a storefront
type Module struct {
	ID                string `json:"id" yaml:"id"`
	Key               string `json:"key" yaml:"key"`
	Category          string `json:"category" yaml:"category"`
	Title             string `json:"title" yaml:"title"`
	Description       string `json:"description" yaml:"description"`
	CommissionHintBPS int    `json:"commission_hint_bps" yaml:"commission_hint_bps"`
	Required          bool   `json:"required" yaml:"required"`
	Active            bool   `json:"active" yaml:"active"`
	SortOrder         int    `json:"sort_order" yaml:"sort_order"`
}

// Template is a page layout for one module category
type Template struct {
	ID        string `json:"id" yaml:"id"`
	Category  string `json:"category" yaml:"category"`
	Name      string `json:"name" yaml:"name"`
	IsDefault bool   `json:"is_default" yaml:"is_default"`
	Active    bool   `json:"active" yaml:"active"`
}

// ModuleConfig is one reseller's settings for a catalog module
type ModuleConfig struct {
	ModuleID     string            `json:"module_id"`
	Enabled      bool              `json:"enabled"`
	DisplayOrder int               `json:"display_order"`
	Overrides    map[string]string `json:"overrides,omitempty"`
}

// Config is a reseller's storefront configuration. Templates maps a
// category to the chosen template id.
type Config struct {
	ResellerID   string            `json:"reseller_id"`
	Modules      []ModuleConfig    `json:"modules"`
	Templates    map[string]string `json:"templates"`
	EnabledPages []string          `json:"enabled_pages"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Module returns the reseller's settings for a module
func (c *Config) Module(moduleID string) (ModuleConfig, bool) {
	for _, m := range c.Modules {
		if m.ModuleID == moduleID {
			return m, true
		}
	}
	return ModuleConfig{}, false
}

// PageEnabled reports whether a page key is listed. An empty list enables
// every page.
func (c *Config) PageEnabled(urlKey string) bool {
	if len(c.EnabledPages) == 0 {
		return true
	}
	for _, p := range c.EnabledPages {
		if p == urlKey {
			return true
		}
	}
	return false
}

func sortModuleConfigs(mods []ModuleConfig) {
	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].DisplayOrder != mods[j].DisplayOrder {
			return mods[i].DisplayOrder < mods[j].DisplayOrder
		}
		return mods[i].ModuleID < mods[j].ModuleID
	})
}
