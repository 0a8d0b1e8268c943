package storefront

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

type staticCatalog struct {
	cat *Catalog
	err error
}

func (s staticCatalog) Get(context.Context) (*Catalog, error) { return s.cat, s.err }

type mapConfigs map[string]*Config

func (m mapConfigs) GetConfig(_ context.Context, id string) (*Config, error) {
	if cfg, ok := m[id]; ok {
		return cfg, nil
	}
	return nil, ErrStorefrontUnavailable
}

var officialTenant = tenant.Official(
	resellers.Brand{Name: "Japan Medical Travel", Color: "#003366"},
	resellers.Contact{Email: "concierge@example.jp"},
)

func whiteLabel(id, name string) tenant.Context {
	return tenant.Context{
		Mode:       tenant.ModeWhiteLabel,
		ResellerID: id,
		Slug:       id,
		Brand:      resellers.Brand{Name: name},
		Contact:    resellers.Contact{LineID: id + "-line"},
	}
}

func newTestPages(t *testing.T, configs ConfigReader) (*Pages, *observability.Metrics) {
	t.Helper()
	cat := testCatalog(t)
	set, err := NewTemplateSet("")
	require.NoError(t, err)
	registry := NewRegistry()
	RegisterTemplateRenderers(registry, set, cat.Categories())
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewPages(configs, staticCatalog{cat: cat}, registry, officialTenant, metrics), metrics
}

func TestPages_OfficialHome(t *testing.T) {
	pages, metrics := newTestPages(t, mapConfigs{})

	var buf bytes.Buffer
	require.NoError(t, pages.RenderHome(context.Background(), &buf, officialTenant))
	out := buf.String()
	assert.Contains(t, out, "Japan Medical Travel")
	assert.Contains(t, out, `data-mode="official"`)
	assert.Contains(t, out, `href="/golf-tours"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PagesRenderedTotal.WithLabelValues(HomeCategory, "official")))
}

func TestPages_WhiteLabelBrandIsolation(t *testing.T) {
	configs := mapConfigs{
		"golf-master": {ResellerID: "golf-master", Modules: []ModuleConfig{
			{ModuleID: "mod_golf_tours", Enabled: true, DisplayOrder: 1},
		}},
		"clinic-guide": {ResellerID: "clinic-guide"},
	}
	pages, _ := newTestPages(t, configs)

	var a, b bytes.Buffer
	require.NoError(t, pages.RenderHome(context.Background(), &a, whiteLabel("golf-master", "Golf Master")))
	require.NoError(t, pages.RenderHome(context.Background(), &b, whiteLabel("clinic-guide", "Clinic Guide")))

	assert.Contains(t, a.String(), "Golf Master")
	assert.Contains(t, a.String(), "golf-master-line")
	assert.NotContains(t, a.String(), "Clinic Guide")
	assert.NotContains(t, a.String(), "Japan Medical Travel")

	assert.Contains(t, b.String(), "Clinic Guide")
	assert.NotContains(t, b.String(), "Golf Master")
	assert.NotContains(t, b.String(), `href="/golf-tours"`, "unconfigured optional modules stay hidden")
}

func TestPages_UnavailableStorefrontFallsBackToOfficial(t *testing.T) {
	pages, metrics := newTestPages(t, mapConfigs{})

	var buf bytes.Buffer
	require.NoError(t, pages.RenderHome(context.Background(), &buf, whiteLabel("lapsed", "Lapsed Guide")))
	assert.Contains(t, buf.String(), "Japan Medical Travel")
	assert.NotContains(t, buf.String(), "Lapsed Guide")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PagesRenderedTotal.WithLabelValues(HomeCategory, "official")))
}

func TestPages_RenderModule(t *testing.T) {
	configs := mapConfigs{
		"golf-master": {
			ResellerID: "golf-master",
			Modules: []ModuleConfig{
				{ModuleID: "mod_golf_tours", Enabled: true, DisplayOrder: 1, Overrides: map[string]string{"title": "Rounds with Ken"}},
				{ModuleID: "mod_hotel_stays", Enabled: false, DisplayOrder: 2},
			},
			Templates: map[string]string{"medical": "medical_premium"},
		},
	}
	pages, _ := newTestPages(t, configs)
	tc := whiteLabel("golf-master", "Golf Master")
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, pages.RenderModule(ctx, &buf, tc, "golf-tours", ""))
	assert.Contains(t, buf.String(), "Rounds with Ken")
	assert.Contains(t, buf.String(), `data-template="leisure_standard"`)

	buf.Reset()
	require.NoError(t, pages.RenderModule(ctx, &buf, tc, "medical-packages", "knee-surgery"))
	assert.Contains(t, buf.String(), `data-template="medical_premium"`)
	assert.Contains(t, buf.String(), "knee-surgery")

	tests := map[string]struct {
		urlKey string
		item   string
		want   error
	}{
		"disabled module":  {"hotel-stays", "", ErrModuleNotFound},
		"unconfigured":     {"health-checkups", "", ErrModuleNotFound},
		"unknown module":   {"casino", "", ErrModuleNotFound},
		"inactive module":  {"retired", "", ErrModuleNotFound},
		"malformed module": {"Golf_Tours", "", ErrMalformedKey},
		"malformed item":   {"golf-tours", "<script>", ErrMalformedKey},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := pages.RenderModule(ctx, &bytes.Buffer{}, tc, tt.urlKey, tt.item)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPages_CatalogError(t *testing.T) {
	pages := NewPages(mapConfigs{}, staticCatalog{err: errors.New("db down")}, NewRegistry(), officialTenant, nil)
	err := pages.RenderHome(context.Background(), &bytes.Buffer{}, officialTenant)
	assert.Error(t, err)
}
