package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/auth"
	"github.com/platinummonkey/guidepost/pkg/contextkeys"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// memEditor applies the same validation as ConfigStore against an in-memory config
type memEditor struct {
	cat     *Catalog
	configs map[string]*Config
}

func newMemEditor(cat *Catalog) *memEditor {
	return &memEditor{cat: cat, configs: make(map[string]*Config)}
}

func (e *memEditor) Load(_ context.Context, id string) (*Config, error) {
	cfg, ok := e.configs[id]
	if !ok {
		cfg = &Config{ResellerID: id, Templates: map[string]string{}}
		e.configs[id] = cfg
	}
	return cfg, nil
}

func (e *memEditor) UpsertModule(ctx context.Context, id string, mc ModuleConfig) error {
	if err := validateUpsert(e.cat, mc); err != nil {
		return err
	}
	cfg, _ := e.Load(ctx, id)
	for i := range cfg.Modules {
		if cfg.Modules[i].ModuleID == mc.ModuleID {
			cfg.Modules[i] = mc
			return nil
		}
	}
	cfg.Modules = append(cfg.Modules, mc)
	return nil
}

func (e *memEditor) RemoveModule(ctx context.Context, id, moduleID string) error {
	if err := validateRemove(e.cat, moduleID); err != nil {
		return err
	}
	cfg, _ := e.Load(ctx, id)
	for i := range cfg.Modules {
		if cfg.Modules[i].ModuleID == moduleID {
			cfg.Modules = append(cfg.Modules[:i], cfg.Modules[i+1:]...)
			return nil
		}
	}
	return ErrModuleNotFound
}

func (e *memEditor) ReorderModules(ctx context.Context, id string, ids []string) error {
	cfg, _ := e.Load(ctx, id)
	if err := validateReorder(cfg, ids); err != nil {
		return err
	}
	pos := make(map[string]int, len(ids))
	for i, m := range ids {
		pos[m] = i + 1
	}
	for i := range cfg.Modules {
		cfg.Modules[i].DisplayOrder = pos[cfg.Modules[i].ModuleID]
	}
	return nil
}

func (e *memEditor) SetTemplate(ctx context.Context, id, category, templateID string) error {
	if err := validateTemplate(e.cat, category, templateID); err != nil {
		return err
	}
	cfg, _ := e.Load(ctx, id)
	cfg.Templates[category] = templateID
	return nil
}

func (e *memEditor) SetEnabledPages(ctx context.Context, id string, pages []string) error {
	if err := validatePages(e.cat, pages); err != nil {
		return err
	}
	cfg, _ := e.Load(ctx, id)
	cfg.EnabledPages = pages
	return nil
}

type recordingAudit struct {
	events []*audit.AuditEvent
}

func (r *recordingAudit) Log(_ context.Context, e *audit.AuditEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func newTestHandlers(t *testing.T, configs mapConfigs) (*mux.Router, *memEditor, *recordingAudit) {
	t.Helper()
	pages, _ := newTestPages(t, configs)
	cat := testCatalog(t)
	editor := newMemEditor(cat)
	rec := &recordingAudit{}
	h := NewHandlers(pages, editor, staticCatalog{cat: cat}, rec)

	router := mux.NewRouter()
	h.RegisterResellerRoutes(router)
	h.RegisterPageRoutes(router)
	return router, editor, rec
}

func asReseller(req *http.Request, id string) *http.Request {
	return req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{ResellerID: id}))
}

func asTenant(req *http.Request, tc tenant.Context) *http.Request {
	return req.WithContext(tenant.WithContext(req.Context(), tc))
}

func TestHandlers_Pages(t *testing.T) {
	router, _, _ := newTestHandlers(t, mapConfigs{
		"golf-master": {ResellerID: "golf-master", Modules: []ModuleConfig{{ModuleID: "mod_golf_tours", Enabled: true}}},
	})
	tc := whiteLabel("golf-master", "Golf Master")

	tests := map[string]struct {
		path     string
		tc       tenant.Context
		status   int
		contains string
	}{
		"official home":      {"/", officialTenant, http.StatusOK, "Japan Medical Travel"},
		"white label home":   {"/", tc, http.StatusOK, "Golf Master"},
		"module":             {"/golf-tours", tc, http.StatusOK, "Golf Tours"},
		"module item":        {"/golf-tours/kawana", tc, http.StatusOK, "kawana"},
		"hidden module":      {"/hotel-stays", tc, http.StatusNotFound, "Page not found"},
		"malformed module":   {"/Golf_Tours", tc, http.StatusNotFound, "Page not found"},
		"official all pages": {"/hotel-stays", officialTenant, http.StatusOK, "Recovery Hotel Stays"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := asTenant(httptest.NewRequest(http.MethodGet, tt.path, nil), tt.tc)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.contains)
			assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
		})
	}
}

func TestHandlers_ResellerRoutesRequireReseller(t *testing.T) {
	router, _, _ := newTestHandlers(t, mapConfigs{})
	req := httptest.NewRequest(http.MethodGet, "/reseller/storefront", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandlers_EditFlow(t *testing.T) {
	router, editor, rec := newTestHandlers(t, mapConfigs{})
	const id = "golf-master"

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := asReseller(httptest.NewRequest(method, path, strings.NewReader(body)), id)
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	steps := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"add golf", http.MethodPut, "/reseller/storefront/modules/mod_golf_tours", `{"displayOrder":1,"overrides":{"title":"Golf with Ken"}}`, http.StatusOK},
		{"add hotel", http.MethodPut, "/reseller/storefront/modules/mod_hotel_stays", `{"displayOrder":2}`, http.StatusOK},
		{"disable required", http.MethodPut, "/reseller/storefront/modules/mod_contact", `{"enabled":false}`, http.StatusUnprocessableEntity},
		{"bad override", http.MethodPut, "/reseller/storefront/modules/mod_golf_tours", `{"overrides":{"script":"x"}}`, http.StatusBadRequest},
		{"unknown module", http.MethodPut, "/reseller/storefront/modules/mod_casino", `{}`, http.StatusNotFound},
		{"reorder", http.MethodPut, "/reseller/storefront/module-order", `{"moduleIds":["mod_hotel_stays","mod_golf_tours"]}`, http.StatusOK},
		{"partial reorder", http.MethodPut, "/reseller/storefront/module-order", `{"moduleIds":["mod_hotel_stays"]}`, http.StatusBadRequest},
		{"premium template", http.MethodPut, "/reseller/storefront/templates/medical", `{"templateId":"medical_premium"}`, http.StatusOK},
		{"cross category template", http.MethodPut, "/reseller/storefront/templates/leisure", `{"templateId":"medical_premium"}`, http.StatusUnprocessableEntity},
		{"missing template id", http.MethodPut, "/reseller/storefront/templates/leisure", `{}`, http.StatusBadRequest},
		{"pages", http.MethodPut, "/reseller/storefront/pages", `{"pages":["medical-packages","contact","golf-tours"]}`, http.StatusOK},
		{"pages missing required", http.MethodPut, "/reseller/storefront/pages", `{"pages":["golf-tours"]}`, http.StatusUnprocessableEntity},
		{"remove hotel", http.MethodDelete, "/reseller/storefront/modules/mod_hotel_stays", ``, http.StatusOK},
		{"remove required", http.MethodDelete, "/reseller/storefront/modules/mod_medical_packages", ``, http.StatusUnprocessableEntity},
	}
	for _, s := range steps {
		rr := do(s.method, s.path, s.body)
		require.Equal(t, s.status, rr.Code, "%s: %s", s.name, rr.Body.String())
	}

	cfg := editor.configs[id]
	require.Len(t, cfg.Modules, 1)
	assert.Equal(t, "mod_golf_tours", cfg.Modules[0].ModuleID)
	assert.Equal(t, 2, cfg.Modules[0].DisplayOrder)
	assert.Equal(t, "medical_premium", cfg.Templates["medical"])
	assert.Equal(t, []string{"medical-packages", "contact", "golf-tours"}, cfg.EnabledPages)

	// one audit event per successful mutation
	assert.Len(t, rec.events, 6)
	for _, e := range rec.events {
		assert.Equal(t, audit.EventTypeStorefrontUpdated, e.EventType)
		assert.Equal(t, id, e.ResellerID)
	}

	rr := do(http.MethodGet, "/reseller/storefront", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got Config
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, id, got.ResellerID)
}

func TestHandlers_Catalog(t *testing.T) {
	router, _, _ := newTestHandlers(t, mapConfigs{})
	req := asReseller(httptest.NewRequest(http.MethodGet, "/reseller/storefront/catalog", nil), "r1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body catalogResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Modules, 6)
	assert.NotEmpty(t, body.Templates)
}
