package storefront

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/middleware"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// Editor is the reseller-facing configuration surface
type Editor interface {
	Load(ctx context.Context, resellerID string) (*Config, error)
	UpsertModule(ctx context.Context, resellerID string, mc ModuleConfig) error
	RemoveModule(ctx context.Context, resellerID, moduleID string) error
	ReorderModules(ctx context.Context, resellerID string, moduleIDs []string) error
	SetTemplate(ctx context.Context, resellerID, category, templateID string) error
	SetEnabledPages(ctx context.Context, resellerID string, pages []string) error
}

// Handlers serves storefront pages and configuration management
type Handlers struct {
	pages   *Pages
	editor  Editor
	catalog CatalogProvider
	audit   audit.Logger
}

// NewHandlers creates storefront handlers
func NewHandlers(pages *Pages, editor Editor, catalog CatalogProvider, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Handlers{pages: pages, editor: editor, catalog: catalog, audit: auditLogger}
}

// RegisterPageRoutes registers the catch-all page routes. Register these
// after every other route.
func (h *Handlers) RegisterPageRoutes(router *mux.Router) {
	router.HandleFunc("/", h.home).Methods(http.MethodGet)
	router.HandleFunc("/{module}", h.module).Methods(http.MethodGet)
	router.HandleFunc("/{module}/{item}", h.module).Methods(http.MethodGet)
}

// RegisterResellerRoutes registers configuration routes. The caller applies
// reseller authentication.
func (h *Handlers) RegisterResellerRoutes(router *mux.Router) {
	router.HandleFunc("/reseller/storefront", h.getConfig).Methods(http.MethodGet)
	router.HandleFunc("/reseller/storefront/catalog", h.getCatalog).Methods(http.MethodGet)
	router.HandleFunc("/reseller/storefront/modules/{module_id}", h.upsertModule).Methods(http.MethodPut)
	router.HandleFunc("/reseller/storefront/modules/{module_id}", h.removeModule).Methods(http.MethodDelete)
	router.HandleFunc("/reseller/storefront/module-order", h.reorder).Methods(http.MethodPut)
	router.HandleFunc("/reseller/storefront/templates/{category}", h.setTemplate).Methods(http.MethodPut)
	router.HandleFunc("/reseller/storefront/pages", h.setPages).Methods(http.MethodPut)
}

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenant.FromContext(r.Context())
	var buf bytes.Buffer
	if err := h.pages.RenderHome(r.Context(), &buf, tc); err != nil {
		h.writePageError(w, r, err)
		return
	}
	httputil.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (h *Handlers) module(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tc, _ := tenant.FromContext(r.Context())
	var buf bytes.Buffer
	if err := h.pages.RenderModule(r.Context(), &buf, tc, vars["module"], vars["item"]); err != nil {
		h.writePageError(w, r, err)
		return
	}
	httputil.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (h *Handlers) writePageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrModuleNotFound) || errors.Is(err, ErrMalformedKey) {
		httputil.WriteHTML(w, http.StatusNotFound, []byte("<!DOCTYPE html><title>Not found</title><h1>Page not found</h1>"))
		return
	}
	observability.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("page render failed")
	httputil.WriteHTML(w, http.StatusInternalServerError, []byte("<!DOCTYPE html><title>Error</title><h1>Something went wrong</h1>"))
}

func resellerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.ResellerID == "" {
		httputil.WriteForbidden(w, "reseller token required")
		return "", false
	}
	return authCtx.ResellerID, true
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := resellerID(w, r)
	if !ok {
		return
	}
	cfg, err := h.editor.Load(r.Context(), id)
	if err != nil {
		h.writeEditError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, cfg)
}

type catalogResponse struct {
	Modules   []Module   `json:"modules"`
	Templates []Template `json:"templates"`
}

func (h *Handlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalog.Get(r.Context())
	if err != nil {
		h.writeEditError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, catalogResponse{Modules: cat.Modules(), Templates: cat.Templates()})
}

type upsertModuleRequest struct {
	Enabled      *bool             `json:"enabled,omitempty"`
	DisplayOrder int               `json:"displayOrder"`
	Overrides    map[string]string `json:"overrides,omitempty"`
}

func (h *Handlers) upsertModule(w http.ResponseWriter, r *http.Request) {
	id, ok := resellerID(w, r)
	if !ok {
		return
	}
	moduleID, ok := httputil.ParsePathStringOrError(w, r, "module_id")
	if !ok {
		return
	}
	var req upsertModuleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	mc := ModuleConfig{ModuleID: moduleID, Enabled: true, DisplayOrder: req.DisplayOrder, Overrides: req.Overrides}
	if req.Enabled != nil {
		mc.Enabled = *req.Enabled
	}
	if err := h.editor.UpsertModule(r.Context(), id, mc); err != nil {
		h.writeEditError(w, r, err)
		return
	}
	h.recordUpdate(r, id, "module upserted", map[string]interface{}{"module_id": moduleID, "enabled": mc.Enabled})
	h.respondConfig(w, r, id)
}

func (h *Handlers) removeModule(w http.ResponseWriter, r *http.Request) {
	id, ok := resellerID(w, r)
	if !ok {
		return
	}
	moduleID, ok := httputil.ParsePathStringOrError(w, r, "module_id")
	if !ok {
		return
	}
	if err := h.editor.RemoveModule(r.Context(), id, moduleID); err != nil {
		h.writeEditError(w, r, err)
		return
	}
	h.recordUpdate(r, id, "module removed", map[string]interface{}{"module_id": moduleID})
	h.respondConfig(w, r, id)
}

type reorderRequest struct {
	ModuleIDs []string `json:"moduleIds"`
}

func (h *Handlers) reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := resellerID(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.editor.ReorderModules(r.Context(), id, req.ModuleIDs); err != nil {
		h.writeEditError(w, r, err)
		return
	}
	h.recordUpdate(r, id, "modules reordered", map[string]interface{}{"module_ids": req.ModuleIDs})
	h.respondConfig(w, r, id)
}

type setTemplateRequest struct {
	TemplateID string `json:"templateId"`
}

func (h *Handlers) setTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := resellerID(w, r)
	if !ok {
		return
	}
	category, ok := httputil.ParsePathStringOrError(w, r, "category")
	if !ok {
		return
	}
	var req setTemplateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.TemplateID, "templateId") {
		return
	}
	if err := h.editor.SetTemplate(r.Context(), id, category, req.TemplateID); err != nil {
		h.writeEditError(w, r, err)
		return
	}
	h.recordUpdate(r, id, "template set", map[string]interface{}{"category": category, "template_id": req.TemplateID})
	h.respondConfig(w, r, id)
}

type setPagesRequest struct {
	Pages []string `json:"pages"`
}

func (h *Handlers) setPages(w http.ResponseWriter, r *http.Request) {
	id, ok := resellerID(w, r)
	if !ok {
		return
	}
	var req setPagesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.editor.SetEnabledPages(r.Context(), id, req.Pages); err != nil {
		h.writeEditError(w, r, err)
		return
	}
	h.recordUpdate(r, id, "enabled pages set", map[string]interface{}{"pages": req.Pages})
	h.respondConfig(w, r, id)
}

func (h *Handlers) respondConfig(w http.ResponseWriter, r *http.Request, id string) {
	cfg, err := h.editor.Load(r.Context(), id)
	if err != nil {
		h.writeEditError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, cfg)
}

func (h *Handlers) recordUpdate(r *http.Request, id, message string, meta map[string]interface{}) {
	event := audit.NewEvent(r.Context(), audit.EventTypeStorefrontUpdated, audit.EventStatusSuccess)
	event.Actor = "reseller:" + id
	event.ResellerID = id
	event.ResourceType = audit.ResourceTypeStorefront
	event.ResourceID = id
	event.Message = message
	for k, v := range meta {
		event.Metadata[k] = v
	}
	audit.Record(r.Context(), h.audit, event)
}

func (h *Handlers) writeEditError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, resellers.ErrNotFound):
		httputil.WriteNotFoundError(w, "reseller not found")
	case errors.Is(err, ErrModuleNotFound), errors.Is(err, ErrTemplateNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, ErrMalformedKey), errors.Is(err, ErrInvalidOverride), errors.Is(err, ErrInvalidOrder):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, ErrRequiredModule), errors.Is(err, ErrModuleInactive), errors.Is(err, ErrTemplateCategory):
		httputil.WriteUnprocessable(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("storefront update failed")
		httputil.WriteInternalError(w)
	}
}
