package orders

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// Attributor binds a new order to the request's tenant
type Attributor interface {
	Attribute(ctx context.Context, orderID string, tc tenant.Context) (bool, error)
}

// CommissionHooks receives order lifecycle events that drive the ledger
type CommissionHooks interface {
	OnCompleted(ctx context.Context, orderID string) error
	OnCancelled(ctx context.Context, orderID, reason string) error
}

// Handlers provides HTTP handlers for order intake and status events
type Handlers struct {
	store      Store
	attributor Attributor
	hooks      CommissionHooks
	now        func() time.Time
}

// NewHandlers creates order handlers
func NewHandlers(store Store, attributor Attributor, hooks CommissionHooks) *Handlers {
	return &Handlers{store: store, attributor: attributor, hooks: hooks, now: time.Now}
}

// RegisterRoutes registers order routes. The caller applies authentication.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	router.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	router.HandleFunc("/orders/{id}/status", h.updateStatus).Methods(http.MethodPost)
}

type createOrderRequest struct {
	CustomerRef string `json:"customerRef"`
	OrderType   string `json:"orderType"`
	SpendAmount *int64 `json:"spendAmount,omitempty"`
	Status      Status `json:"status,omitempty"`
}

type createOrderResponse struct {
	Order      *Order `json:"order"`
	Attributed bool   `json:"attributed"`
}

func (h *Handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CustomerRef, "customerRef") ||
		!httputil.RequireNonEmpty(w, req.OrderType, "orderType") {
		return
	}

	o := &Order{
		CustomerRef: req.CustomerRef,
		OrderType:   req.OrderType,
		SpendAmount: req.SpendAmount,
		Status:      req.Status,
	}
	if err := h.store.Create(r.Context(), o); err != nil {
		if errors.Is(err, ErrInvalidOrder) {
			httputil.WriteValidationError(w, err.Error())
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("order create failed")
		httputil.WriteInternalError(w)
		return
	}

	// Attribution problems are operator-facing only; the order stands.
	resp := createOrderResponse{Order: o}
	if tc, ok := tenant.FromContext(r.Context()); ok && h.attributor != nil {
		attributed, err := h.attributor.Attribute(r.Context(), o.ID, tc)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).WithField("order_id", o.ID).Warn("order attribution failed")
		}
		resp.Attributed = attributed
		if attributed {
			id := tc.ResellerID
			o.ResellerID = &id
		}
	}

	_ = httputil.WriteCreated(w, resp)
}

func (h *Handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	o, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, "order not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("order lookup failed")
		httputil.WriteInternalError(w)
		return
	}
	_ = httputil.WriteSuccess(w, o)
}

type updateStatusRequest struct {
	Status      Status `json:"status"`
	SpendAmount *int64 `json:"spendAmount,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (h *Handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !ValidStatus(req.Status) {
		httputil.WriteValidationError(w, "unknown order status")
		return
	}

	ctx := r.Context()
	logger := observability.FromContext(ctx).WithField("order_id", id)

	o, err := h.store.UpdateStatus(ctx, id, req.Status, req.SpendAmount, h.now().UTC())
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFoundError(w, "order not found")
		return
	case errors.Is(err, ErrInvalidTransition):
		httputil.WriteConflict(w, err.Error())
		return
	case errors.Is(err, ErrInvalidOrder):
		httputil.WriteValidationError(w, err.Error())
		return
	case err != nil:
		logger.WithError(err).Error("order status update failed")
		httputil.WriteInternalError(w)
		return
	}

	// Ledger failures are logged for operators and retried by the
	// scheduled sweep; the status change itself has been committed.
	if h.hooks != nil {
		var hookErr error
		switch o.Status {
		case StatusCompleted:
			hookErr = h.hooks.OnCompleted(ctx, o.ID)
		case StatusCancelled:
			hookErr = h.hooks.OnCancelled(ctx, o.ID, req.Reason)
		}
		if hookErr != nil {
			logger.WithError(hookErr).Warn("commission update after status change failed")
		}
		if fresh, err := h.store.Get(ctx, o.ID); err == nil {
			o = fresh
		}
	}

	_ = httputil.WriteSuccess(w, o)
}
