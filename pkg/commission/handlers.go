package commission

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/middleware"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/orders"
)

// Ledger is the engine surface used by the HTTP handlers
type Ledger interface {
	Tiers() TierTable
	ReleaseMatured(ctx context.Context, now time.Time) (ReleaseReport, error)
	MarkPaid(ctx context.Context, orderID, payoutRef, actor string) (int64, error)
	MarkRewardPaid(ctx context.Context, rewardID, payoutRef, actor string) (int64, error)
	Void(ctx context.Context, orderID, reason, actor string) (VoidSummary, error)
	Calculate(ctx context.Context, orderID string) (*orders.Order, error)
	SetSpend(ctx context.Context, orderID string, amount int64, actor string) (*orders.Order, error)
	Balance(ctx context.Context, resellerID string) (*Balance, error)
}

// Handlers provides HTTP handlers for the commission ledger
type Handlers struct {
	ledger Ledger
	now    func() time.Time
}

// NewHandlers creates commission handlers
func NewHandlers(ledger Ledger) *Handlers {
	return &Handlers{ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterPublicRoutes registers unauthenticated routes
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/commission-tiers", h.getTiers).Methods(http.MethodGet)
}

// RegisterAdminRoutes registers operator routes. The caller applies the
// commission admin scope.
func (h *Handlers) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc("/admin/commissions/release", h.release).Methods(http.MethodPost)
	router.HandleFunc("/admin/commissions/{order_id}/calculate", h.calculate).Methods(http.MethodPost)
	router.HandleFunc("/admin/commissions/{order_id}/spend", h.setSpend).Methods(http.MethodPost)
	router.HandleFunc("/admin/commissions/{order_id}/payout", h.payout).Methods(http.MethodPost)
	router.HandleFunc("/admin/commissions/{order_id}/void", h.void).Methods(http.MethodPost)
	router.HandleFunc("/admin/referral-rewards/{reward_id}/payout", h.rewardPayout).Methods(http.MethodPost)
}

// RegisterResellerRoutes registers routes for authenticated resellers
func (h *Handlers) RegisterResellerRoutes(router *mux.Router) {
	router.HandleFunc("/reseller/commissions/balance", h.balance).Methods(http.MethodGet)
}

func (h *Handlers) getTiers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = httputil.WriteSuccess(w, h.ledger.Tiers())
}

func (h *Handlers) release(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.ReleaseMatured(r.Context(), h.now())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("manual release failed")
		httputil.WriteInternalError(w)
		return
	}
	_ = httputil.WriteSuccess(w, report)
}

func (h *Handlers) calculate(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParsePathStringOrError(w, r, "order_id")
	if !ok {
		return
	}
	o, err := h.ledger.Calculate(r.Context(), orderID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, o)
}

type spendRequest struct {
	SpendAmount int64 `json:"spendAmount"`
}

func (h *Handlers) setSpend(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParsePathStringOrError(w, r, "order_id")
	if !ok {
		return
	}
	var req spendRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	o, err := h.ledger.SetSpend(r.Context(), orderID, req.SpendAmount, actorName(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, o)
}

type payoutRequest struct {
	PayoutReference string `json:"payoutReference"`
}

type payoutResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

func (h *Handlers) payout(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParsePathStringOrError(w, r, "order_id")
	if !ok {
		return
	}
	var req payoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	amount, err := h.ledger.MarkPaid(r.Context(), orderID, req.PayoutReference, actorName(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, payoutResponse{ID: orderID, Amount: amount, Status: string(orders.CommissionPaid)})
}

func (h *Handlers) rewardPayout(w http.ResponseWriter, r *http.Request) {
	rewardID, ok := httputil.ParsePathStringOrError(w, r, "reward_id")
	if !ok {
		return
	}
	var req payoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	amount, err := h.ledger.MarkRewardPaid(r.Context(), rewardID, req.PayoutReference, actorName(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, payoutResponse{ID: rewardID, Amount: amount, Status: string(RewardPaid)})
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) void(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParsePathStringOrError(w, r, "order_id")
	if !ok {
		return
	}
	var req voidRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Reason, "reason") {
		return
	}
	summary, err := h.ledger.Void(r.Context(), orderID, req.Reason, actorName(r))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, summary)
}

func (h *Handlers) balance(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.ResellerID == "" {
		httputil.WriteForbidden(w, "reseller token required")
		return
	}
	b, err := h.ledger.Balance(r.Context(), authCtx.ResellerID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("balance lookup failed")
		httputil.WriteInternalError(w)
		return
	}
	_ = httputil.WriteSuccess(w, b)
}

func (h *Handlers) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, orders.ErrNotFound):
		httputil.WriteNotFoundError(w, "commission not found")
	case errors.Is(err, ErrPayoutReference), errors.Is(err, ErrInvalidSpend):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrInvalidState), errors.Is(err, ErrOrderNotReady):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, ErrMissingSpend), errors.Is(err, ErrNoReseller):
		httputil.WriteUnprocessable(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("commission operation failed")
		httputil.WriteInternalError(w)
	}
}

func actorName(r *http.Request) string {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.Token == nil {
		return "admin"
	}
	return "token:" + authCtx.Token.Name
}
