package subscription

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/middleware"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

const maxWebhookBytes = 64 << 10

// Reconciler is the sync operation the handlers drive
type Reconciler interface {
	Sync(ctx context.Context, resellerID string, trigger Trigger) (*Result, error)
}

// WebhookConfig authenticates provider callbacks
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

// Handlers serves manual sync and provider webhooks
type Handlers struct {
	syncer  Reconciler
	events  EventStore
	webhook WebhookConfig
	now     func() time.Time
}

// NewHandlers creates subscription handlers
func NewHandlers(syncer Reconciler, events EventStore, webhook WebhookConfig) *Handlers {
	return &Handlers{syncer: syncer, events: events, webhook: webhook, now: time.Now}
}

// RegisterRoutes registers POST /subscription/sync. The caller applies
// authentication and the subscription:sync scope.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/subscription/sync", h.sync).Methods(http.MethodPost)
}

// RegisterWebhookRoutes registers the unauthenticated provider callback
func (h *Handlers) RegisterWebhookRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/payment", h.paymentWebhook).Methods(http.MethodPost)
}

type syncRequest struct {
	ResellerID string `json:"resellerId"`
}

func (h *Handlers) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ResellerID, "resellerId") {
		return
	}
	authCtx := middleware.GetAuthContext(r)
	if !authCtx.CanActFor(req.ResellerID) {
		httputil.WriteForbidden(w, "token may not sync this reseller")
		return
	}

	result, err := h.syncer.Sync(r.Context(), req.ResellerID, TriggerManual)
	switch {
	case err == nil:
		_ = httputil.WriteSuccess(w, result)
	case errors.Is(err, resellers.ErrNotFound):
		httputil.WriteNotFoundError(w, "reseller not found")
	case errors.Is(err, ErrProviderUnavailable):
		httputil.WriteBadGateway(w, "payment provider unavailable, retry later")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("subscription sync failed")
		httputil.WriteInternalError(w)
	}
}

type webhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
	Ignored   bool `json:"ignored,omitempty"`
}

// paymentWebhook answers 2xx for anything it will never be able to process
// and 5xx only when a redelivery could succeed
func (h *Handlers) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read body")
		return
	}
	if len(payload) > maxWebhookBytes {
		httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	if err := VerifySignature(payload, r.Header.Get(SignatureHeader), h.webhook.Secret, h.webhook.Tolerance, h.now()); err != nil {
		logger.WithError(err).Warn("rejected payment webhook")
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	evt, err := ParseEvent(payload)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	logger = logger.WithFields(map[string]interface{}{"event_id": evt.ID, "event_type": evt.Type})

	processed, err := h.events.Begin(ctx, evt)
	if err != nil {
		logger.WithError(err).Error("failed to record payment webhook")
		httputil.WriteServiceUnavailable(w, "try again")
		return
	}
	if processed {
		_ = httputil.WriteSuccess(w, webhookResponse{Received: true, Duplicate: true})
		return
	}

	if !triggersSync(evt.Type) || evt.Data.ResellerID == "" {
		h.finish(ctx, logger, evt.ID, nil)
		_ = httputil.WriteSuccess(w, webhookResponse{Received: true, Ignored: true})
		return
	}

	_, err = h.syncer.Sync(ctx, evt.Data.ResellerID, TriggerWebhook)
	switch {
	case err == nil:
		h.finish(ctx, logger, evt.ID, nil)
		_ = httputil.WriteSuccess(w, webhookResponse{Received: true})
	case errors.Is(err, resellers.ErrNotFound):
		logger.WithField("reseller_id", evt.Data.ResellerID).Warn("payment webhook for unknown reseller")
		h.finish(ctx, logger, evt.ID, nil)
		_ = httputil.WriteSuccess(w, webhookResponse{Received: true, Ignored: true})
	default:
		h.finish(ctx, logger, evt.ID, err)
		httputil.WriteServiceUnavailable(w, "sync failed, redeliver")
	}
}

func (h *Handlers) finish(ctx context.Context, logger *observability.Logger, eventID string, procErr error) {
	if err := h.events.Finish(ctx, eventID, procErr); err != nil {
		logger.WithError(err).Warn("failed to finish payment webhook")
	}
}
