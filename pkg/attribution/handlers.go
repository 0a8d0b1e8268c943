package attribution

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// Handlers provides the page view beacon endpoint
type Handlers struct {
	tracker *Tracker
}

// NewHandlers creates attribution handlers
func NewHandlers(tracker *Tracker) *Handlers {
	return &Handlers{tracker: tracker}
}

// RegisterRoutes registers the beacon route. The tenant middleware must run
// first.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/track", h.track).Methods(http.MethodPost)
}

type trackRequest struct {
	PagePath  string `json:"pagePath"`
	SessionID string `json:"sessionId"`
	Referrer  string `json:"referrer,omitempty"`
}

type trackResponse struct {
	Tracked bool `json:"tracked"`
}

func (h *Handlers) track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Referrer == "" {
		req.Referrer = r.Referer()
	}

	tc, _ := tenant.FromContext(r.Context())
	tracked, err := h.tracker.RecordView(r.Context(), tc, req.PagePath, req.Referrer, req.SessionID)
	switch {
	case errors.Is(err, ErrInvalidView):
		httputil.WriteValidationError(w, err.Error())
		return
	case errors.Is(err, ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		httputil.WriteTooManyRequests(w, "too many page views")
		return
	case errors.Is(err, ErrLimiterUnavailable):
		httputil.WriteServiceUnavailable(w, "tracking temporarily unavailable")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("page view insert failed")
		httputil.WriteInternalError(w)
		return
	}

	_ = httputil.WriteSuccess(w, trackResponse{Tracked: tracked})
}
