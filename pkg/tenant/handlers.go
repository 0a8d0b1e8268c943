package tenant

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// Handlers serves the tenant binding route
type Handlers struct {
	signer *CookieSigner
}

// NewHandlers creates tenant handlers
func NewHandlers(signer *CookieSigner) *Handlers {
	return &Handlers{signer: signer}
}

// RegisterRoutes registers tenant routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/p/{slug}", h.bind).Methods(http.MethodGet)
}

// bind validates the slug and sets the signed cookie. The reseller is not
// looked up here; an unknown slug simply resolves to official branding later.
func (h *Handlers) bind(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	if err := resellers.ValidateSlug(slug); err != nil {
		observability.FromContext(r.Context()).
			WithField("slug_len", len(slug)).
			Warn("rejected tenant binding")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	http.SetCookie(w, h.signer.Cookie(slug))
	http.Redirect(w, r, "/", http.StatusFound)
}
