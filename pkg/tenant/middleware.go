package tenant

import (
	"net/http"

	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/observability"
)

// Middleware resolves the tenant once per request and stores it on the
// request context.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := resolver.Resolve(r.Context(), httputil.RequestHost(r), r.Cookies())

			ctx := WithContext(r.Context(), tc)
			if tc.IsWhiteLabel() {
				ctx = observability.WithResellerID(ctx, tc.ResellerID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
