package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/guidepost/pkg/auth"
	"github.com/platinummonkey/guidepost/pkg/contextkeys"
	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/observability"
)

// AuthMiddleware provides bearer token authentication
type AuthMiddleware struct {
	validator auth.Validator
	optional  bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(validator auth.Validator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		optional:  optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || token == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		apiToken, err := m.validator.ValidateToken(r.Context(), token)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Debug("token rejected")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		authCtx := &auth.AuthContext{
			Token:  apiToken,
			Scopes: apiToken.Scopes,
		}
		ctx := r.Context()
		if apiToken.ResellerID != nil {
			authCtx.ResellerID = *apiToken.ResellerID
			ctx = observability.WithResellerID(ctx, authCtx.ResellerID)
		}

		ctx = contextkeys.WithAuth(ctx, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireScope creates middleware that checks for a specific scope
func RequireScope(scope auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !authCtx.HasScope(scope) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireReseller rejects operator tokens on reseller-only endpoints
func RequireReseller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if authCtx.ResellerID == "" {
			httputil.WriteForbidden(w, "reseller token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
