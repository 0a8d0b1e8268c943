// Package contextkeys provides centralized context key definitions
//
// All request-scoped values shared between packages are keyed here so that
// producers and consumers agree on the key and the stored type.
//
//	ctx = contextkeys.WithTenant(ctx, tc)
//	tc, ok := ctx.Value(contextkeys.TenantKey).(tenant.Context)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// TenantKey contains tenant.Context
	// Set by: tenant.Middleware (pkg/tenant/middleware.go)
	// Required by: storefront pages, /track, order attribution
	// Type: tenant.Context (value, not pointer)
	TenantKey Key = "tenant_context"

	// AuthKey contains *auth.AuthContext
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: reseller, orders and admin endpoints
	// Type: *auth.AuthContext
	AuthKey Key = "auth_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: response headers, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// RequestStartTimeKey contains request start timestamp
	// Set by: httputil.LoggingMiddleware
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// WithTenant adds the resolved tenant to the context
func WithTenant(ctx context.Context, tenantCtx interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, tenantCtx)
}

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
