// Package middleware provides HTTP middleware for bearer token
// authentication and fixed window rate limiting.
//
// Limiter is the shared contract for counting events per key. RateLimiter
// keeps counters in process memory and suits single-instance deployments;
// DistributedRateLimiter keeps them in Redis so every instance sees the same
// window. The attribution tracker uses a Limiter keyed by session id, and
// RateLimitMiddleware applies one per client IP on public routes.
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient,
//		middleware.PageViewRateLimitConfig(), "guidepost:views")
//	allowed, err := limiter.Allow(ctx, sessionID)
//
// AuthMiddleware resolves "Authorization: Bearer gp_..." through an
// auth.Validator and stores *auth.AuthContext on the request context.
// RequireScope and RequireReseller gate individual routes.
package middleware
