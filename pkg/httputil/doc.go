// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "invalid slug")
//	httputil.WriteTooManyRequests(w, "tracking rate limit exceeded")
//
// Every JSON error body has the shape {"error": "..."}. WriteInternalError never
// exposes the underlying error.
//
// # Request Helpers
//
//	var req TrackRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//
// ParseJSON rejects unknown fields so clients cannot smuggle identifiers such
// as a reseller id into public endpoints.
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
