// Package auth provides bearer token authentication for reseller dashboards
// and operator tooling.
//
// Tokens have the form gp_<base64url(32 random bytes)> and are stored only as
// SHA256 hashes in api_tokens. A token is bound either to one reseller or to
// no reseller (operator tokens, usually carrying the "*" scope).
//
//	tm := auth.NewTokenManager(db)
//	apiToken, plaintext, err := tm.CreateToken(ctx, "dashboard", &resellerID,
//		[]auth.Scope{auth.ScopeStorefrontWrite, auth.ScopeSubscriptionSync}, nil)
//
// AuthContext is what middleware.AuthMiddleware stores on the request
// context; handlers use HasScope and CanActFor to authorize.
package auth
