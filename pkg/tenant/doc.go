// Package tenant resolves each request to a reseller ("guide") or to the
// official storefront.
//
// A visitor is bound to a reseller by GET /p/{slug}, which sets the signed
// wl_guide cookie and redirects home. On every later request Middleware
// calls Resolver.Resolve with the host and cookies and stores the resulting
// Context on the request context:
//
//	tc, _ := tenant.FromContext(r.Context())
//	if tc.IsWhiteLabel() { ... }
//
// Resolution never fails. A foreign host, a missing or tampered cookie, an
// unknown slug, a lookup error, or a reseller that is not approved with an
// active subscription all yield the official context built from
// configuration.
package tenant
