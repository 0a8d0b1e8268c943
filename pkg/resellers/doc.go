// Package resellers is the registry of guide partners: identity, branding,
// contact channels, approval state, cached subscription state and the
// commission tier code.
//
// Visibility is decided in exactly one place. CanServe (approved and
// subscription active) gates both storefront configuration and page view
// attribution; no other package re-derives it from raw fields.
//
// Slugs are validated against a strict allow-list before they are used in a
// cookie or a query.
package resellers
