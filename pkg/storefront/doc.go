// Package storefront holds the module and template catalog, each
// reseller's storefront configuration, and the page renderer.
//
// Module keys are snake_case in the catalog and kebab-case in URLs;
// CatalogKey and URLKey translate between the two. A white-label page is
// drawn only when the reseller can be served; otherwise the same page is
// drawn with official branding.
package storefront
