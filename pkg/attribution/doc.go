// Package attribution records storefront page views and binds orders to the
// reseller whose storefront produced them.
package attribution
