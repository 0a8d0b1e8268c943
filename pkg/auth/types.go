package auth

import (
	"errors"
	"time"
)

// Scope represents API token scopes
type Scope string

const (
	ScopeStorefrontWrite  Scope = "storefront:write"
	ScopeOrdersWrite      Scope = "orders:write"
	ScopeSubscriptionSync Scope = "subscription:sync"
	ScopeCommissionAdmin  Scope = "commission:admin"
	ScopeAll              Scope = "*" // All permissions (for admin)
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenFormat  = errors.New("malformed token")
)

// APIToken represents an API token. ResellerID is nil for operator tokens.
type APIToken struct {
	ID         string     `json:"id"`
	TokenHash  string     `json:"-"` // Never expose hash
	Name       string     `json:"name"`
	ResellerID *string    `json:"reseller_id,omitempty"`
	Scopes     []Scope    `json:"scopes"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// AuthContext holds the authenticated caller
type AuthContext struct {
	Token      *APIToken
	ResellerID string
	Scopes     []Scope
}

// HasScope checks if the context has a specific scope
func (ac *AuthContext) HasScope(scope Scope) bool {
	for _, s := range ac.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller holds the wildcard scope
func (ac *AuthContext) IsAdmin() bool {
	for _, s := range ac.Scopes {
		if s == ScopeAll {
			return true
		}
	}
	return false
}

// CanActFor reports whether the caller may act on the given reseller:
// the reseller's own token or an operator token.
func (ac *AuthContext) CanActFor(resellerID string) bool {
	if ac == nil {
		return false
	}
	if ac.IsAdmin() {
		return true
	}
	return ac.ResellerID != "" && ac.ResellerID == resellerID
}
