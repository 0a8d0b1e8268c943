package tenant

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// DefaultCookieName is the tenant binding cookie
const DefaultCookieName = "wl_guide"

var ErrBadCookie = errors.New("invalid tenant cookie")

// CookieSigner produces and verifies "slug.signature" cookie values where
// signature is base64url(HMAC-SHA256(secret, slug)).
type CookieSigner struct {
	secret []byte
	name   string
	maxAge time.Duration
	secure bool
}

// NewCookieSigner creates a signer. The secret must be at least 32 bytes.
func NewCookieSigner(secret []byte, name string, maxAge time.Duration, secure bool) (*CookieSigner, error) {
	if len(secret) < 32 {
		return nil, errors.New("cookie secret must be at least 32 bytes")
	}
	if name == "" {
		name = DefaultCookieName
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	return &CookieSigner{secret: secret, name: name, maxAge: maxAge, secure: secure}, nil
}

// Name returns the cookie name
func (s *CookieSigner) Name() string {
	return s.name
}

func (s *CookieSigner) sign(slug string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(slug))
	return mac.Sum(nil)
}

// Value returns the signed cookie value for an already validated slug
func (s *CookieSigner) Value(slug string) string {
	return slug + "." + base64.RawURLEncoding.EncodeToString(s.sign(slug))
}

// Verify checks the signature and re-validates the slug format
func (s *CookieSigner) Verify(value string) (string, error) {
	slug, sig, ok := strings.Cut(value, ".")
	if !ok {
		return "", ErrBadCookie
	}
	if err := resellers.ValidateSlug(slug); err != nil {
		return "", ErrBadCookie
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrBadCookie
	}
	if !hmac.Equal(got, s.sign(slug)) {
		return "", ErrBadCookie
	}
	return slug, nil
}

// Cookie builds the binding cookie
func (s *CookieSigner) Cookie(slug string) *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Value:    s.Value(slug),
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
