package tenant

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSigner(t *testing.T) *CookieSigner {
	t.Helper()
	s, err := NewCookieSigner(testSecret, "", 0, true)
	require.NoError(t, err)
	return s
}

func TestNewCookieSigner_ShortSecret(t *testing.T) {
	_, err := NewCookieSigner([]byte("short"), "", 0, false)
	assert.Error(t, err)
}

func TestCookieSigner_RoundTrip(t *testing.T) {
	s := newTestSigner(t)
	for _, slug := range []string{"golf-master-88", "abc", strings.Repeat("z", 50)} {
		got, err := s.Verify(s.Value(slug))
		require.NoError(t, err)
		assert.Equal(t, slug, got)
	}
}

func TestCookieSigner_RejectsTampering(t *testing.T) {
	s := newTestSigner(t)
	valid := s.Value("golf-master-88")
	_, sig, _ := strings.Cut(valid, ".")

	other, err := NewCookieSigner([]byte("ffffffffffffffffffffffffffffffff"), "", 0, false)
	require.NoError(t, err)

	tests := map[string]string{
		"unsigned slug":  "golf-master-88",
		"swapped slug":   "another-guide." + sig,
		"truncated sig":  valid[:len(valid)-2],
		"garbage sig":    "golf-master-88.!!!",
		"foreign secret": other.Value("golf-master-88"),
		"malformed slug": "DROP TABLE." + sig,
		"path traversal": "../admin." + sig,
		"empty":          "",
		"only separator": ".",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(value)
			assert.ErrorIs(t, err, ErrBadCookie)
		})
	}
}

func TestCookieSigner_Cookie(t *testing.T) {
	s := newTestSigner(t)
	c := s.Cookie("golf-master-88")

	assert.Equal(t, DefaultCookieName, c.Name)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), c.MaxAge)
}
