package tenant

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/resellers"
)

type stubLookup struct {
	bySlug map[string]*resellers.Reseller
	err    error
}

func (s *stubLookup) Get(_ context.Context, id string) (*resellers.Reseller, error) {
	for _, r := range s.bySlug {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, resellers.ErrNotFound
}

func (s *stubLookup) GetBySlug(_ context.Context, slug string) (*resellers.Reseller, error) {
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.bySlug[slug]; ok {
		return r, nil
	}
	return nil, resellers.ErrNotFound
}

var officialBrand = resellers.Brand{Name: "Official Clinic Tours", Color: "#003366"}

func activeReseller(id, slug string) *resellers.Reseller {
	return &resellers.Reseller{
		ID:           id,
		Slug:         slug,
		Brand:        resellers.Brand{Name: "Golf Master", Color: "#0f5132"},
		Contact:      resellers.Contact{LineID: "golfmaster"},
		Status:       resellers.StatusApproved,
		Subscription: resellers.Subscription{Status: resellers.SubscriptionActive},
	}
}

func newTestResolver(t *testing.T, lookup resellers.Lookup) (*Resolver, *CookieSigner) {
	t.Helper()
	signer := newTestSigner(t)
	r, err := NewResolver(ResolverConfig{
		WhiteLabelHostPattern: `^guide\.`,
		Official:              Official(officialBrand, resellers.Contact{Email: "info@example.com"}),
	}, lookup, signer, nil)
	require.NoError(t, err)
	return r, signer
}

func TestResolver_Resolve(t *testing.T) {
	suspended := activeReseller("r2", "suspended-guide")
	suspended.Status = resellers.StatusSuspended
	lapsed := activeReseller("r3", "lapsed-guide")
	past := time.Now().Add(-time.Hour)
	lapsed.Subscription.PeriodEnd = &past

	lookup := &stubLookup{bySlug: map[string]*resellers.Reseller{
		"golf-master-88":  activeReseller("r1", "golf-master-88"),
		"suspended-guide": suspended,
		"lapsed-guide":    lapsed,
	}}
	resolver, signer := newTestResolver(t, lookup)
	ctx := context.Background()

	cookie := func(slug string) []*http.Cookie {
		return []*http.Cookie{{Name: DefaultCookieName, Value: signer.Value(slug)}}
	}

	tests := []struct {
		name     string
		host     string
		cookies  []*http.Cookie
		wantMode Mode
		wantID   string
	}{
		{"bound reseller", "guide.example.jp", cookie("golf-master-88"), ModeWhiteLabel, "r1"},
		{"official host ignores cookie", "www.example.jp", cookie("golf-master-88"), ModeOfficial, ""},
		{"no cookie", "guide.example.jp", nil, ModeOfficial, ""},
		{"tampered cookie", "guide.example.jp", []*http.Cookie{{Name: DefaultCookieName, Value: "golf-master-88.AAAA"}}, ModeOfficial, ""},
		{"unknown slug", "guide.example.jp", cookie("nobody-here"), ModeOfficial, ""},
		{"suspended reseller", "guide.example.jp", cookie("suspended-guide"), ModeOfficial, ""},
		{"lapsed subscription", "guide.example.jp", cookie("lapsed-guide"), ModeOfficial, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := resolver.Resolve(ctx, tt.host, tt.cookies)
			assert.Equal(t, tt.wantMode, tc.Mode)
			assert.Equal(t, tt.wantID, tc.ResellerID)
			if tt.wantMode == ModeOfficial {
				assert.Equal(t, officialBrand, tc.Brand)
			} else {
				assert.Equal(t, "Golf Master", tc.Brand.Name)
				assert.Equal(t, "golfmaster", tc.Contact.LineID)
			}
		})
	}
}

func TestResolver_LookupErrorFallsBack(t *testing.T) {
	resolver, signer := newTestResolver(t, &stubLookup{err: errors.New("connection refused")})
	tc := resolver.Resolve(context.Background(), "guide.example.jp",
		[]*http.Cookie{{Name: DefaultCookieName, Value: signer.Value("golf-master-88")}})
	assert.Equal(t, ModeOfficial, tc.Mode)
	assert.Empty(t, tc.ResellerID)
}

func TestNewResolver_BadPattern(t *testing.T) {
	_, err := NewResolver(ResolverConfig{WhiteLabelHostPattern: "("}, &stubLookup{}, newTestSigner(t), nil)
	assert.Error(t, err)
}

func TestNewResolver_EmptyPatternMatchesAllHosts(t *testing.T) {
	lookup := &stubLookup{bySlug: map[string]*resellers.Reseller{"golf-master-88": activeReseller("r1", "golf-master-88")}}
	signer := newTestSigner(t)
	resolver, err := NewResolver(ResolverConfig{}, lookup, signer, nil)
	require.NoError(t, err)

	tc := resolver.Resolve(context.Background(), "localhost",
		[]*http.Cookie{{Name: DefaultCookieName, Value: signer.Value("golf-master-88")}})
	assert.True(t, tc.IsWhiteLabel())
}
