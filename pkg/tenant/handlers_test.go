package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/resellers"
)

func TestBind_ThenResolve(t *testing.T) {
	lookup := &stubLookup{bySlug: map[string]*resellers.Reseller{
		"golf-master-88": activeReseller("r1", "golf-master-88"),
	}}
	resolver, signer := newTestResolver(t, lookup)

	router := mux.NewRouter()
	NewHandlers(signer).RegisterRoutes(router)

	var seen Context
	router.Handle("/", Middleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	})))

	bindReq := httptest.NewRequest(http.MethodGet, "http://guide.example.jp/p/golf-master-88", nil)
	bindResp := httptest.NewRecorder()
	router.ServeHTTP(bindResp, bindReq)

	require.Equal(t, http.StatusFound, bindResp.Code)
	assert.Equal(t, "/", bindResp.Header().Get("Location"))
	cookies := bindResp.Result().Cookies()
	require.Len(t, cookies, 1)

	homeReq := httptest.NewRequest(http.MethodGet, "http://guide.example.jp/", nil)
	homeReq.AddCookie(cookies[0])
	router.ServeHTTP(httptest.NewRecorder(), homeReq)

	assert.Equal(t, ModeWhiteLabel, seen.Mode)
	assert.Equal(t, "r1", seen.ResellerID)
}

func TestBind_RejectsInvalidSlug(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers(newTestSigner(t)).RegisterRoutes(router)

	for _, path := range []string{"/p/DROP%20TABLE", "/p/Golf-Master", "/p/ab", "/p/%2E%2E%2Fadmin"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Contains(t, []int{http.StatusFound, http.StatusMovedPermanently, http.StatusNotFound}, w.Code)
			assert.Empty(t, w.Result().Cookies(), "no cookie for invalid slug")
		})
	}
}
