package commission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/auth"
	"github.com/platinummonkey/guidepost/pkg/contextkeys"
	"github.com/platinummonkey/guidepost/pkg/orders"
)

func newTestRouter(e *Engine) *mux.Router {
	h := NewHandlers(e)
	router := mux.NewRouter()
	h.RegisterPublicRoutes(router)
	h.RegisterAdminRoutes(router)
	h.RegisterResellerRoutes(router)
	return router
}

func TestHandlers_Tiers(t *testing.T) {
	router := newTestRouter(newTestEngine(newMemStore(), newMemResellers(), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/commission-tiers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var table TierTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.Equal(t, 2000, table.PartnerRateBPS)
	assert.Len(t, table.Schedule, 3)
}

func TestHandlers_PayoutFlow(t *testing.T) {
	store := newMemStore()
	store.addOrder("o1", "r1", yen(680_000), completedAt)
	e := newTestEngine(store, newMemResellers(growthReseller("r1", nil)), nil)
	_, err := e.Calculate(context.Background(), "o1")
	require.NoError(t, err)

	h := NewHandlers(e)
	h.now = func() time.Time { return completedAt.Add(15 * 24 * time.Hour) }
	router := mux.NewRouter()
	h.RegisterAdminRoutes(router)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"not yet released", "/admin/commissions/o1/payout", `{"payoutReference":"bank-1"}`, http.StatusConflict},
		{"missing reference", "/admin/commissions/o1/payout", `{}`, http.StatusBadRequest},
		{"unknown order", "/admin/commissions/nope/payout", `{"payoutReference":"bank-1"}`, http.StatusNotFound},
		{"release", "/admin/commissions/release", `{}`, http.StatusOK},
		{"paid", "/admin/commissions/o1/payout", `{"payoutReference":"bank-1"}`, http.StatusOK},
		{"paid twice", "/admin/commissions/o1/payout", `{"payoutReference":"bank-2"}`, http.StatusConflict},
		{"void paid", "/admin/commissions/o1/void", `{"reason":"refund"}`, http.StatusConflict},
		{"void without reason", "/admin/commissions/o1/void", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlers_BalanceRequiresReseller(t *testing.T) {
	router := newTestRouter(newTestEngine(newMemStore(), newMemResellers(), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reseller/commissions/balance", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/reseller/commissions/balance", nil)
	req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{ResellerID: "r1"}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var b Balance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "r1", b.ResellerID)
}

func TestHandlers_SetSpendOnFlaggedOrder(t *testing.T) {
	store := newMemStore()
	store.addOrder("o1", "r1", nil, completedAt)
	e := newTestEngine(store, newMemResellers(growthReseller("r1", nil)), nil)
	router := newTestRouter(e)

	post := func(path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return rec
	}

	rec := post("/admin/commissions/o1/calculate", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = post("/admin/commissions/o1/spend", `{"spendAmount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = post("/admin/commissions/o1/spend", `{"spendAmount":680000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var o orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, orders.CommissionCalculated, o.Commission.Status)
	assert.Equal(t, int64(68_000), *o.Commission.Amount)

	rec = post("/admin/commissions/o1/spend", `{"spendAmount":700000}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = post("/admin/commissions/nope/spend", `{"spendAmount":700000}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
