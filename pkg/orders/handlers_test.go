package orders

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/tenant"
)

type memoryStore struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: make(map[string]*Order)}
}

func (m *memoryStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Status == "" {
		o.Status = StatusLead
	}
	o.ID = uuid.NewString()
	o.Currency = Currency
	o.Commission.Status = CommissionPending
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memoryStore) BindReseller(_ context.Context, orderID, resellerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	if o.ResellerID != nil && *o.ResellerID != resellerID {
		return ErrAlreadyAttributed
	}
	o.ResellerID = &resellerID
	return nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, id string, to Status, spend *int64, at time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}
	o.Status = to
	if spend != nil {
		o.SpendAmount = spend
	}
	if to == StatusCompleted {
		o.CompletedAt = &at
	}
	cp := *o
	return &cp, nil
}

type recordingAttributor struct {
	store *memoryStore
}

func (a recordingAttributor) Attribute(ctx context.Context, orderID string, tc tenant.Context) (bool, error) {
	if !tc.IsWhiteLabel() {
		return false, nil
	}
	return true, a.store.BindReseller(ctx, orderID, tc.ResellerID)
}

type recordingHooks struct {
	completed []string
	cancelled []string
	err       error
}

func (h *recordingHooks) OnCompleted(_ context.Context, id string) error {
	h.completed = append(h.completed, id)
	return h.err
}

func (h *recordingHooks) OnCancelled(_ context.Context, id, _ string) error {
	h.cancelled = append(h.cancelled, id)
	return h.err
}

func newTestRouter(store *memoryStore, hooks *recordingHooks, tc *tenant.Context) *mux.Router {
	router := mux.NewRouter()
	if tc != nil {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(tenant.WithContext(r.Context(), *tc)))
			})
		})
	}
	NewHandlers(store, recordingAttributor{store: store}, hooks).RegisterRoutes(router)
	return router
}

func TestCreateOrder_AttributesToTenant(t *testing.T) {
	store := newMemoryStore()
	tc := tenant.Context{Mode: tenant.ModeWhiteLabel, ResellerID: "r1", Slug: "golf-master-88"}
	router := newTestRouter(store, &recordingHooks{}, &tc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"customerRef":"cust-1","orderType":"medical_package"}`)))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"attributed":true`)
	assert.Contains(t, w.Body.String(), `"reseller_id":"r1"`)
}

func TestCreateOrder_OfficialTenantNotAttributed(t *testing.T) {
	store := newMemoryStore()
	tc := tenant.Context{Mode: tenant.ModeOfficial}
	router := newTestRouter(store, &recordingHooks{}, &tc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"customerRef":"cust-1","orderType":"medical_package"}`)))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"attributed":false`)
}

func TestCreateOrder_Validation(t *testing.T) {
	router := newTestRouter(newMemoryStore(), &recordingHooks{}, nil)

	for _, body := range []string{`{"orderType":"x"}`, `{"customerRef":"c"}`, `{"customerRef":"c","orderType":"x","extra":1}`, `not json`} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestUpdateStatus_DrivesCommissionHooks(t *testing.T) {
	store := newMemoryStore()
	hooks := &recordingHooks{}
	router := newTestRouter(store, hooks, nil)

	o := &Order{CustomerRef: "cust-1", OrderType: "medical_package"}
	require.NoError(t, store.Create(context.Background(), o))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/"+o.ID+"/status",
		strings.NewReader(`{"status":"completed","spendAmount":680000}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{o.ID}, hooks.completed)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/"+o.ID+"/status",
		strings.NewReader(`{"status":"completed"}`)))
	assert.Equal(t, http.StatusConflict, w.Code, "completion is not re-applied")
	assert.Len(t, hooks.completed, 1)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/"+o.ID+"/status",
		strings.NewReader(`{"status":"cancelled","reason":"refund"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{o.ID}, hooks.cancelled)
}

func TestUpdateStatus_HookFailureStillCommitsStatus(t *testing.T) {
	store := newMemoryStore()
	hooks := &recordingHooks{err: errors.New("ledger down")}
	router := newTestRouter(store, hooks, nil)

	o := &Order{CustomerRef: "cust-1", OrderType: "medical_package"}
	require.NoError(t, store.Create(context.Background(), o))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/"+o.ID+"/status",
		strings.NewReader(`{"status":"completed","spendAmount":1000}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestUpdateStatus_UnknownOrderAndStatus(t *testing.T) {
	router := newTestRouter(newMemoryStore(), &recordingHooks{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/status",
		strings.NewReader(`{"status":"booked"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/status",
		strings.NewReader(`{"status":"refunded"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
