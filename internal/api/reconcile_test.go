package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercedesk/backoffice/internal/gateway"
	"github.com/commercedesk/backoffice/internal/reconcile"
	"github.com/commercedesk/backoffice/internal/store"
)

type stubGateway struct{}

func (stubGateway) RetrieveSession(ctx context.Context, id string) (*gateway.Session, error) {
	if id != "cs_ok" {
		return nil, fmt.Errorf("no such session %s", id)
	}
	return &gateway.Session{ID: "cs_ok", PaymentStatus: "paid", Metadata: map[string]string{}}, nil
}

func (stubGateway) RetrievePaymentIntent(ctx context.Context, id string) (*gateway.PaymentIntent, error) {
	return nil, fmt.Errorf("no such intent %s", id)
}

func (stubGateway) ListLineItems(ctx context.Context, sessionID string) ([]gateway.LineItem, error) {
	return nil, nil
}

type stubStore struct{}

func (stubStore) QueryOne(ctx context.Context, query string, params map[string]any, out any) error {
	return store.ErrNotFound
}
func (stubStore) QueryAll(ctx context.Context, query string, params map[string]any, out any) error {
	return nil
}
func (stubStore) Create(ctx context.Context, doc any) (string, error) { return "order.1", nil }
func (stubStore) Patch(ctx context.Context, id string, fields map[string]any) error {
	return nil
}
func (stubStore) PatchFirstSuccessful(ctx context.Context, ids []string, fields map[string]any) (string, error) {
	return ids[0], nil
}

func newTestMux(engine *reconcile.Engine, runtimeURL string) *http.ServeMux {
	mux := http.NewServeMux()
	RegisterReconcileRoutes(mux, ReconcileDeps{Engine: engine, RuntimeURL: runtimeURL})
	return mux
}

func configuredEngine() *reconcile.Engine {
	return reconcile.New(stubGateway{}, stubStore{}, nil, nil)
}

func TestReconcileMethodNotAllowed(t *testing.T) {
	mux := newTestMux(configuredEngine(), "")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/reconcile?id=cs_ok", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReconcileMissingID(t *testing.T) {
	mux := newTestMux(configuredEngine(), "")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconcile", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcileGatewayUnconfigured(t *testing.T) {
	mux := newTestMux(reconcile.New(nil, stubStore{}, nil, nil), "")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconcile?id=cs_ok", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment gateway not configured")
}

func TestReconcileResolveFailure(t *testing.T) {
	mux := newTestMux(configuredEngine(), "")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconcile?id=cs_gone", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReconcileSuccess(t *testing.T) {
	mux := newTestMux(configuredEngine(), "")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconcile?session_id=cs_ok", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "cs_ok", body["id"])
	assert.Equal(t, "checkout_session", body["type"])
	assert.Equal(t, "order.1", body["orderId"])
	assert.Equal(t, "paid", body["paymentStatus"])
	assert.Equal(t, true, body["updated"])
	assert.Equal(t, false, body["fulfillCalled"])
	_, hasReport := body["report"]
	assert.False(t, hasReport)
}

func TestReconcilePostBodyInput(t *testing.T) {
	mux := newTestMux(configuredEngine(), "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{"session_id":"cs_ok","autoFulfill":true}`))
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReconcileProxiesToRuntime(t *testing.T) {
	runtime := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recon.sv1.ReconcileService/cs_ok/Reconcile", r.URL.Path)
		var in reconcile.Input
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "cs_ok", in.ID)
		assert.True(t, in.AutoFulfill)
		_ = json.NewEncoder(w).Encode(reconcile.Result{OK: true, ID: in.ID, OrderID: "order.7"})
	}))
	defer runtime.Close()

	mux := newTestMux(nil, runtime.URL)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconcile?id=cs_ok&autoFulfill=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "order.7")
}

func TestReconcileRuntimeErrorSurfacesMessage(t *testing.T) {
	runtime := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "resolve cs_ok: boom"})
	}))
	defer runtime.Close()

	mux := newTestMux(nil, runtime.URL)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconcile?id=cs_ok", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "resolve cs_ok")
}

func TestParseAutoFulfillVariants(t *testing.T) {
	for _, raw := range []string{"1", "true", "TRUE"} {
		r := httptest.NewRequest(http.MethodGet, "/api/reconcile?id=cs_ok&autoFulfill="+raw, nil)
		in, err := parseReconcileInput(r)
		require.NoError(t, err)
		assert.True(t, in.AutoFulfill, raw)
	}
	r := httptest.NewRequest(http.MethodGet, "/api/reconcile?id=cs_ok&autoFulfill=0", nil)
	in, err := parseReconcileInput(r)
	require.NoError(t, err)
	assert.False(t, in.AutoFulfill)
}
