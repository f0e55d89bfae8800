package api

import (
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/commercedesk/backoffice/internal/reconcile"
	"github.com/commercedesk/backoffice/internal/store"
)

const listRecentOrders = `*[_type == "order"] | order(createdAt desc) [0...50]`

const getOrderByIDOrSession = `*[_type == "order" && (_id == $id || sessionId == $id)][0]`

// RegisterOrdersRoutes wires read-only order endpoints into the mux, backed
// by the document store.
func RegisterOrdersRoutes(mux *http.ServeMux, st store.Store) {
	mux.Handle("/api/orders", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}
		handleOrdersList(st, w, r)
	}), "orders-list"))

	mux.Handle("/api/orders/", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}
		handleOrderGet(st, w, r)
	}), "orders"))
}

func handleOrdersList(st store.Store, w http.ResponseWriter, r *http.Request) {
	var orders []reconcile.OrderDoc
	if err := st.QueryAll(r.Context(), listRecentOrders, nil, &orders); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// handleOrderGet looks an order up by document id or by session id, which is
// what dashboard links carry.
func handleOrderGet(st store.Store, w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "order id required"})
		return
	}
	var order reconcile.OrderDoc
	err := st.QueryOne(r.Context(), getOrderByIDOrSession, map[string]any{"id": id}, &order)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}
