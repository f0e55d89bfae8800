package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/commercedesk/backoffice/internal/events"
	"github.com/commercedesk/backoffice/internal/gateway"
	"github.com/commercedesk/backoffice/internal/reconcile"
)

// ReconcileDeps carries what the reconcile endpoint needs. RuntimeURL is the
// durable-execution runtime; when set, requests are proxied there so runs for
// the same id are serialized by the keyed virtual object. When empty the
// engine runs in-process.
type ReconcileDeps struct {
	Engine     *reconcile.Engine
	RuntimeURL string
	Producer   *events.Producer
	Topic      string
}

// RegisterReconcileRoutes wires the reconciliation endpoint into the mux.
func RegisterReconcileRoutes(mux *http.ServeMux, deps ReconcileDeps) {
	mux.Handle("/api/reconcile", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleReconcile(deps, w, r)
	}), "reconcile"))
}

func handleReconcile(deps ReconcileDeps, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	in, err := parseReconcileInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	var res *reconcile.Result
	if deps.RuntimeURL != "" {
		res, err = invokeViaRuntime(deps.RuntimeURL, in)
	} else {
		res, err = deps.Engine.Run(r.Context(), in)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, reconcile.ErrMissingID) {
			status = http.StatusBadRequest
		}
		if errors.Is(err, gateway.ErrNotConfigured) {
			writeJSON(w, status, map[string]any{"error": "payment gateway not configured"})
			return
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}

	emitReconciled(r.Context(), deps, res)
	writeJSON(w, http.StatusOK, res)
}

// parseReconcileInput accepts the id as ?id= or the legacy ?session_id=, and
// for POSTs also from a JSON body. Query values win over body values.
func parseReconcileInput(r *http.Request) (reconcile.Input, error) {
	var in reconcile.Input
	if r.Method == http.MethodPost && r.Body != nil {
		var body struct {
			ID          string `json:"id"`
			SessionID   string `json:"session_id"`
			AutoFulfill bool   `json:"autoFulfill"`
		}
		// An empty or non-JSON body is fine as long as the query has the id.
		_ = json.NewDecoder(r.Body).Decode(&body)
		in.ID = firstNonEmpty(body.ID, body.SessionID)
		in.AutoFulfill = body.AutoFulfill
	}

	q := r.URL.Query()
	if id := firstNonEmpty(q.Get("id"), q.Get("session_id")); id != "" {
		in.ID = id
	}
	if raw := q.Get("autoFulfill"); raw != "" {
		in.AutoFulfill = raw == "1" || strings.EqualFold(raw, "true")
	}

	if strings.TrimSpace(in.ID) == "" {
		return in, errors.New("id or session_id is required")
	}
	in.ID = strings.TrimSpace(in.ID)
	return in, nil
}

// invokeViaRuntime calls the keyed virtual object through the runtime's HTTP
// ingress, which serializes concurrent runs for the same id.
func invokeViaRuntime(runtimeURL string, in reconcile.Input) (*reconcile.Result, error) {
	endpoint := fmt.Sprintf("%s/recon.sv1.ReconcileService/%s/Reconcile",
		strings.TrimRight(runtimeURL, "/"), url.PathEscape(in.ID))
	b, _ := json.Marshal(in)
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("reach runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		if detail.Message != "" {
			return nil, errors.New(detail.Message)
		}
		return nil, fmt.Errorf("runtime status %d", resp.StatusCode)
	}
	var res reconcile.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode runtime response: %w", err)
	}
	return &res, nil
}

// emitReconciled publishes the run outcome for downstream consumers.
// Best-effort only; reconciliation already succeeded.
func emitReconciled(ctx context.Context, deps ReconcileDeps, res *reconcile.Result) {
	if deps.Producer == nil || res == nil {
		return
	}
	evt := events.Envelope{
		EventType:    "OrderReconciled",
		EventVersion: "v1",
		AggregateID:  res.ID,
		Data: map[string]any{
			"orderId":       res.OrderID,
			"invoiceId":     res.InvoiceID,
			"paymentStatus": res.PaymentStatus,
			"updated":       res.Updated,
			"fulfillCalled": res.FulfillCalled,
			"degradedSteps": len(res.Report.Degraded),
		},
	}
	if err := deps.Producer.Publish(ctx, deps.Topic, res.ID, evt); err != nil {
		// Worth a line in the logs but never a failed request.
		logWarn("failed to publish OrderReconciled for %s: %v", res.ID, err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
