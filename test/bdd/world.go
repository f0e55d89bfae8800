package bdd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/commercedesk/backoffice/internal/gateway"
	"github.com/commercedesk/backoffice/internal/reconcile"
	"github.com/commercedesk/backoffice/internal/store"
)

// ReconcileWorld holds per-scenario state: an in-memory gateway and content
// store, plus the last run's outcome.
type ReconcileWorld struct {
	t *testing.T

	gw         *memGateway
	docs       *memStore
	fulfiller  *memFulfiller
	gatewayOff bool

	res    *reconcile.Result
	runErr error
}

func NewReconcileWorld(t *testing.T) *ReconcileWorld {
	w := &ReconcileWorld{t: t}
	w.resetScenarioState()
	return w
}

func (w *ReconcileWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.resetScenarioState()
		return ctx, nil
	})

	w.registerReconcileSteps(sc)
}

func (w *ReconcileWorld) resetScenarioState() {
	w.gw = newMemGateway()
	w.docs = newMemStore()
	w.fulfiller = &memFulfiller{}
	w.gatewayOff = false
	w.res = nil
	w.runErr = nil
}

func (w *ReconcileWorld) run(id string, autoFulfill bool) {
	var gwClient gateway.Client
	if !w.gatewayOff {
		gwClient = w.gw
	}
	engine := reconcile.New(gwClient, w.docs, w.fulfiller, nil)
	w.res, w.runErr = engine.Run(context.Background(), reconcile.Input{ID: id, AutoFulfill: autoFulfill})
}

type memGateway struct {
	sessions  map[string]*gateway.Session
	lineItems map[string][]gateway.LineItem
}

func newMemGateway() *memGateway {
	return &memGateway{
		sessions:  map[string]*gateway.Session{},
		lineItems: map[string][]gateway.LineItem{},
	}
}

func (g *memGateway) RetrieveSession(ctx context.Context, id string) (*gateway.Session, error) {
	s, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session %s", id)
	}
	return s, nil
}

func (g *memGateway) RetrievePaymentIntent(ctx context.Context, id string) (*gateway.PaymentIntent, error) {
	return nil, fmt.Errorf("no such intent %s", id)
}

func (g *memGateway) ListLineItems(ctx context.Context, sessionID string) ([]gateway.LineItem, error) {
	return g.lineItems[sessionID], nil
}

// memStore answers the engine's queries from document maps. Patches only
// land on ids in the exists set, which lets scenarios model the
// draft/published duality of externally-owned invoices.
type memStore struct {
	docs    map[string]map[string]any // id -> doc
	exists  map[string]bool
	created []string
	patched map[string][]map[string]any
}

func newMemStore() *memStore {
	return &memStore{
		docs:    map[string]map[string]any{},
		exists:  map[string]bool{},
		patched: map[string][]map[string]any{},
	}
}

func (s *memStore) QueryOne(ctx context.Context, query string, params map[string]any, out any) error {
	switch {
	case strings.Contains(query, `_type == "order"`):
		sessionID, _ := params["sessionId"].(string)
		for id, doc := range s.docs {
			if doc["_type"] == "order" && doc["sessionId"] == sessionID {
				invoiceRef := ""
				if ref, ok := doc["invoice"].(map[string]any); ok {
					invoiceRef, _ = ref["_ref"].(string)
				}
				return roundTrip(map[string]any{"_id": id, "invoiceRef": invoiceRef}, out)
			}
		}
		return store.ErrNotFound
	case strings.Contains(query, `_type == "customer"`):
		email, _ := params["email"].(string)
		for id, doc := range s.docs {
			if doc["_type"] == "customer" && strings.EqualFold(toStr(doc["email"]), email) {
				return roundTrip(map[string]any{"_id": id, "fullName": doc["fullName"], "email": doc["email"]}, out)
			}
		}
		return store.ErrNotFound
	}
	return store.ErrNotFound
}

func (s *memStore) QueryAll(ctx context.Context, query string, params map[string]any, out any) error {
	if strings.Contains(query, `_type == "product"`) {
		var products []map[string]any
		for id, doc := range s.docs {
			if doc["_type"] == "product" {
				products = append(products, map[string]any{"_id": id, "title": doc["title"], "sku": doc["sku"]})
			}
		}
		return roundTrip(products, out)
	}
	return nil
}

func (s *memStore) Create(ctx context.Context, doc any) (string, error) {
	m := map[string]any{}
	if err := roundTrip(doc, &m); err != nil {
		return "", err
	}
	id := toStr(m["_id"])
	if id == "" {
		id = fmt.Sprintf("doc-%d", len(s.docs))
	}
	s.docs[id] = m
	s.exists[id] = true
	s.created = append(s.created, id)
	return id, nil
}

func (s *memStore) Patch(ctx context.Context, id string, fields map[string]any) error {
	if !s.exists[id] {
		return fmt.Errorf("document %s not found", id)
	}
	s.patched[id] = append(s.patched[id], fields)
	doc := s.docs[id]
	if doc == nil {
		doc = map[string]any{}
		s.docs[id] = doc
	}
	m := map[string]any{}
	if err := roundTrip(fields, &m); err != nil {
		return err
	}
	for k, v := range m {
		doc[k] = v
	}
	return nil
}

func (s *memStore) PatchFirstSuccessful(ctx context.Context, ids []string, fields map[string]any) (string, error) {
	var lastErr error
	for _, id := range ids {
		if err := s.Patch(ctx, id, fields); err != nil {
			lastErr = err
			continue
		}
		return id, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate ids")
	}
	return "", lastErr
}

func (s *memStore) countOfType(docType string) int {
	n := 0
	for _, id := range s.created {
		if s.docs[id]["_type"] == docType {
			n++
		}
	}
	return n
}

func (s *memStore) firstOfType(docType string) map[string]any {
	for _, id := range s.created {
		if s.docs[id]["_type"] == docType {
			return s.docs[id]
		}
	}
	return nil
}

type memFulfiller struct {
	orderIDs []string
}

func (f *memFulfiller) FulfillOrder(ctx context.Context, orderID string) error {
	f.orderIDs = append(f.orderIDs, orderID)
	return nil
}

func roundTrip(v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func toStr(v any) string {
	s, _ := v.(string)
	return s
}
