package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/commercedesk/backoffice/internal/gateway"
	"github.com/commercedesk/backoffice/internal/store"
)

type fakeGateway struct {
	sessions     map[string]*gateway.Session
	intents      map[string]*gateway.PaymentIntent
	lineItems    map[string][]gateway.LineItem
	sessionErr   error
	intentErr    error
	lineItemsErr error
}

func (f *fakeGateway) RetrieveSession(ctx context.Context, id string) (*gateway.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session %s", id)
	}
	return s, nil
}

func (f *fakeGateway) RetrievePaymentIntent(ctx context.Context, id string) (*gateway.PaymentIntent, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	pi, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such intent %s", id)
	}
	return pi, nil
}

func (f *fakeGateway) ListLineItems(ctx context.Context, sessionID string) ([]gateway.LineItem, error) {
	if f.lineItemsErr != nil {
		return nil, f.lineItemsErr
	}
	return f.lineItems[sessionID], nil
}

type storedOrder struct {
	ID         string
	InvoiceRef string
}

// fakeStore keeps just enough state to answer the queries the engine issues.
type fakeStore struct {
	ordersBySession map[string]*storedOrder
	customers       map[string]CustomerDoc // keyed by lowercased email
	products        []CatalogProduct

	// exists gates patches by id when non-nil, to model the draft/published
	// duality where only one variant of a document is present.
	exists map[string]bool

	created   []map[string]any
	patched   map[string][]map[string]any
	createErr error
	queryErr  error
	patchErr  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ordersBySession: map[string]*storedOrder{},
		customers:       map[string]CustomerDoc{},
		patched:         map[string][]map[string]any{},
		patchErr:        map[string]error{},
	}
}

func (f *fakeStore) QueryOne(ctx context.Context, query string, params map[string]any, out any) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	switch query {
	case findOrderBySession:
		sessionID, _ := params["sessionId"].(string)
		ord, ok := f.ordersBySession[sessionID]
		if !ok {
			return store.ErrNotFound
		}
		return decodeInto(map[string]any{"_id": ord.ID, "invoiceRef": ord.InvoiceRef}, out)
	case findCustomerByEmail:
		email, _ := params["email"].(string)
		c, ok := f.customers[email]
		if !ok {
			return store.ErrNotFound
		}
		return decodeInto(c, out)
	default:
		return store.ErrNotFound
	}
}

func (f *fakeStore) QueryAll(ctx context.Context, query string, params map[string]any, out any) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	if query == findCatalogProducts {
		return decodeInto(f.products, out)
	}
	return nil
}

func (f *fakeStore) Create(ctx context.Context, doc any) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	m := map[string]any{}
	if err := decodeInto(doc, &m); err != nil {
		return "", err
	}
	id, _ := m["_id"].(string)
	if id == "" {
		id = fmt.Sprintf("doc-%d", len(f.created))
	}
	f.created = append(f.created, m)
	if f.exists != nil {
		f.exists[id] = true
	}
	if t, _ := m["_type"].(string); t == orderType {
		sessionID, _ := m["sessionId"].(string)
		f.ordersBySession[sessionID] = &storedOrder{ID: id}
	}
	return id, nil
}

func (f *fakeStore) Patch(ctx context.Context, id string, fields map[string]any) error {
	if err := f.patchErr[id]; err != nil {
		return err
	}
	if f.exists != nil && !f.exists[id] {
		return fmt.Errorf("document %s not found", id)
	}
	f.patched[id] = append(f.patched[id], fields)
	if ref, ok := fields["invoice"].(*Ref); ok {
		for _, ord := range f.ordersBySession {
			if ord.ID == id {
				ord.InvoiceRef = ref.Ref
			}
		}
	}
	return nil
}

func (f *fakeStore) PatchFirstSuccessful(ctx context.Context, ids []string, fields map[string]any) (string, error) {
	var lastErr error
	for _, id := range ids {
		if err := f.Patch(ctx, id, fields); err != nil {
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

func (f *fakeStore) createdOfType(docType string) []map[string]any {
	var out []map[string]any
	for _, m := range f.created {
		if t, _ := m["_type"].(string); t == docType {
			out = append(out, m)
		}
	}
	return out
}

type fakeFulfiller struct {
	orderIDs []string
	err      error
}

func (f *fakeFulfiller) FulfillOrder(ctx context.Context, orderID string) error {
	f.orderIDs = append(f.orderIDs, orderID)
	return f.err
}

func decodeInto(v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func i64(v int64) *int64 { return &v }

func paidSession(id string) *gateway.Session {
	return &gateway.Session{
		ID:             id,
		PaymentStatus:  "paid",
		AmountTotal:    i64(6492),
		AmountSubtotal: i64(5997),
		TotalDetails:   &gateway.TotalDetails{AmountTax: i64(495), AmountShipping: i64(0)},
		Currency:       "usd",
		CustomerDetails: &gateway.CustomerDetails{
			Email: "jordan@example.com",
			Name:  "Jordan Smith",
			Phone: "+15550100",
			Address: &gateway.Address{
				Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
			},
		},
		Metadata: map[string]string{},
		PaymentIntent: &gateway.ExpandablePaymentIntent{
			ID: "pi_1",
			Intent: &gateway.PaymentIntent{
				ID:     "pi_1",
				Status: "succeeded",
				Charges: &gateway.ChargeList{Data: []gateway.Charge{{
					ID:         "ch_1",
					Status:     "succeeded",
					ReceiptURL: "https://receipts.example/ch_1",
					PaymentMethodDetails: &gateway.PaymentMethodDetails{
						Card: &gateway.CardDetails{Brand: "visa", Last4: "4242"},
					},
				}}},
				Metadata: map[string]string{},
			},
		},
	}
}

func sessionLineItems() []gateway.LineItem {
	return []gateway.LineItem{{
		Description: "Canvas Tote",
		Quantity:    3,
		AmountTotal: i64(5997),
		Price: &gateway.Price{
			UnitAmount: i64(1999),
			Product: &gateway.Product{
				ID:       "prod_1",
				Name:     "Canvas Tote",
				Metadata: map[string]string{"sku": "TOTE-01", "categories": "bags, accessories"},
			},
		},
	}}
}
