package bdd

import (
	"fmt"
	"math"

	"github.com/cucumber/godog"

	"github.com/commercedesk/backoffice/internal/gateway"
)

func (w *ReconcileWorld) registerReconcileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a paid checkout session "([^"]*)" for "([^"]*)" with (\d+) x "([^"]*)" at (\d+\.\d+)$`, w.givenPaidSession)
	sc.Step(`^session "([^"]*)" carries metadata "([^"]*)" = "([^"]*)"$`, w.givenSessionMetadata)
	sc.Step(`^the catalog has product "([^"]*)" with SKU "([^"]*)"$`, w.givenCatalogProduct)
	sc.Step(`^a customer "([^"]*)" named "([^"]*)" exists$`, w.givenCustomer)
	sc.Step(`^only the draft invoice "([^"]*)" exists$`, w.givenDraftInvoice)
	sc.Step(`^the payment gateway is not configured$`, w.givenGatewayOff)

	sc.Step(`^I reconcile "([^"]*)"$`, w.whenReconcile)
	sc.Step(`^I reconcile "([^"]*)" with auto-fulfillment$`, w.whenReconcileAutoFulfill)

	sc.Step(`^the run succeeds$`, w.thenRunSucceeds)
	sc.Step(`^the run fails$`, w.thenRunFails)
	sc.Step(`^exactly one order exists for session "([^"]*)"$`, w.thenOneOrderForSession)
	sc.Step(`^the order total is (\d+\.\d+)$`, w.thenOrderTotal)
	sc.Step(`^exactly one invoice was created$`, w.thenOneInvoice)
	sc.Step(`^no invoice was created$`, w.thenNoInvoice)
	sc.Step(`^the invoice subtotal is (\d+\.\d+)$`, w.thenInvoiceSubtotal)
	sc.Step(`^the invoice tax rate is (\d+\.\d+)$`, w.thenInvoiceTaxRate)
	sc.Step(`^the invoice "([^"]*)" was marked paid$`, w.thenInvoiceMarkedPaid)
	sc.Step(`^fulfillment was triggered for the order$`, w.thenFulfillmentTriggered)
}

func (w *ReconcileWorld) givenPaidSession(sessionID, email string, quantity int, product string, unitPrice float64) error {
	unitMinor := int64(math.Round(unitPrice * 100))
	subtotal := unitMinor * int64(quantity)
	tax := int64(math.Round(float64(subtotal) * 0.0825))
	total := subtotal + tax

	w.gw.sessions[sessionID] = &gateway.Session{
		ID:             sessionID,
		PaymentStatus:  "paid",
		AmountTotal:    &total,
		AmountSubtotal: &subtotal,
		TotalDetails:   &gateway.TotalDetails{AmountTax: &tax},
		Currency:       "usd",
		Metadata:       map[string]string{},
		CustomerDetails: &gateway.CustomerDetails{
			Email: email,
			Name:  "Jordan Smith",
			Address: &gateway.Address{
				Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
			},
		},
		PaymentIntent: &gateway.ExpandablePaymentIntent{
			ID: "pi_" + sessionID,
			Intent: &gateway.PaymentIntent{
				ID:       "pi_" + sessionID,
				Status:   "succeeded",
				Metadata: map[string]string{},
				Charges: &gateway.ChargeList{Data: []gateway.Charge{{
					ID:         "ch_" + sessionID,
					ReceiptURL: "https://receipts.example/" + sessionID,
					PaymentMethodDetails: &gateway.PaymentMethodDetails{
						Card: &gateway.CardDetails{Brand: "visa", Last4: "4242"},
					},
				}}},
			},
		},
	}
	w.gw.lineItems[sessionID] = []gateway.LineItem{{
		Description: product,
		Quantity:    int64(quantity),
		AmountTotal: &subtotal,
		Price: &gateway.Price{
			UnitAmount: &unitMinor,
			Product: &gateway.Product{
				ID:       "prod_" + sessionID,
				Name:     product,
				Metadata: map[string]string{},
			},
		},
	}}
	return nil
}

func (w *ReconcileWorld) givenSessionMetadata(sessionID, key, value string) error {
	s, ok := w.gw.sessions[sessionID]
	if !ok {
		return fmt.Errorf("no such session %s", sessionID)
	}
	s.Metadata[key] = value
	return nil
}

func (w *ReconcileWorld) givenCatalogProduct(title, sku string) error {
	_, err := w.docs.Create(nil, map[string]any{
		"_id": "product." + sku, "_type": "product", "title": title, "sku": sku,
	})
	return err
}

func (w *ReconcileWorld) givenCustomer(email, name string) error {
	_, err := w.docs.Create(nil, map[string]any{
		"_id": "customer." + email, "_type": "customer", "email": email, "fullName": name,
	})
	return err
}

func (w *ReconcileWorld) givenDraftInvoice(id string) error {
	w.docs.docs[id] = map[string]any{"_type": "invoice"}
	w.docs.exists[id] = true
	return nil
}

func (w *ReconcileWorld) givenGatewayOff() error {
	w.gatewayOff = true
	return nil
}

func (w *ReconcileWorld) whenReconcile(id string) error {
	w.run(id, false)
	return nil
}

func (w *ReconcileWorld) whenReconcileAutoFulfill(id string) error {
	w.run(id, true)
	return nil
}

func (w *ReconcileWorld) thenRunSucceeds() error {
	if w.runErr != nil {
		return fmt.Errorf("expected success, got error: %v", w.runErr)
	}
	if w.res == nil || !w.res.OK {
		return fmt.Errorf("expected ok result, got %+v", w.res)
	}
	return nil
}

func (w *ReconcileWorld) thenRunFails() error {
	if w.runErr == nil {
		return fmt.Errorf("expected an error, got result %+v", w.res)
	}
	return nil
}

func (w *ReconcileWorld) thenOneOrderForSession(sessionID string) error {
	count := 0
	for _, doc := range w.docs.docs {
		if doc["_type"] == "order" && doc["sessionId"] == sessionID {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("expected exactly one order for %s, found %d", sessionID, count)
	}
	return nil
}

func (w *ReconcileWorld) thenOrderTotal(want float64) error {
	order := w.docs.firstOfType("order")
	if order == nil {
		return fmt.Errorf("no order was created")
	}
	got, _ := order["totalAmount"].(float64)
	if got != want {
		return fmt.Errorf("expected order total %v, got %v", want, got)
	}
	return nil
}

func (w *ReconcileWorld) thenOneInvoice() error {
	if n := w.docs.countOfType("invoice"); n != 1 {
		return fmt.Errorf("expected exactly one invoice, found %d", n)
	}
	return nil
}

func (w *ReconcileWorld) thenNoInvoice() error {
	if n := w.docs.countOfType("invoice"); n != 0 {
		return fmt.Errorf("expected no invoice, found %d", n)
	}
	return nil
}

func (w *ReconcileWorld) thenInvoiceSubtotal(want float64) error {
	inv := w.docs.firstOfType("invoice")
	if inv == nil {
		return fmt.Errorf("no invoice was created")
	}
	got, _ := inv["subtotal"].(float64)
	if got != want {
		return fmt.Errorf("expected invoice subtotal %v, got %v", want, got)
	}
	return nil
}

func (w *ReconcileWorld) thenInvoiceTaxRate(want float64) error {
	inv := w.docs.firstOfType("invoice")
	if inv == nil {
		return fmt.Errorf("no invoice was created")
	}
	got, _ := inv["taxRate"].(float64)
	if got != want {
		return fmt.Errorf("expected invoice tax rate %v, got %v", want, got)
	}
	return nil
}

func (w *ReconcileWorld) thenInvoiceMarkedPaid(id string) error {
	patches := w.docs.patched[id]
	if len(patches) == 0 {
		return fmt.Errorf("invoice %s was never patched", id)
	}
	last := patches[len(patches)-1]
	if last["status"] != "paid" {
		return fmt.Errorf("expected invoice %s status paid, got %v", id, last["status"])
	}
	return nil
}

func (w *ReconcileWorld) thenFulfillmentTriggered() error {
	if len(w.fulfiller.orderIDs) != 1 {
		return fmt.Errorf("expected one fulfillment call, got %d", len(w.fulfiller.orderIDs))
	}
	if w.res == nil || !w.res.FulfillCalled {
		return fmt.Errorf("result did not record the fulfillment call")
	}
	return nil
}
