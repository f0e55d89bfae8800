// Package reconcile turns an opaque payment id into a canonical order, an
// invoice, and downstream side effects. One run is idempotent per session id:
// replaying it updates the same order and never mints a second invoice.
package reconcile

import (
	"context"
	"errors"
	"log"

	"github.com/commercedesk/backoffice/internal/fulfillment"
	"github.com/commercedesk/backoffice/internal/gateway"
	"github.com/commercedesk/backoffice/internal/store"
)

// ErrMissingID is returned when a run is started without an id.
var ErrMissingID = errors.New("missing payment id")

// ErrMissingEngine is returned by the virtual object handler when no engine
// was installed at startup.
var ErrMissingEngine = errors.New("reconcile engine not initialized")

// Input names one payment to reconcile.
type Input struct {
	ID          string `json:"id"`
	AutoFulfill bool   `json:"autoFulfill"`
}

// Result is the outcome of one run. OK is true whenever the gateway object
// resolved, even if later steps degraded; the report carries the details.
type Result struct {
	OK            bool           `json:"ok"`
	ID            string         `json:"id"`
	Type          gateway.IDKind `json:"type"`
	OrderID       string         `json:"orderId"`
	InvoiceID     string         `json:"invoiceId"`
	PaymentStatus string         `json:"paymentStatus"`
	Updated       bool           `json:"updated"`
	FulfillCalled bool           `json:"fulfillCalled"`
	Report        Report         `json:"-"`
}

// Engine wires the collaborators one run needs. All of them are injected;
// the engine holds no global state.
type Engine struct {
	gateway   gateway.Client
	store     store.Store
	fulfiller fulfillment.Client
	logger    *log.Logger
}

// New builds an engine. gw may be nil when the gateway is unconfigured, in
// which case every run fails fast with gateway.ErrNotConfigured. fulfiller
// may be nil to disable fulfillment.
func New(gw gateway.Client, st store.Store, fulfiller fulfillment.Client, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{gateway: gw, store: st, fulfiller: fulfiller, logger: logger}
}

// Run executes the pipeline for one payment id. Only two things are fatal:
// a missing/unconfigured gateway and a failed resolve. Everything after that
// degrades into the result's report.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	if in.ID == "" {
		return nil, ErrMissingID
	}
	if e.gateway == nil {
		return nil, gateway.ErrNotConfigured
	}
	e.logger.Printf("[Reconcile %s] starting (autoFulfill=%t)", in.ID, in.AutoFulfill)

	r, err := resolve(ctx, e.gateway, in.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{OK: true, ID: in.ID, Type: r.Kind}
	report := &res.Report

	d := derive(r)
	res.PaymentStatus = d.PaymentStatus

	cart := buildCart(ctx, e.gateway, r, report)
	sessionID := r.sessionID(in.ID)
	customer := lookupCustomer(ctx, e.store, d.Email, report)

	var customerID string
	if customer != nil {
		customerID = customer.ID
	}
	up := upsertOrder(ctx, e.store, sessionID, d, cart, customerID, report)
	res.OrderID = up.OrderID
	res.Updated = up.Updated

	if created := synthesizeInvoice(ctx, e.store, sessionID, up, d, cart, customer, report); created != "" {
		res.InvoiceID = created
	} else if up.InvoiceRef != "" {
		res.InvoiceID = up.InvoiceRef
	}

	if patched := propagateStatus(ctx, e.store, d, report); patched != "" && res.InvoiceID == "" {
		res.InvoiceID = patched
	}

	res.FulfillCalled = e.maybeFulfill(ctx, in, d, up, report)

	if report.Clean() {
		e.logger.Printf("[Reconcile %s] done order=%s invoice=%s status=%s", in.ID, res.OrderID, res.InvoiceID, res.PaymentStatus)
	} else {
		for _, step := range report.Degraded {
			e.logger.Printf("Warning: [Reconcile %s] step %s degraded (%s): %s", in.ID, step.Step, step.Kind, step.Error)
		}
	}
	return res, nil
}

// maybeFulfill fires the fulfillment call when the caller asked for it and
// the order is actually shippable: persisted, paid, and addressed. The call
// is best-effort; the only record of its outcome is the returned boolean,
// so a failed POST reports false alongside the degraded step.
func (e *Engine) maybeFulfill(ctx context.Context, in Input, d *Derived, up upsertResult, report *Report) bool {
	if !in.AutoFulfill || e.fulfiller == nil {
		return false
	}
	if up.OrderID == "" || d.PaymentStatus != "paid" || d.ShippingAddress == nil {
		return false
	}
	if err := e.fulfiller.FulfillOrder(ctx, up.OrderID); err != nil {
		report.degrade("fulfillment", ErrKindFulfillment, err)
		return false
	}
	return true
}
