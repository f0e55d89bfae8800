package reconcile

import (
	"log"

	restate "github.com/restatedev/sdk-go"
)

// engine is injected at startup via SetEngine so the handler signature stays
// compatible with service binding.
var engine *Engine

// SetEngine installs the engine used by the virtual object handler.
func SetEngine(e *Engine) {
	engine = e
}

// Reconcile is the virtual object handler. The object is keyed by the raw
// payment id, so concurrent requests for the same id are serialized by the
// runtime and cannot race each other into duplicate orders or invoices.
func Reconcile(ctx restate.ObjectContext, req Input) (*Result, error) {
	id := restate.Key(ctx)
	log.Printf("[Reconcile Object %s] run requested (autoFulfill=%t)", id, req.AutoFulfill)

	if engine == nil {
		return nil, restate.TerminalError(ErrMissingEngine)
	}
	req.ID = id

	res, err := restate.Run(ctx, func(rc restate.RunContext) (*Result, error) {
		return engine.Run(rc, req)
	})
	if err != nil {
		// Resolve failures are not transient config hiccups; retrying the
		// invocation forever would just hammer the gateway.
		return nil, restate.TerminalError(err)
	}

	restate.Set(ctx, "last_order_id", res.OrderID)
	restate.Set(ctx, "last_payment_status", res.PaymentStatus)
	if res.InvoiceID != "" {
		restate.Set(ctx, "invoice_id", res.InvoiceID)
	}
	return res, nil
}
