package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commercedesk/backoffice/internal/store"
)

const (
	orderType   = "order"
	invoiceType = "invoice"
)

const findOrderBySession = `*[_type == "order" && sessionId == $sessionId][0]{_id, "invoiceRef": invoice._ref}`

const findCustomerByEmail = `*[_type == "customer" && lower(email) == $email][0]{_id, fullName, email}`

// upsertResult is what the rest of the run needs to know about the order.
type upsertResult struct {
	OrderID    string
	Updated    bool   // the order write landed, patch or create
	InvoiceRef string // invoice already linked before this run
}

// upsertOrder materializes the canonical order for this session id: patch the
// existing document when one matches, create it otherwise. A write failure
// degrades the run; downstream steps that need an order id are skipped.
func upsertOrder(ctx context.Context, st store.Store, sessionID string, d *Derived, cart []CartLineItem, customerID string, report *Report) upsertResult {
	var existing struct {
		ID         string `json:"_id"`
		InvoiceRef string `json:"invoiceRef"`
	}
	found := true
	if err := st.QueryOne(ctx, findOrderBySession, map[string]any{"sessionId": sessionID}, &existing); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			report.degrade("order", ErrKindOrderWrite, err)
			return upsertResult{}
		}
		found = false
	}

	fields := orderFields(sessionID, d, cart, customerID)
	if found {
		if err := st.Patch(ctx, existing.ID, fields); err != nil {
			report.degrade("order", ErrKindOrderWrite, err)
			return upsertResult{}
		}
		return upsertResult{OrderID: existing.ID, Updated: true, InvoiceRef: existing.InvoiceRef}
	}

	doc := map[string]any{
		"_id":       "order." + uuid.NewString(),
		"_type":     orderType,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		doc[k] = v
	}
	id, err := st.Create(ctx, doc)
	if err != nil {
		report.degrade("order", ErrKindOrderWrite, err)
		return upsertResult{}
	}
	return upsertResult{OrderID: id, Updated: true}
}

// orderFields is the full overwrite set applied on both create and update.
// Reconciliation is the source of truth for these fields, so stale values
// from earlier runs are always replaced.
func orderFields(sessionID string, d *Derived, cart []CartLineItem, customerID string) map[string]any {
	status := "pending"
	if d.PaymentStatus == "paid" {
		status = "paid"
	}
	fields := map[string]any{
		"sessionId":     sessionID,
		"status":        status,
		"paymentStatus": d.PaymentStatus,
		"cart":          cart,
	}
	setIfNotEmpty(fields, "customerEmail", d.Email)
	setIfNotEmpty(fields, "currency", d.Currency)
	setIfNotEmpty(fields, "paymentIntentId", d.PaymentIntentID)
	setIfNotEmpty(fields, "chargeId", d.ChargeID)
	setIfNotEmpty(fields, "cardBrand", d.CardBrand)
	setIfNotEmpty(fields, "cardLast4", d.CardLast4)
	setIfNotEmpty(fields, "receiptUrl", d.ReceiptURL)
	setIfNotEmpty(fields, "userId", d.UserID)
	setIfPresent(fields, "totalAmount", d.TotalAmount)
	setIfPresent(fields, "amountSubtotal", d.AmountSubtotal)
	setIfPresent(fields, "amountTax", d.AmountTax)
	setIfPresent(fields, "amountShipping", d.AmountShipping)
	if d.ShippingAddress != nil {
		fields["shippingAddress"] = d.ShippingAddress
	}
	if customerID != "" {
		fields["customer"] = NewRef(customerID)
	}
	return fields
}

// lookupCustomer matches the derived email against customer documents.
// Best-effort: a miss or a store error just leaves the order unlinked.
func lookupCustomer(ctx context.Context, st store.Store, email string, report *Report) *CustomerDoc {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	var customer CustomerDoc
	err := st.QueryOne(ctx, findCustomerByEmail, map[string]any{"email": email}, &customer)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			report.degrade("customer", ErrKindCustomerLookup, err)
		}
		return nil
	}
	return &customer
}

func setIfNotEmpty(fields map[string]any, key, val string) {
	if val != "" {
		fields[key] = val
	}
}

func setIfPresent(fields map[string]any, key string, val *float64) {
	if val != nil {
		fields[key] = *val
	}
}
