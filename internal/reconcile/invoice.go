package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/commercedesk/backoffice/internal/store"
)

const findCatalogProducts = `*[_type == "product" && (sku.current in $skus || title in $titles)]{_id, title, "sku": sku.current}`

const invoiceDueDays = 30

// synthesizeInvoice creates the billing document for an order, at most once.
// It returns the new invoice id, or "" when synthesis was skipped or failed.
//
// Skips are deliberate, not errors: a metadata invoiceId means an external
// system already owns billing for this payment, an existing invoice link
// means an earlier run got there first, and without an order id there is
// nothing to bill against.
func synthesizeInvoice(ctx context.Context, st store.Store, sessionID string, up upsertResult, d *Derived, cart []CartLineItem, customer *CustomerDoc, report *Report) string {
	if d.InvoiceID != "" || up.OrderID == "" || up.InvoiceRef != "" {
		return ""
	}

	catalog := matchCatalog(ctx, st, cart, report)
	lines := make([]InvoiceLineItem, 0, len(cart))
	for _, item := range cart {
		lines = append(lines, invoiceLine(item, catalog))
	}

	subtotal := d.AmountSubtotal
	if subtotal == nil {
		subtotal = sumLineTotals(lines)
	}
	total := d.TotalAmount
	if total == nil {
		total = subtotal
	}
	status := "pending"
	if d.PaymentStatus == "paid" {
		status = "paid"
	}

	now := time.Now().UTC()
	inv := InvoiceDoc{
		ID:          "invoice." + uuid.NewString(),
		Type:        invoiceType,
		Title:       invoiceTitle(customer, d),
		OrderRef:    NewRef(up.OrderID),
		OrderNumber: firstString(func() string { return d.OrderNumber }, func() string { return sessionID }),
		BillTo:      billTo(d),
		ShipTo:      shipTo(d),
		LineItems:   lines,
		TaxRate:     taxRate(d.AmountTax, d.AmountSubtotal),
		Subtotal:    subtotal,
		Total:       total,
		Currency:    d.Currency,
		Status:      status,
		InvoiceDate: now.Format(time.RFC3339),
		DueDate:     now.AddDate(0, 0, invoiceDueDays).Format(time.RFC3339),
	}

	invoiceID, err := st.Create(ctx, inv)
	if err != nil {
		report.degrade("invoice", ErrKindInvoiceCreate, err)
		return ""
	}
	if err := st.Patch(ctx, up.OrderID, map[string]any{"invoice": NewRef(invoiceID)}); err != nil {
		// Invoice exists but the back link is missing; the next run sees no
		// invoiceRef and would create a duplicate, so surface this loudly.
		report.degrade("invoice", ErrKindInvoiceLink, err)
	}
	return invoiceID
}

// matchCatalog looks up product documents by the cart's SKUs and names so
// invoice lines can reference the catalog. Lookup failure degrades to
// unreferenced lines.
func matchCatalog(ctx context.Context, st store.Store, cart []CartLineItem, report *Report) []CatalogProduct {
	skus := make([]string, 0, len(cart))
	titles := make([]string, 0, len(cart))
	for _, item := range cart {
		if item.SKU != "" {
			skus = append(skus, item.SKU)
		}
		if item.Name != "" {
			titles = append(titles, item.Name)
		}
	}
	if len(skus) == 0 && len(titles) == 0 {
		return nil
	}
	var products []CatalogProduct
	if err := st.QueryAll(ctx, findCatalogProducts, map[string]any{"skus": skus, "titles": titles}, &products); err != nil {
		report.degrade("catalog", ErrKindCatalogLookup, err)
		return nil
	}
	return products
}

// invoiceLine turns a cart line into a billed line, matching it to a catalog
// product by SKU first and exact title second.
func invoiceLine(item CartLineItem, catalog []CatalogProduct) InvoiceLineItem {
	qty := item.Quantity
	if qty < 1 {
		qty = 1
	}
	line := InvoiceLineItem{
		Description: firstString(func() string { return item.Name }, func() string { return item.SKU }, func() string { return "Item" }),
		SKU:         item.SKU,
		Quantity:    qty,
		UnitPrice:   item.UnitPrice,
		LineTotal:   lineTotal(qty, item.UnitPrice),
	}
	for _, p := range catalog {
		if item.SKU != "" && p.SKU == item.SKU {
			line.ProductRef = NewRef(p.ID)
			return line
		}
	}
	for _, p := range catalog {
		if item.Name != "" && p.Title == item.Name {
			line.ProductRef = NewRef(p.ID)
			return line
		}
	}
	return line
}

func sumLineTotals(lines []InvoiceLineItem) *float64 {
	var sum float64
	var any bool
	for _, l := range lines {
		if l.LineTotal != nil {
			sum += *l.LineTotal
			any = true
		}
	}
	if !any {
		return nil
	}
	sum = round2(sum)
	return &sum
}

// invoiceTitle picks a display title: customer name, then shipping name, then
// email, then a generic fallback.
func invoiceTitle(customer *CustomerDoc, d *Derived) string {
	return firstString(
		func() string {
			if customer != nil {
				return customer.FullName
			}
			return ""
		},
		func() string {
			if d.ShippingAddress != nil {
				return d.ShippingAddress.Name
			}
			return ""
		},
		func() string { return d.Email },
		func() string { return "Invoice" },
	)
}

func billTo(d *Derived) *InvoiceParty {
	if d.BillingAddress.Present() {
		return d.BillingAddress
	}
	return shipTo(d)
}

func shipTo(d *Derived) *InvoiceParty {
	sa := d.ShippingAddress
	if sa == nil {
		return nil
	}
	p := &InvoiceParty{
		Name:       sa.Name,
		Email:      sa.Email,
		Phone:      sa.Phone,
		Line1:      sa.Line1,
		Line2:      sa.Line2,
		City:       sa.City,
		State:      sa.State,
		PostalCode: sa.PostalCode,
		Country:    sa.Country,
	}
	if !p.Present() {
		return nil
	}
	return p
}
