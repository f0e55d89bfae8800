package reconcile

import (
	"context"
	"strings"

	"github.com/commercedesk/backoffice/internal/gateway"
)

// buildCart fetches the session's line items and normalizes them. Payment
// intents have no line items, and a failed fetch degrades to an empty cart;
// either way the order still materializes.
func buildCart(ctx context.Context, gw gateway.Client, r *resolved, report *Report) []CartLineItem {
	if r.Session == nil || r.Session.ID == "" {
		return nil
	}
	items, err := gw.ListLineItems(ctx, r.Session.ID)
	if err != nil {
		report.degrade("cart", ErrKindCartFetch, err)
		return nil
	}
	cart := make([]CartLineItem, 0, len(items))
	for _, li := range items {
		cart = append(cart, normalizeLineItem(li))
	}
	return cart
}

func normalizeLineItem(li gateway.LineItem) CartLineItem {
	item := CartLineItem{
		Name:     li.Description,
		Quantity: li.Quantity,
		SKU:      li.Metadata["sku"],
	}
	if li.Price != nil {
		item.UnitPrice = fromMinor(li.Price.UnitAmount)
		if p := li.Price.Product; p != nil {
			item.CatalogRef = p.ID
			if p.Name != "" {
				item.Name = p.Name
			}
			if item.SKU == "" {
				item.SKU = p.Metadata["sku"]
			}
			item.Categories = splitCategories(p.Metadata)
		}
	}
	return item
}

// splitCategories accepts both metadata shapes seen in the catalog: a single
// "category" value or a comma-separated "categories" list.
func splitCategories(md map[string]string) []string {
	raw := md["categories"]
	if raw == "" {
		raw = md["category"]
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
