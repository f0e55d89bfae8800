package reconcile

import (
	"context"
	"time"

	"github.com/commercedesk/backoffice/internal/store"
)

// propagateStatus pushes a paid status onto the externally-owned invoice
// named by metadata. The metadata id may refer to either the draft or the
// published variant of the document, so the patch is tried against both and
// the first that lands wins. Returns the id actually patched.
func propagateStatus(ctx context.Context, st store.Store, d *Derived, report *Report) string {
	if d.InvoiceID == "" || d.PaymentStatus != "paid" {
		return ""
	}
	fields := map[string]any{
		"status":        "paid",
		"paymentStatus": "paid",
		"paidAt":        time.Now().UTC().Format(time.RFC3339),
	}
	patched, err := st.PatchFirstSuccessful(ctx, store.AliasIDs(d.InvoiceID), fields)
	if err != nil {
		report.degrade("propagate", ErrKindStatusPatch, err)
		return ""
	}
	return patched
}
