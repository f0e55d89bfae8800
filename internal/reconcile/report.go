package reconcile

// ErrorKind classifies where a degraded step failed.
type ErrorKind string

const (
	ErrKindCartFetch      ErrorKind = "cart_fetch"
	ErrKindCustomerLookup ErrorKind = "customer_lookup"
	ErrKindOrderWrite     ErrorKind = "order_write"
	ErrKindCatalogLookup  ErrorKind = "catalog_lookup"
	ErrKindInvoiceCreate  ErrorKind = "invoice_create"
	ErrKindInvoiceLink    ErrorKind = "invoice_link"
	ErrKindStatusPatch    ErrorKind = "status_patch"
	ErrKindFulfillment    ErrorKind = "fulfillment"
)

// StepOutcome records one non-fatal failure inside a run.
type StepOutcome struct {
	Step  string    `json:"step"`
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error"`
}

// Report collects what went wrong on the way to a 200. A run that degrades
// still succeeds; the report is what distinguishes a clean run from a lossy
// one in logs and events.
type Report struct {
	Degraded []StepOutcome `json:"degraded,omitempty"`
}

func (r *Report) degrade(step string, kind ErrorKind, err error) {
	if err == nil {
		return
	}
	r.Degraded = append(r.Degraded, StepOutcome{Step: step, Kind: kind, Error: err.Error()})
}

// Clean reports whether the run completed without any degraded step.
func (r *Report) Clean() bool {
	return len(r.Degraded) == 0
}
