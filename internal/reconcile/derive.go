package reconcile

import (
	"github.com/commercedesk/backoffice/internal/gateway"
)

// Derived is the normalized field set computed from one resolved run. Pointer
// amounts distinguish "absent on this API version" from zero.
type Derived struct {
	Email           string
	PaymentStatus   string
	TotalAmount     *float64
	Currency        string
	AmountSubtotal  *float64
	AmountTax       *float64
	AmountShipping  *float64
	PaymentIntentID string
	ChargeID        string
	CardBrand       string
	CardLast4       string
	ReceiptURL      string
	ShippingAddress *ShippingAddress
	BillingAddress  *InvoiceParty
	Metadata        map[string]string
	InvoiceID       string
	UserID          string
	OrderNumber     string
}

// Metadata keys have accumulated aliases across storefront versions; each
// lookup walks its aliases in order and takes the first non-empty value.
var (
	invoiceIDKeys   = []string{"invoiceId", "invoice_id", "invoiceID"}
	userIDKeys      = []string{"userId", "user_id", "uid"}
	orderNumberKeys = []string{"orderNumber", "order_number"}
)

// derive runs every per-field fallback chain against the resolved objects.
// Each chain is an ordered list of sources; the first one that yields a value
// wins, and a chain where nothing yields leaves the field unset.
func derive(r *resolved) *Derived {
	s := r.Session
	pi := r.Intent
	charge := pi.FirstCharge()

	d := &Derived{
		Email:         deriveEmail(s, pi, charge),
		PaymentStatus: derivePaymentStatus(s, pi),
		Metadata:      mergeMetadata(s, pi),
	}

	if s != nil {
		d.TotalAmount = fromMinor(s.AmountTotal)
		d.Currency = s.Currency
		d.AmountSubtotal = fromMinor(s.AmountSubtotal)
		if s.TotalDetails != nil {
			d.AmountTax = fromMinor(s.TotalDetails.AmountTax)
			d.AmountShipping = fromMinor(s.TotalDetails.AmountShipping)
		}
	} else if pi != nil {
		if pi.AmountReceived != nil {
			d.TotalAmount = fromMinor(pi.AmountReceived)
		} else {
			d.TotalAmount = fromMinor(pi.Amount)
		}
		d.Currency = pi.Currency
	}

	if pi != nil {
		d.PaymentIntentID = pi.ID
	}
	if charge != nil {
		d.ChargeID = charge.ID
		d.ReceiptURL = charge.ReceiptURL
		if charge.PaymentMethodDetails != nil && charge.PaymentMethodDetails.Card != nil {
			d.CardBrand = charge.PaymentMethodDetails.Card.Brand
			d.CardLast4 = charge.PaymentMethodDetails.Card.Last4
		}
		if bd := charge.BillingDetails; bd != nil {
			d.BillingAddress = partyFrom(bd.Name, bd.Email, bd.Phone, bd.Address)
		}
	}

	d.ShippingAddress = deriveShipping(s, d.Email)

	d.InvoiceID = firstMetadata(d.Metadata, invoiceIDKeys)
	d.UserID = firstMetadata(d.Metadata, userIDKeys)
	d.OrderNumber = firstMetadata(d.Metadata, orderNumberKeys)
	return d
}

func deriveEmail(s *gateway.Session, pi *gateway.PaymentIntent, charge *gateway.Charge) string {
	return firstString(
		func() string {
			if s != nil && s.CustomerDetails != nil {
				return s.CustomerDetails.Email
			}
			return ""
		},
		func() string {
			if s != nil {
				return s.CustomerEmail
			}
			return ""
		},
		func() string {
			if pi != nil {
				return pi.ReceiptEmail
			}
			return ""
		},
		func() string {
			if charge != nil && charge.BillingDetails != nil {
				return charge.BillingDetails.Email
			}
			return ""
		},
	)
}

// derivePaymentStatus trusts the session's own status when present and falls
// back to mapping the intent's lifecycle state onto paid/unpaid.
func derivePaymentStatus(s *gateway.Session, pi *gateway.PaymentIntent) string {
	if s != nil && s.PaymentStatus != "" {
		return s.PaymentStatus
	}
	if pi != nil && pi.Status == "succeeded" {
		return "paid"
	}
	return "unpaid"
}

// mergeMetadata unions session and intent metadata; on key conflict the
// intent's value wins, since the intent is written later in the checkout flow.
func mergeMetadata(s *gateway.Session, pi *gateway.PaymentIntent) map[string]string {
	merged := map[string]string{}
	if s != nil {
		for k, v := range s.Metadata {
			merged[k] = v
		}
	}
	if pi != nil {
		for k, v := range pi.Metadata {
			merged[k] = v
		}
	}
	return merged
}

// deriveShipping prefers the customer-details address over the legacy
// shipping block. No address means no shipping block at all, which downstream
// uses to gate fulfillment.
func deriveShipping(s *gateway.Session, email string) *ShippingAddress {
	if s == nil {
		return nil
	}
	var addr *gateway.Address
	var name, phone string
	if s.CustomerDetails != nil && !s.CustomerDetails.Address.Empty() {
		addr = s.CustomerDetails.Address
		name = s.CustomerDetails.Name
		phone = s.CustomerDetails.Phone
	} else if s.Shipping != nil && !s.Shipping.Address.Empty() {
		addr = s.Shipping.Address
		name = s.Shipping.Name
		phone = s.Shipping.Phone
	} else {
		return nil
	}
	if name == "" && s.CustomerDetails != nil {
		name = s.CustomerDetails.Name
	}
	if phone == "" && s.CustomerDetails != nil {
		phone = s.CustomerDetails.Phone
	}
	return &ShippingAddress{
		Name:       name,
		Phone:      phone,
		Email:      email,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

func partyFrom(name, email, phone string, addr *gateway.Address) *InvoiceParty {
	p := &InvoiceParty{Name: name, Email: email, Phone: phone}
	if addr != nil {
		p.Line1 = addr.Line1
		p.Line2 = addr.Line2
		p.City = addr.City
		p.State = addr.State
		p.PostalCode = addr.PostalCode
		p.Country = addr.Country
	}
	if !p.Present() {
		return nil
	}
	return p
}

func firstString(sources ...func() string) string {
	for _, src := range sources {
		if v := src(); v != "" {
			return v
		}
	}
	return ""
}

func firstMetadata(md map[string]string, keys []string) string {
	for _, k := range keys {
		if v := md[k]; v != "" {
			return v
		}
	}
	return ""
}
