package gateway

import (
	"bytes"
	"encoding/json"
)

// IDKind classifies an opaque gateway id.
type IDKind string

const (
	KindUnknown         IDKind = "unknown"
	KindCheckoutSession IDKind = "checkout_session"
	KindPaymentIntent   IDKind = "payment_intent"
)

// ClassifyID decides what a raw id refers to based on its prefix.
// Ids without a recognized prefix are treated as checkout sessions, which is
// what the dashboard has historically passed around.
func ClassifyID(id string) IDKind {
	switch {
	case hasPrefix(id, "cs_"):
		return KindCheckoutSession
	case hasPrefix(id, "pi_"):
		return KindPaymentIntent
	default:
		return KindCheckoutSession
	}
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}

// Address is a postal address as the gateway reports it.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Empty reports whether no address component is set.
func (a *Address) Empty() bool {
	return a == nil || (a.Line1 == "" && a.Line2 == "" && a.City == "" && a.State == "" && a.PostalCode == "" && a.Country == "")
}

// CustomerDetails is the checkout-time customer block on a session.
type CustomerDetails struct {
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address"`
}

// ShippingDetails is the legacy shipping block some older sessions carry.
type ShippingDetails struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address"`
}

// TotalDetails breaks a session total into tax and shipping portions.
type TotalDetails struct {
	AmountTax      *int64 `json:"amount_tax"`
	AmountShipping *int64 `json:"amount_shipping"`
}

// Session is a checkout session. Amount fields are minor units.
type Session struct {
	ID              string                   `json:"id"`
	CustomerEmail   string                   `json:"customer_email"`
	CustomerDetails *CustomerDetails         `json:"customer_details"`
	PaymentStatus   string                   `json:"payment_status"`
	AmountTotal     *int64                   `json:"amount_total"`
	AmountSubtotal  *int64                   `json:"amount_subtotal"`
	TotalDetails    *TotalDetails            `json:"total_details"`
	Currency        string                   `json:"currency"`
	Metadata        map[string]string        `json:"metadata"`
	PaymentIntent   *ExpandablePaymentIntent `json:"payment_intent"`
	Shipping        *ShippingDetails         `json:"shipping"`
}

// Intent returns the expanded payment intent, if the session carried one.
func (s *Session) Intent() *PaymentIntent {
	if s == nil || s.PaymentIntent == nil {
		return nil
	}
	return s.PaymentIntent.Intent
}

// CardDetails is the card block on a charge's payment method details.
type CardDetails struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// PaymentMethodDetails wraps the per-method detail blocks we care about.
type PaymentMethodDetails struct {
	Card *CardDetails `json:"card"`
}

// BillingDetails is the billing block on a charge.
type BillingDetails struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address"`
}

// Charge is a single payment attempt under an intent.
type Charge struct {
	ID                   string                `json:"id"`
	Status               string                `json:"status"`
	ReceiptURL           string                `json:"receipt_url"`
	BillingDetails       *BillingDetails       `json:"billing_details"`
	PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details"`
}

// PaymentIntent is the lifecycle object for a single payment attempt.
// Depending on the gateway API version, charges arrive either as an embedded
// charges.data list or as a single latest_charge object.
type PaymentIntent struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Amount         *int64            `json:"amount"`
	AmountReceived *int64            `json:"amount_received"`
	Currency       string            `json:"currency"`
	ReceiptEmail   string            `json:"receipt_email"`
	Metadata       map[string]string `json:"metadata"`
	Charges        *ChargeList       `json:"charges"`
	LatestCharge   *ExpandableCharge `json:"latest_charge"`
}

// ChargeList is the paginated charge container on older API versions.
type ChargeList struct {
	Data []Charge `json:"data"`
}

// FirstCharge returns the first charge on the intent regardless of which
// shape the API version delivered it in, or nil when there is none.
func (pi *PaymentIntent) FirstCharge() *Charge {
	if pi == nil {
		return nil
	}
	if pi.Charges != nil && len(pi.Charges.Data) > 0 {
		return &pi.Charges.Data[0]
	}
	if pi.LatestCharge != nil {
		return pi.LatestCharge.Charge
	}
	return nil
}

// ExpandablePaymentIntent decodes a field that is either a bare intent id or
// the expanded intent object.
type ExpandablePaymentIntent struct {
	ID     string
	Intent *PaymentIntent
}

func (e *ExpandablePaymentIntent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	var pi PaymentIntent
	if err := json.Unmarshal(data, &pi); err != nil {
		return err
	}
	e.Intent = &pi
	e.ID = pi.ID
	return nil
}

func (e *ExpandablePaymentIntent) MarshalJSON() ([]byte, error) {
	if e.Intent != nil {
		return json.Marshal(e.Intent)
	}
	return json.Marshal(e.ID)
}

// ExpandableCharge decodes a field that is either a bare charge id or the
// expanded charge object.
type ExpandableCharge struct {
	ID     string
	Charge *Charge
}

func (e *ExpandableCharge) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	var c Charge
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	e.Charge = &c
	e.ID = c.ID
	return nil
}

func (e *ExpandableCharge) MarshalJSON() ([]byte, error) {
	if e.Charge != nil {
		return json.Marshal(e.Charge)
	}
	return json.Marshal(e.ID)
}

// Product is the catalog object a line item's price points at.
type Product struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

// Price is the pricing object on a line item. UnitAmount is minor units.
type Price struct {
	ID         string   `json:"id"`
	UnitAmount *int64   `json:"unit_amount"`
	Currency   string   `json:"currency"`
	Product    *Product `json:"product"`
}

// LineItem is one purchased line on a checkout session.
type LineItem struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Quantity    int64             `json:"quantity"`
	AmountTotal *int64            `json:"amount_total"`
	Metadata    map[string]string `json:"metadata"`
	Price       *Price            `json:"price"`
}
