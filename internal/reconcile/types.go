package reconcile

// Ref is a reference field pointing at another document in the store.
type Ref struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

// NewRef builds a reference to the given document id.
func NewRef(id string) *Ref {
	if id == "" {
		return nil
	}
	return &Ref{Type: "reference", Ref: id}
}

// CartLineItem is one normalized purchase line on an order.
type CartLineItem struct {
	CatalogRef string   `json:"catalogRef,omitempty"`
	SKU        string   `json:"sku,omitempty"`
	Name       string   `json:"name,omitempty"`
	UnitPrice  *float64 `json:"unitPrice,omitempty"`
	Quantity   int64    `json:"quantity"`
	Categories []string `json:"categories,omitempty"`
}

// ShippingAddress is the flattened shipping block persisted on an order.
type ShippingAddress struct {
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// OrderDoc is the canonical order document. SessionID is the unique key: at
// most one order exists per session id.
type OrderDoc struct {
	ID              string           `json:"_id,omitempty"`
	Type            string           `json:"_type"`
	SessionID       string           `json:"sessionId"`
	CustomerEmail   string           `json:"customerEmail,omitempty"`
	TotalAmount     *float64         `json:"totalAmount,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	AmountSubtotal  *float64         `json:"amountSubtotal,omitempty"`
	AmountTax       *float64         `json:"amountTax,omitempty"`
	AmountShipping  *float64         `json:"amountShipping,omitempty"`
	PaymentStatus   string           `json:"paymentStatus,omitempty"`
	Status          string           `json:"status,omitempty"`
	PaymentIntentID string           `json:"paymentIntentId,omitempty"`
	ChargeID        string           `json:"chargeId,omitempty"`
	CardBrand       string           `json:"cardBrand,omitempty"`
	CardLast4       string           `json:"cardLast4,omitempty"`
	ReceiptURL      string           `json:"receiptUrl,omitempty"`
	UserID          string           `json:"userId,omitempty"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	Cart            []CartLineItem   `json:"cart,omitempty"`
	CustomerRef     *Ref             `json:"customer,omitempty"`
	InvoiceRef      *Ref             `json:"invoice,omitempty"`
	CreatedAt       string           `json:"createdAt,omitempty"`
}

// InvoiceParty is a bill-to or ship-to block on an invoice. A party counts as
// present only when it has at least a name or an address line.
type InvoiceParty struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Present reports whether the party carries enough data to print.
func (p *InvoiceParty) Present() bool {
	return p != nil && (p.Name != "" || p.Line1 != "")
}

// InvoiceLineItem is one billed line on an invoice.
type InvoiceLineItem struct {
	Description string   `json:"description"`
	SKU         string   `json:"sku,omitempty"`
	Quantity    int64    `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
	LineTotal   *float64 `json:"lineTotal,omitempty"`
	ProductRef  *Ref     `json:"product,omitempty"`
}

// InvoiceDoc is the billing document synthesized from an order, at most once.
type InvoiceDoc struct {
	ID          string            `json:"_id,omitempty"`
	Type        string            `json:"_type"`
	Title       string            `json:"title,omitempty"`
	OrderRef    *Ref              `json:"order,omitempty"`
	OrderNumber string            `json:"orderNumber,omitempty"`
	BillTo      *InvoiceParty     `json:"billTo,omitempty"`
	ShipTo      *InvoiceParty     `json:"shipTo,omitempty"`
	LineItems   []InvoiceLineItem `json:"lineItems,omitempty"`
	TaxRate     float64           `json:"taxRate"`
	Subtotal    *float64          `json:"subtotal,omitempty"`
	Total       *float64          `json:"total,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Status      string            `json:"status,omitempty"`
	InvoiceDate string            `json:"invoiceDate,omitempty"`
	DueDate     string            `json:"dueDate,omitempty"`
}

// CustomerDoc is the slice of a customer document the engine reads.
type CustomerDoc struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// CatalogProduct is the slice of a product document used for cart matching.
type CatalogProduct struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	SKU   string `json:"sku"`
}
