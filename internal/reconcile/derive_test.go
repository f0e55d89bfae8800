package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/commercedesk/backoffice/internal/gateway"
)

func TestDeriveEmailFallbackOrder(t *testing.T) {
	session := func() *gateway.Session {
		return &gateway.Session{
			CustomerDetails: &gateway.CustomerDetails{Email: "details@example.com"},
			CustomerEmail:   "legacy@example.com",
		}
	}
	intent := func() *gateway.PaymentIntent {
		return &gateway.PaymentIntent{
			ReceiptEmail: "receipt@example.com",
			Charges: &gateway.ChargeList{Data: []gateway.Charge{{
				BillingDetails: &gateway.BillingDetails{Email: "billing@example.com"},
			}}},
		}
	}

	s, pi := session(), intent()
	assert.Equal(t, "details@example.com", deriveEmail(s, pi, pi.FirstCharge()))

	s.CustomerDetails.Email = ""
	assert.Equal(t, "legacy@example.com", deriveEmail(s, pi, pi.FirstCharge()))

	s.CustomerEmail = ""
	assert.Equal(t, "receipt@example.com", deriveEmail(s, pi, pi.FirstCharge()))

	pi.ReceiptEmail = ""
	assert.Equal(t, "billing@example.com", deriveEmail(s, pi, pi.FirstCharge()))

	pi.Charges.Data[0].BillingDetails = nil
	assert.Empty(t, deriveEmail(s, pi, pi.FirstCharge()))
}

func TestDerivePaymentStatus(t *testing.T) {
	assert.Equal(t, "paid", derivePaymentStatus(&gateway.Session{PaymentStatus: "paid"}, nil))
	assert.Equal(t, "unpaid", derivePaymentStatus(&gateway.Session{PaymentStatus: "unpaid"}, nil))
	assert.Equal(t, "paid", derivePaymentStatus(nil, &gateway.PaymentIntent{Status: "succeeded"}))
	assert.Equal(t, "unpaid", derivePaymentStatus(nil, &gateway.PaymentIntent{Status: "processing"}))
	assert.Equal(t, "unpaid", derivePaymentStatus(nil, nil))
	// the session's own status wins over the intent's
	assert.Equal(t, "unpaid", derivePaymentStatus(
		&gateway.Session{PaymentStatus: "unpaid"},
		&gateway.PaymentIntent{Status: "succeeded"},
	))
}

func TestMergeMetadataIntentWins(t *testing.T) {
	s := &gateway.Session{Metadata: map[string]string{"userId": "u1", "campaign": "spring"}}
	pi := &gateway.PaymentIntent{Metadata: map[string]string{"userId": "u2"}}
	merged := mergeMetadata(s, pi)
	assert.Equal(t, "u2", merged["userId"])
	assert.Equal(t, "spring", merged["campaign"])
}

func TestMetadataAliases(t *testing.T) {
	md := map[string]string{"invoice_id": "inv1", "uid": "u9", "order_number": "1001"}
	assert.Equal(t, "inv1", firstMetadata(md, invoiceIDKeys))
	assert.Equal(t, "u9", firstMetadata(md, userIDKeys))
	assert.Equal(t, "1001", firstMetadata(md, orderNumberKeys))

	// canonical key beats alias
	md["invoiceId"] = "inv2"
	assert.Equal(t, "inv2", firstMetadata(md, invoiceIDKeys))
}

func TestDeriveShippingPrefersCustomerDetails(t *testing.T) {
	s := &gateway.Session{
		CustomerDetails: &gateway.CustomerDetails{
			Name:    "Jordan Smith",
			Address: &gateway.Address{Line1: "1 Main St", Country: "US"},
		},
		Shipping: &gateway.ShippingDetails{
			Name:    "Old Name",
			Address: &gateway.Address{Line1: "2 Side St"},
		},
	}
	sa := deriveShipping(s, "jordan@example.com")
	assert.Equal(t, "1 Main St", sa.Line1)
	assert.Equal(t, "Jordan Smith", sa.Name)
	assert.Equal(t, "jordan@example.com", sa.Email)
}

func TestDeriveShippingLegacyFallback(t *testing.T) {
	s := &gateway.Session{
		CustomerDetails: &gateway.CustomerDetails{Name: "Jordan Smith"},
		Shipping: &gateway.ShippingDetails{
			Address: &gateway.Address{Line1: "2 Side St"},
		},
	}
	sa := deriveShipping(s, "")
	assert.Equal(t, "2 Side St", sa.Line1)
	// name backfilled from customer details when the legacy block has none
	assert.Equal(t, "Jordan Smith", sa.Name)
}

func TestDeriveShippingAbsentWithoutAddress(t *testing.T) {
	s := &gateway.Session{CustomerDetails: &gateway.CustomerDetails{Name: "Jordan Smith"}}
	assert.Nil(t, deriveShipping(s, "x@example.com"))
	assert.Nil(t, deriveShipping(nil, ""))
}

func TestDeriveAmountsSessionVsIntent(t *testing.T) {
	d := derive(&resolved{Session: paidSession("cs_x"), Intent: paidSession("cs_x").Intent()})
	assert.Equal(t, 64.92, *d.TotalAmount)
	assert.Equal(t, 59.97, *d.AmountSubtotal)
	assert.Equal(t, 4.95, *d.AmountTax)
	assert.Equal(t, "usd", d.Currency)
	assert.Equal(t, "pi_1", d.PaymentIntentID)
	assert.Equal(t, "ch_1", d.ChargeID)
	assert.Equal(t, "visa", d.CardBrand)

	d = derive(&resolved{Intent: &gateway.PaymentIntent{
		ID: "pi_2", Amount: i64(1000), Currency: "eur",
	}})
	assert.Equal(t, 10.0, *d.TotalAmount)
	assert.Nil(t, d.AmountSubtotal)
	assert.Nil(t, d.AmountTax)
	assert.Nil(t, d.AmountShipping)

	// amount_received preferred over amount when both are present
	d = derive(&resolved{Intent: &gateway.PaymentIntent{
		ID: "pi_3", Amount: i64(1000), AmountReceived: i64(900),
	}})
	assert.Equal(t, 9.0, *d.TotalAmount)
}
