package reconcile

import "math"

// fromMinor converts a minor-unit amount (cents) to a major-unit decimal.
// A missing amount stays missing rather than becoming zero.
func fromMinor(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v) / 100
	return &f
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// lineTotal computes quantity times unit price rounded to cents. It returns
// nil when the unit price is missing or the product is not finite, so broken
// gateway data never persists as NaN.
func lineTotal(quantity int64, unitPrice *float64) *float64 {
	if unitPrice == nil {
		return nil
	}
	v := float64(quantity) * *unitPrice
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = round2(v)
	return &v
}

// taxRate derives a percentage from tax and subtotal amounts, rounded to two
// decimals (e.g. 100 and 8.25 yield 8.25). Missing or non-positive subtotals
// yield zero.
func taxRate(amountTax, amountSubtotal *float64) float64 {
	if amountTax == nil || amountSubtotal == nil || *amountSubtotal <= 0 {
		return 0
	}
	r := *amountTax / *amountSubtotal
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Round(r*10000) / 100
}
