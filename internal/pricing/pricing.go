// Package pricing turns a cart into priced totals. It is pure: no clock, no
// store, no side effects. Coupon validation happens in the service layer,
// which hands a resolved discount spec down here.
package pricing

import (
	"math"

	"ysksales/backend/internal/domain"
)

type Line struct {
	ProductID      string
	UnitPriceCents int64
	Quantity       int
}

type Quote struct {
	SubtotalCents int64
	DiscountCents int64
	TaxableCents  int64
	TaxCents      int64
	TotalCents    int64
	ChangeCents   int64
}

// Compute prices a cart in a fixed order: subtotal, discount, taxable, tax,
// total, change. The order must not change; tax applies to the discounted
// base, not the raw subtotal. A negative change is a valid preview value and
// is rejected at commit time by the sale orchestrator, not here.
func Compute(lines []Line, discount domain.AmountSpec, tax domain.AmountSpec, tenderedCents int64) Quote {
	var subtotal int64
	for _, line := range lines {
		if line.Quantity < 1 || line.UnitPriceCents < 0 {
			continue
		}
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}

	discountCents := amountOf(discount, subtotal)
	if discountCents < 0 {
		discountCents = 0
	}
	if discountCents > subtotal {
		discountCents = subtotal
	}

	taxable := subtotal - discountCents
	taxCents := amountOf(tax, taxable)
	if taxCents < 0 {
		taxCents = 0
	}

	total := taxable + taxCents

	quote := Quote{
		SubtotalCents: subtotal,
		DiscountCents: discountCents,
		TaxableCents:  taxable,
		TaxCents:      taxCents,
		TotalCents:    total,
	}
	if tenderedCents > 0 {
		quote.ChangeCents = tenderedCents - total
	}
	return quote
}

func amountOf(spec domain.AmountSpec, base int64) int64 {
	switch spec.Type {
	case domain.AmountFixed:
		return int64(math.Round(spec.Value))
	case domain.AmountPercentage:
		return int64(math.Round(float64(base) * spec.Value / 100))
	default:
		return 0
	}
}

// FromCoupon converts a coupon into the discount spec it stands for. The
// caller is responsible for having validated the coupon first; an applied
// coupon always wins over a manually entered discount.
func FromCoupon(coupon domain.Coupon) domain.AmountSpec {
	return domain.AmountSpec{Type: coupon.Type, Value: coupon.Value}
}
