// Package pricing implements the wholesale tier table and order total
// arithmetic. All amounts are decimals; nothing here rounds during
// accumulation, callers round to two places for display only.
package pricing

import "github.com/shopspring/decimal"

// Tier is a bulk-purchase bracket. Quantity is the number of pieces the
// bracket is sold in; Discount is the fraction taken off the list price
// for every piece bought under it.
type Tier struct {
	Key      string
	Quantity int
	Discount decimal.Decimal
}

const (
	TierSingle  = "single"
	TierQuarter = "quarter"
	TierHalf    = "half"
	TierFull    = "full"
)

var tiers = map[string]Tier{
	TierSingle:  {Key: TierSingle, Quantity: 1, Discount: decimal.Zero},
	TierQuarter: {Key: TierQuarter, Quantity: 3, Discount: decimal.NewFromFloat(0.10)},
	TierHalf:    {Key: TierHalf, Quantity: 6, Discount: decimal.NewFromFloat(0.15)},
	TierFull:    {Key: TierFull, Quantity: 12, Discount: decimal.NewFromFloat(0.20)},
}

var (
	taxRate           = decimal.NewFromFloat(0.10)
	flatShipping      = decimal.NewFromInt(50)
	freeShippingAbove = decimal.NewFromInt(1000)
)

// TierFor looks up a tier by key. Unknown keys return ok=false; callers
// reject those at the validation boundary.
func TierFor(key string) (Tier, bool) {
	t, ok := tiers[key]
	return t, ok
}

// ValidTier reports whether key names a known tier.
func ValidTier(key string) bool {
	_, ok := tiers[key]
	return ok
}

// UnitPrice returns the per-piece price under a tier:
// basePrice × (1 − discount).
func UnitPrice(basePrice decimal.Decimal, tier Tier) decimal.Decimal {
	return basePrice.Mul(decimal.NewFromInt(1).Sub(tier.Discount))
}

// LineTotal returns the total for quantity pieces priced under a tier.
func LineTotal(basePrice decimal.Decimal, tier Tier, quantity int) decimal.Decimal {
	return UnitPrice(basePrice, tier).Mul(decimal.NewFromInt(int64(quantity)))
}

// Totals is the order-level money breakdown. Total is always
// Subtotal + Tax + Shipping.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals derives tax, shipping and the grand total from a
// subtotal. Tax is a flat 10%; the 50 flat shipping fee is waived when
// the subtotal exceeds 1000.
func ComputeTotals(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(taxRate)

	shipping := flatShipping
	if subtotal.GreaterThan(freeShippingAbove) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
