package service

import "github.com/shopspring/decimal"

// Pricing derives tax and shipping from a subtotal. FlatPricing is the only implementation;
// a rules-based tax engine would plug in here.
type Pricing interface {
	Tax(subtotal decimal.Decimal) decimal.Decimal
	Shipping(subtotal decimal.Decimal) decimal.Decimal
}

type FlatPricing struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

func (p FlatPricing) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.TaxRate).Round(2)
}

func (p FlatPricing) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	return p.ShippingFee
}
