package pricing

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is a monetary amount kept at full precision. Round only when rendering.
type Money = decimal.Decimal

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal  Money
	Shipping  Money
	Tax       Money
	Total     Money
	ItemCount int
	LineCount int
	Currency  currency.Unit
}

// Policy holds the business configuration for shipping and tax.
type Policy struct {
	Currency currency.Unit
	// FreeShippingThreshold disables the flat fee once the subtotal reaches it.
	// Invalid means no threshold.
	FreeShippingThreshold decimal.NullDecimal
	FlatShippingFee       Money
	// TaxRate is a fraction of the subtotal, e.g. 0.11 for 11%.
	TaxRate Money
	// ShipEmptyCart charges the flat fee even when the cart holds nothing.
	ShipEmptyCart bool
}

// Compute calculates cart totals for the provided items using the static policy.
func Compute(items []Item, policy Policy) Summary {
	subtotal, count, lines := tally(items)
	shipping := staticShipping(policy, subtotal, count)
	tax := staticTax(policy, subtotal)
	return Summary{
		Subtotal:  subtotal,
		Shipping:  shipping,
		Tax:       tax,
		Total:     subtotal.Add(shipping).Add(tax),
		ItemCount: count,
		LineCount: lines,
		Currency:  policy.Currency,
	}
}

// Engine prices carts using a Policy optionally overridden by expression rules.
type Engine struct {
	policy Policy
	rules  *Rules
	logger zerolog.Logger
}

// NewEngine constructs a pricing engine. rules may be nil.
func NewEngine(policy Policy, rules *Rules, logger zerolog.Logger) *Engine {
	return &Engine{policy: policy, rules: rules, logger: logger.With().Str("component", "pricing").Logger()}
}

// Policy returns the static policy backing the engine.
func (e *Engine) Policy() Policy {
	if e == nil {
		return Policy{}
	}
	return e.policy
}

// Quote prices the given items. Total always equals Subtotal + Shipping + Tax.
func (e *Engine) Quote(items []Item) Summary {
	if e == nil {
		return Compute(items, Policy{})
	}
	subtotal, count, lines := tally(items)
	env := Env{Subtotal: subtotal.InexactFloat64(), ItemCount: count, LineCount: lines}

	shipping := staticShipping(e.policy, subtotal, count)
	if amount, ok, err := e.rules.Shipping(env); err != nil {
		e.logger.Warn().Err(err).Msg("shipping rule failed, using static policy")
	} else if ok {
		shipping = amount
	}

	tax := staticTax(e.policy, subtotal)
	if amount, ok, err := e.rules.Tax(env); err != nil {
		e.logger.Warn().Err(err).Msg("tax rule failed, using static policy")
	} else if ok {
		tax = amount
	}

	return Summary{
		Subtotal:  subtotal,
		Shipping:  shipping,
		Tax:       tax,
		Total:     subtotal.Add(shipping).Add(tax),
		ItemCount: count,
		LineCount: lines,
		Currency:  e.policy.Currency,
	}
}

func tally(items []Item) (Money, int, int) {
	subtotal := decimal.Zero
	var count, lines int
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
		count += it.Qty
		lines++
	}
	return subtotal, count, lines
}

func staticShipping(p Policy, subtotal Money, count int) Money {
	if count == 0 && !p.ShipEmptyCart {
		return decimal.Zero
	}
	if p.FreeShippingThreshold.Valid && subtotal.GreaterThanOrEqual(p.FreeShippingThreshold.Decimal) {
		return decimal.Zero
	}
	if p.FlatShippingFee.IsNegative() {
		return decimal.Zero
	}
	return p.FlatShippingFee
}

func staticTax(p Policy, subtotal Money) Money {
	if p.TaxRate.Sign() <= 0 || subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	return subtotal.Mul(p.TaxRate)
}
