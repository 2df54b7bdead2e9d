package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderengine/pkg/config"
)

// Totals are the monetary fields stored on an order at creation time.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// Rules prices a checkout: flat shipping below a free-shipping threshold and
// a single tax rate on the subtotal.
type Rules struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingCost      decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultRules are the storefront's standard terms.
func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(50),
		FlatShippingCost:      decimal.NewFromInt(5),
		TaxRate:               decimal.RequireFromString("0.22"),
	}
}

func RulesFromConfig(cfg config.CheckoutConfig) Rules {
	return Rules{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingCost:      cfg.FlatShippingCost,
		TaxRate:               cfg.TaxRate,
	}
}

// IsWholeCents reports whether amount has no digits below the cent.
func IsWholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// LineTotal is quantity times unit price, rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Quote derives shipping, tax and total from a subtotal. Amounts round half
// away from zero to two decimals and total is the sum of the rounded parts.
func (r Rules) Quote(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)

	shipping := r.FlatShippingCost.Round(2)
	if subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(r.TaxRate).Round(2)

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal.Add(shipping).Add(tax),
	}
}
