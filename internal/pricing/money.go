package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DisplayPlaces is the number of decimal places used when rendering amounts.
const DisplayPlaces = 2

// Display rounds m for presentation without touching the stored value.
func Display(m Money) Money {
	return m.Round(DisplayPlaces)
}

// Format renders m with its ISO currency code, e.g. "USD 89.97".
func Format(m Money, unit currency.Unit) string {
	return fmt.Sprintf("%s %s", unit.String(), m.StringFixed(DisplayPlaces))
}

// ParseCurrency validates an ISO 4217 code.
func ParseCurrency(code string) (currency.Unit, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return currency.Unit{}, fmt.Errorf("currency %q: %w", code, err)
	}
	return unit, nil
}

// ParseAmount parses an optional monetary configuration value. An empty string
// yields an invalid NullDecimal.
func ParseAmount(value string) (decimal.NullDecimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("amount %q must not be negative", value)
	}
	return decimal.NewNullDecimal(d), nil
}
