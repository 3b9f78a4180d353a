package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 9999

// ParseQuantity converts raw quantity field input into a committed quantity.
// Decimal input is truncated. Anything empty, non-numeric or below one
// becomes 1.
func ParseQuantity(raw string) int {
	n, ok := parseSigned(raw)
	if !ok {
		return 1
	}
	return clampQuantity(n)
}

func parseSigned(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return capQuantity(n), true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if d.GreaterThan(decimal.NewFromInt(MaxQuantity)) {
		return MaxQuantity, true
	}
	if d.LessThan(decimal.NewFromInt(-MaxQuantity)) {
		return -MaxQuantity, true
	}
	return int(d.IntPart()), true
}

func clampQuantity(n int) int {
	if n < 1 {
		return 1
	}
	return capQuantity(n)
}

func capQuantity(n int) int {
	if n > MaxQuantity {
		return MaxQuantity
	}
	return n
}

// QuantityInput holds the raw quantity sent by a client, either a JSON number
// or a string typed into a quantity field.
type QuantityInput struct {
	raw string
	set bool
}

// NewQuantityInput wraps raw field text.
func NewQuantityInput(raw string) QuantityInput {
	return QuantityInput{raw: raw, set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *QuantityInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = QuantityInput{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = QuantityInput{raw: s, set: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quantity must be a number or string: %w", err)
	}
	*q = QuantityInput{raw: n.String(), set: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (q QuantityInput) MarshalJSON() ([]byte, error) {
	if !q.set {
		return []byte("null"), nil
	}
	return json.Marshal(q.raw)
}

// Set reports whether a value was supplied.
func (q QuantityInput) Set() bool { return q.set }

// Raw returns the text as supplied.
func (q QuantityInput) Raw() string { return q.raw }

// ForAdd commits the input for an add: defaults to 1 and never goes below 1.
func (q QuantityInput) ForAdd() int {
	if !q.set {
		return 1
	}
	return ParseQuantity(q.raw)
}

// ForUpdate commits the input for an update. Numeric values keep their sign so
// that zero or negative removes the line. Non-numeric text becomes 1.
func (q QuantityInput) ForUpdate() int {
	n, ok := parseSigned(q.raw)
	if !ok {
		return 1
	}
	return n
}
