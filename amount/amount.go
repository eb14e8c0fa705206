// Package amount provides the fixed-precision decimal type used for every
// consensus-visible quantity in coraxumd: transaction fees, output values,
// block rewards, and coinbase sums. All of these must compare equal under
// 8-fractional-digit quantization regardless of how they were accumulated,
// matching the Python original's decimal.Decimal-based quantize_eight.
package amount

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Amount is quantized to.
const Scale = 8

// Amount is a quantity of coin, always stored quantized to Scale digits.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// New builds a quantized Amount from an integer value and a power-of-ten
// exponent, mirroring decimal.New(value, exp) — New(10, 0) is 10,
// New(5, -1) is 0.5.
func New(value int64, exp int32) Amount {
	return fromDecimal(decimal.New(value, exp))
}

// fromDecimal wraps an already-constructed decimal.Decimal, quantizing it
// to Scale digits.
func fromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Scale)}
}

// NewFromFloat builds an Amount from a float64, as used when summing fees
// internally during block assembly before the final consensus comparison.
func NewFromFloat(f float64) Amount {
	return fromDecimal(decimal.NewFromFloat(f))
}

// Parse parses a decimal string (as found in JSON documents and RPC
// payloads) into a quantized Amount.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	return fromDecimal(d), nil
}

// Add returns a+b, quantized.
func (a Amount) Add(b Amount) Amount {
	return fromDecimal(a.d.Add(b.d))
}

// Sub returns a-b, quantized.
func (a Amount) Sub(b Amount) Amount {
	return fromDecimal(a.d.Sub(b.d))
}

// Cmp returns -1, 0, or 1 comparing a to b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal reports whether a and b are equal once both are quantized to Scale
// digits — the sole form of equality consensus code should use (matching
// quantize_eight in the Python original).
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// Float64 returns the amount as a float64, useful only for non-consensus
// display or fast internal accumulation that will be re-quantized before
// any comparison.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

// String renders the amount with exactly Scale fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// MarshalJSON renders the amount as a bare JSON number with Scale digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// FromScaledInt64 builds an Amount from an integer count of 1e-8 units, the
// fixed-point representation chaincfg's subsidy table is expressed in.
func FromScaledInt64(units int64) Amount {
	return New(units, -Scale)
}

// Sum quantizes and adds every amount in vals.
func Sum(vals ...Amount) Amount {
	total := Zero
	for _, v := range vals {
		total = total.Add(v)
	}
	return total
}
