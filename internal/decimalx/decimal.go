// Package decimalx provides the fixed-scale decimal arithmetic used for
// prices, quantities, balances, and PnL throughout the engine.
//
// Values are represented with 18 fractional digits (§4.4 of the engine
// specification) on top of github.com/shopspring/decimal. Arithmetic
// saturates to the representable range instead of overflowing, and division
// rounds half-to-even at the fixed scale, matching the spec's numeric
// semantics.
package decimalx

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Decimal carries.
const Scale int32 = 18

// Max and Min bound the representable range. Saturating arithmetic clamps
// to these instead of producing an unbounded result.
var (
	Max = decimal.New(1, 30)
	Min = Max.Neg()
)

func init() {
	decimal.DivisionPrecision = int(Scale) + 2
}

// Decimal is a saturating, fixed-scale decimal value.
type Decimal struct {
	v decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{v: decimal.Zero}

// New wraps a shopspring/decimal.Decimal, rescaling and saturating it.
func New(v decimal.Decimal) Decimal {
	return clamp(v.Round(Scale))
}

// NewFromFloat builds a Decimal from a float64. Intended for test fixtures
// and values coming from external systems that hand us floats; engine-
// internal arithmetic never round-trips through float64.
func NewFromFloat(f float64) Decimal {
	return New(decimal.NewFromFloat(f))
}

// NewFromString parses a decimal literal, e.g. from configuration.
func NewFromString(s string) (Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, err
	}
	return New(v), nil
}

// NewFromInt builds a Decimal from an integer.
func NewFromInt(i int64) Decimal {
	return New(decimal.NewFromInt(i))
}

func clamp(v decimal.Decimal) Decimal {
	if v.GreaterThan(Max) {
		return Decimal{v: Max}
	}
	if v.LessThan(Min) {
		return Decimal{v: Min}
	}
	return Decimal{v: v}
}

// clampFlag is like clamp but also reports whether clamping occurred, so
// callers can raise NumericOverflow.
func clampFlag(v decimal.Decimal) (Decimal, bool) {
	if v.GreaterThan(Max) {
		return Decimal{v: Max}, true
	}
	if v.LessThan(Min) {
		return Decimal{v: Min}, true
	}
	return Decimal{v: v}, false
}

// Add returns d+o, saturating and reporting overflow.
func (d Decimal) Add(o Decimal) (Decimal, bool) {
	return clampFlag(d.v.Add(o.v).Round(Scale))
}

// Sub returns d-o, saturating and reporting overflow.
func (d Decimal) Sub(o Decimal) (Decimal, bool) {
	return clampFlag(d.v.Sub(o.v).Round(Scale))
}

// Mul returns d*o, saturating and reporting overflow.
func (d Decimal) Mul(o Decimal) (Decimal, bool) {
	return clampFlag(d.v.Mul(o.v).Round(Scale))
}

// Div returns d/o rounded half-to-even (banker's rounding) at Scale, per
// the fixed-scale decimal contract. Division by zero returns Zero and
// false; it is the caller's responsibility to treat that as an error
// where zero is not a legitimate divisor.
func (d Decimal) Div(o Decimal) (Decimal, bool) {
	if o.v.IsZero() {
		return Zero, false
	}
	// Divide to a few guard digits beyond Scale first so the final
	// RoundBank sees the true remainder instead of an already-rounded
	// (half-away-from-zero) intermediate value.
	quotient := d.v.DivRound(o.v, Scale+4)
	return clampFlag(quotient.RoundBank(Scale))
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{v: d.v.Neg()}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{v: d.v.Abs()}
}

// Cmp compares d and o: -1, 0, or 1.
func (d Decimal) Cmp(o Decimal) int {
	return d.v.Cmp(o.v)
}

// IsZero reports whether d is zero.
func (d Decimal) IsZero() bool {
	return d.v.IsZero()
}

// IsNegative reports whether d < 0.
func (d Decimal) IsNegative() bool {
	return d.v.IsNegative()
}

// IsPositive reports whether d > 0.
func (d Decimal) IsPositive() bool {
	return d.v.IsPositive()
}

// GreaterThan reports whether d > o.
func (d Decimal) GreaterThan(o Decimal) bool { return d.v.GreaterThan(o.v) }

// GreaterThanOrEqual reports whether d >= o.
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.v.GreaterThanOrEqual(o.v) }

// LessThan reports whether d < o.
func (d Decimal) LessThan(o Decimal) bool { return d.v.LessThan(o.v) }

// LessThanOrEqual reports whether d <= o.
func (d Decimal) LessThanOrEqual(o Decimal) bool { return d.v.LessThanOrEqual(o.v) }

// Equal reports whether d == o.
func (d Decimal) Equal(o Decimal) bool { return d.v.Equal(o.v) }

// Min2 returns the smaller of d and o.
func Min2(d, o Decimal) Decimal {
	if d.LessThanOrEqual(o) {
		return d
	}
	return o
}

// Float64 converts to a float64. Lossy; intended for display and the
// analytics terminal consumer, never for engine-internal arithmetic.
func (d Decimal) Float64() float64 {
	f, _ := d.v.Float64()
	return f
}

// String renders the fixed-scale decimal value.
func (d Decimal) String() string {
	return d.v.StringFixed(Scale)
}

// MarshalJSON renders the decimal as a JSON string to avoid float
// round-tripping through audit ticks and HTTP responses.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.v.StringFixed(Scale) + `"`), nil
}

// UnmarshalJSON parses a JSON string or number into a Decimal.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	var inner decimal.Decimal
	if err := inner.UnmarshalJSON(data); err != nil {
		return err
	}
	*d = New(inner)
	return nil
}
