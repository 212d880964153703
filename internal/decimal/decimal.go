// Package decimal implements exact fixed-scale arithmetic for money amounts.
// DelTran never represents an amount as a binary float: every value carries
// an unscaled big.Int mantissa and a fixed scale of 18 places, matching the
// canonical encoding in internal/canon.
package decimal

import (
	"errors"
	"fmt"
	"math/big"
)

// Scale is the fixed number of fractional digits every Decimal carries.
const Scale = 18

var scaleFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(Scale), nil)

// ErrOverflow is returned when an operation would require a scale or
// magnitude the canonical encoding cannot represent.
var ErrOverflow = errors.New("decimal: overflow")

// Decimal is an exact, fixed-scale signed decimal number.
// The zero value is 0.
type Decimal struct {
	unscaled *big.Int // value * 10^Scale
}

// Zero returns the additive identity.
func Zero() Decimal {
	return Decimal{unscaled: big.NewInt(0)}
}

// FromUnscaled builds a Decimal directly from its scale-18 integer
// representation.
func FromUnscaled(unscaled *big.Int) Decimal {
	return Decimal{unscaled: new(big.Int).Set(unscaled)}
}

// FromInt64 builds a Decimal representing an integral number of whole units.
func FromInt64(whole int64) Decimal {
	return Decimal{unscaled: new(big.Int).Mul(big.NewInt(whole), scaleFactor)}
}

// Parse reads a base-10 string with an optional fractional part of at most
// Scale digits, e.g. "1000000.000000000000000000" or "-42.5".
func Parse(s string) (Decimal, error) {
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart := s, ""
	for i, c := range s {
		if c == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	if len(fracPart) > Scale {
		return Decimal{}, fmt.Errorf("%w: too many fractional digits in %q", ErrOverflow, s)
	}
	for len(fracPart) < Scale {
		fracPart += "0"
	}
	if intPart == "" {
		intPart = "0"
	}
	combined := intPart + fracPart
	v, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal: invalid literal %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return Decimal{unscaled: v}, nil
}

// IsZero reports whether the value is exactly zero.
func (d Decimal) IsZero() bool {
	return d.unscaled == nil || d.unscaled.Sign() == 0
}

// Sign returns -1, 0, or 1.
func (d Decimal) Sign() int {
	if d.unscaled == nil {
		return 0
	}
	return d.unscaled.Sign()
}

// Positive reports whether the value is strictly greater than zero.
func (d Decimal) Positive() bool {
	return d.Sign() > 0
}

func (d Decimal) normalized() *big.Int {
	if d.unscaled == nil {
		return big.NewInt(0)
	}
	return d.unscaled
}

// Add returns d + other, exact.
func (d Decimal) Add(other Decimal) Decimal {
	return Decimal{unscaled: new(big.Int).Add(d.normalized(), other.normalized())}
}

// Sub returns d - other, exact.
func (d Decimal) Sub(other Decimal) Decimal {
	return Decimal{unscaled: new(big.Int).Sub(d.normalized(), other.normalized())}
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{unscaled: new(big.Int).Neg(d.normalized())}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{unscaled: new(big.Int).Abs(d.normalized())}
}

// Cmp returns -1, 0, or 1 comparing d to other.
func (d Decimal) Cmp(other Decimal) int {
	return d.normalized().Cmp(other.normalized())
}

// MulInt returns d * n, exact (n is a plain integer multiplier, not a
// scaled Decimal -- used for accumulating "m * |cycle|" style statistics).
func (d Decimal) MulInt(n int) Decimal {
	return Decimal{unscaled: new(big.Int).Mul(d.normalized(), big.NewInt(int64(n)))}
}

// Min returns the smaller of two decimals.
func Min(a, b Decimal) Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// UnscaledBytes returns the big-endian two's-complement-free magnitude bytes
// of the unscaled integer, for use by internal/canon. The sign is reported
// separately.
func (d Decimal) UnscaledBytes() (sign int, magnitude []byte) {
	u := d.normalized()
	return u.Sign(), u.Bytes()
}

// Float64 converts to a binary float approximation, for non-authoritative
// reporting only (statistics, log lines) -- never for settlement
// arithmetic or comparisons, which stay exact in Decimal throughout.
func (d Decimal) Float64() float64 {
	f := new(big.Float).SetInt(d.normalized())
	f.Quo(f, new(big.Float).SetInt(scaleFactor))
	out, _ := f.Float64()
	return out
}

// String renders the value as a fixed-point decimal string with Scale
// fractional digits.
func (d Decimal) String() string {
	u := new(big.Int).Set(d.normalized())
	neg := u.Sign() < 0
	u.Abs(u)
	s := u.String()
	for len(s) <= Scale {
		s = "0" + s
	}
	intPart := s[:len(s)-Scale]
	fracPart := s[len(s)-Scale:]
	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
