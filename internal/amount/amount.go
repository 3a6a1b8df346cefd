// Package amount implements the fixed-point unsigned integer type that
// every price, quantity and balance in the core is expressed in.
package amount

import (
	"fmt"
	"math/big"
)

// Amount is an unsigned 128-bit-ish integer. The 6-decimal fixed-point
// interpretation (e.g. 1_000000 == 1.0 of whatever the caller's boundary
// decides) is carried by callers at the edge, never by the core.
type Amount struct {
	v *big.Int
}

// Zero is the additive identity.
var Zero = Amount{v: big.NewInt(0)}

// max128 bounds saturating arithmetic to the conceptual u128 range.
var max128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// New constructs an Amount from a non-negative int64. Panics on negative
// input — callers at the data boundary are expected to validate first.
func New(v int64) Amount {
	if v < 0 {
		panic("amount: negative value")
	}
	return Amount{v: big.NewInt(v)}
}

// FromBigInt wraps an existing big.Int, clamped to [0, max128].
func FromBigInt(v *big.Int) Amount {
	if v.Sign() < 0 {
		return Zero
	}
	if v.Cmp(max128) > 0 {
		return Amount{v: new(big.Int).Set(max128)}
	}
	return Amount{v: new(big.Int).Set(v)}
}

func (a Amount) bigInt() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.bigInt().Sign() == 0 }

// Sign returns -1, 0, or 1.
func (a Amount) Sign() int { return a.bigInt().Sign() }

// Cmp compares two amounts.
func (a Amount) Cmp(b Amount) int { return a.bigInt().Cmp(b.bigInt()) }

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// GreaterThan reports a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// Add returns a+b without overflow checking beyond the u128 ceiling.
func (a Amount) Add(b Amount) Amount {
	return FromBigInt(new(big.Int).Add(a.bigInt(), b.bigInt()))
}

// SaturatingAdd returns a+b, clamped to max128 instead of overflowing.
func (a Amount) SaturatingAdd(b Amount) Amount {
	return FromBigInt(new(big.Int).Add(a.bigInt(), b.bigInt()))
}

// TrySub returns a-b and true, or (Zero, false) if b > a (underflow).
func (a Amount) TrySub(b Amount) (Amount, bool) {
	if a.LessThan(b) {
		return Zero, false
	}
	return FromBigInt(new(big.Int).Sub(a.bigInt(), b.bigInt())), true
}

// SaturatingSub returns a-b, floored at zero.
func (a Amount) SaturatingSub(b Amount) Amount {
	r, ok := a.TrySub(b)
	if !ok {
		return Zero
	}
	return r
}

// Mul returns a*b. Used for price*quantity in quote-value computations;
// the u128 ceiling is enforced so silent wraparound never happens — a
// result above the ceiling is reported via MulChecked instead.
func (a Amount) Mul(b Amount) Amount {
	return FromBigInt(new(big.Int).Mul(a.bigInt(), b.bigInt()))
}

// MulChecked returns a*b and true, or (Zero, false) if the product would
// exceed the u128 ceiling — the caller (intake validation) is expected
// to reject the order rather than silently clamp a traded value.
func (a Amount) MulChecked(b Amount) (Amount, bool) {
	r := new(big.Int).Mul(a.bigInt(), b.bigInt())
	if r.Cmp(max128) > 0 {
		return Zero, false
	}
	return Amount{v: r}, true
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// String renders the integer value (no decimal formatting — that is a
// boundary concern).
func (a Amount) String() string { return a.bigInt().String() }

// MarshalJSON encodes the amount as a decimal string, matching the
// wire format §6 of the spec requires for numeric fields.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", a.String())), nil
}

// UnmarshalJSON decodes a decimal string into an Amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("amount: invalid decimal string %q", s)
	}
	*a = FromBigInt(v)
	return nil
}
