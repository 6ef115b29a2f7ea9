// Package safe provides saturating 256-bit arithmetic. No operation wraps
// around or panics: overflow clamps to the maximum value, underflow clamps to
// zero and division by zero yields zero.
package safe

import "github.com/holiman/uint256"

// BPSDenominator is the basis-point scale (10,000 bps = 100%).
const BPSDenominator = 10_000

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// Max returns the largest representable value.
func Max() *uint256.Int { return new(uint256.Int).SetAllOne() }

// U64 returns v as a 256-bit integer.
func U64(v uint64) *uint256.Int { return uint256.NewInt(v) }

// OrZero returns a copy of x, treating nil as zero.
func OrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return Zero()
	}
	return x.Clone()
}

// Add returns x+y, saturating at Max.
func Add(x, y *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).AddOverflow(OrZero(x), OrZero(y))
	if overflow {
		return Max()
	}
	return z
}

// Sub returns x-y, saturating at zero.
func Sub(x, y *uint256.Int) *uint256.Int {
	z, underflow := new(uint256.Int).SubOverflow(OrZero(x), OrZero(y))
	if underflow {
		return Zero()
	}
	return z
}

// Mul returns x*y, saturating at Max.
func Mul(x, y *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).MulOverflow(OrZero(x), OrZero(y))
	if overflow {
		return Max()
	}
	return z
}

// Div returns x/y rounded down. A zero divisor yields zero; callers that
// must distinguish that case check IsZero on the divisor first.
func Div(x, y *uint256.Int) *uint256.Int {
	d := OrZero(y)
	if d.IsZero() {
		return Zero()
	}
	return new(uint256.Int).Div(OrZero(x), d)
}

// MulDiv returns x*y/d with a saturating multiply. Rounds down.
func MulDiv(x, y, d *uint256.Int) *uint256.Int {
	return Div(Mul(x, y), d)
}

// Bps returns amount*bps/10000, rounded down.
func Bps(amount *uint256.Int, bps uint64) *uint256.Int {
	return MulDiv(amount, U64(bps), U64(BPSDenominator))
}

// Sum adds all values with saturation.
func Sum(xs ...*uint256.Int) *uint256.Int {
	total := Zero()
	for _, x := range xs {
		total = Add(total, x)
	}
	return total
}

// Min returns the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	a, b := OrZero(x), OrZero(y)
	if a.Lt(b) {
		return a
	}
	return b
}
