// Package curve implements the linear bonding curve that prices outcome
// shares. Every function is total: inputs outside the meaningful range
// produce zero or a saturated value, never an error.
package curve

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// Default curve parameters, in motes.
const (
	DefaultInitialPrice uint64 = 10_000_000 // 0.01 CSPR
	DefaultK            uint64 = 1_000_000  // 0.001 CSPR per share
)

// Params configures a linear curve: price(supply) = InitialPrice + K*supply.
type Params struct {
	InitialPrice *uint256.Int `json:"initial_price"`
	K            *uint256.Int `json:"k_constant"`
}

// DefaultParams returns the stock curve used when a market does not
// override it.
func DefaultParams() Params {
	return Params{
		InitialPrice: uint256.NewInt(DefaultInitialPrice),
		K:            uint256.NewInt(DefaultK),
	}
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	return Params{InitialPrice: safe.OrZero(p.InitialPrice), K: safe.OrZero(p.K)}
}

// PriceAtSupply returns the unit price at the given supply level.
func (p Params) PriceAtSupply(supply *uint256.Int) *uint256.Int {
	return safe.Add(p.InitialPrice, safe.Mul(p.K, supply))
}

// CostToBuy returns the price of the n shares above supply, i.e. the sum of
// PriceAtSupply(supply+i) for i in 1..n:
//
//	n*InitialPrice + K * [n*(2*supply + n + 1) / 2]
//
// The bracketed term is divided once at the end so no per-term truncation
// leaks into the result.
func (p Params) CostToBuy(supply, n *uint256.Int) *uint256.Int {
	if n == nil || n.IsZero() {
		return safe.Zero()
	}
	two := safe.U64(2)
	base := safe.Mul(n, p.InitialPrice)
	inner := safe.Add(safe.Add(safe.Mul(two, supply), n), safe.U64(1))
	series := safe.Div(safe.Mul(n, inner), two)
	return safe.Add(base, safe.Mul(p.K, series))
}

// RevenueFromSell returns what selling n shares from supply refunds. The
// curve is reversible: this equals CostToBuy(supply-n, n). Zero when n is
// zero or exceeds supply.
func (p Params) RevenueFromSell(supply, n *uint256.Int) *uint256.Int {
	if n == nil || n.IsZero() || safe.OrZero(supply).Lt(n) {
		return safe.Zero()
	}
	return p.CostToBuy(safe.Sub(supply, n), n)
}

// MaxSharesForBudget returns the largest share count purchasable from supply
// without exceeding budget.
func (p Params) MaxSharesForBudget(supply, budget *uint256.Int) *uint256.Int {
	return SearchMaxShares(budget, p.SearchBound(budget), func(n *uint256.Int) *uint256.Int {
		return p.CostToBuy(supply, n)
	})
}

// SearchBound is the upper bound used for the share search: budget divided
// by the floor price, plus a margin of 1000 shares. With a zero floor price
// the budget itself stands in for the quotient.
func (p Params) SearchBound(budget *uint256.Int) *uint256.Int {
	margin := safe.U64(1000)
	ip := safe.OrZero(p.InitialPrice)
	if ip.IsZero() {
		return safe.Add(budget, margin)
	}
	return safe.Add(safe.Div(budget, ip), margin)
}
