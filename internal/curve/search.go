package curve

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// CostFunc prices a share count. It must be non-decreasing in n.
type CostFunc func(n *uint256.Int) *uint256.Int

// SearchMaxShares binary-searches [0, upper] for the largest n with
// cost(n) <= budget. For the returned low, cost(low) <= budget and, when
// low < upper, budget < cost(low+1).
func SearchMaxShares(budget, upper *uint256.Int, cost CostFunc) *uint256.Int {
	b := safe.OrZero(budget)
	if b.IsZero() {
		return safe.Zero()
	}

	low := safe.Zero()
	high := safe.OrZero(upper)
	one := safe.U64(1)
	for low.Lt(high) {
		// (low+high+1)/2 without overflow: low + (high-low+1)/2.
		span := safe.Add(safe.Sub(high, low), one)
		mid := safe.Add(low, new(uint256.Int).Rsh(span, 1))
		if cost(mid).Gt(b) {
			high = safe.Sub(mid, one)
		} else {
			low = mid
		}
	}
	return low
}
