package domain

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// Position is one participant's holding in one outcome.
type Position struct {
	OutcomeID uint64       `json:"outcome_id"`
	Shares    *uint256.Int `json:"shares"`
	TotalCost *uint256.Int `json:"total_cost"`
	Claimed   bool         `json:"claimed"`
}

// NewPosition returns an empty position.
func NewPosition(outcomeID uint64) Position {
	return Position{OutcomeID: outcomeID, Shares: safe.Zero(), TotalCost: safe.Zero()}
}

// Clone returns a deep copy.
func (p Position) Clone() Position {
	return Position{
		OutcomeID: p.OutcomeID,
		Shares:    safe.OrZero(p.Shares),
		TotalCost: safe.OrZero(p.TotalCost),
		Claimed:   p.Claimed,
	}
}

// AddShares grows the position and its cost basis.
func (p *Position) AddShares(shares, cost *uint256.Int) {
	p.Shares = safe.Add(p.Shares, shares)
	p.TotalCost = safe.Add(p.TotalCost, cost)
}

// RemoveShares shrinks the position and reduces the cost basis in
// proportion to the shares removed. An emptied position always ends with a
// zero cost basis. Returns false, leaving p unchanged, if p holds fewer
// than shares.
func (p *Position) RemoveShares(shares *uint256.Int) bool {
	before := safe.OrZero(p.Shares)
	if before.Lt(shares) {
		return false
	}
	p.Shares = safe.Sub(before, shares)
	if p.Shares.IsZero() {
		p.TotalCost = safe.Zero()
		return true
	}
	reduction := safe.MulDiv(p.TotalCost, shares, before)
	p.TotalCost = safe.Sub(p.TotalCost, reduction)
	return true
}
