package market

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/curve"
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// Views never fail: an unknown outcome or participant reads as zero.

func (m *Market) outcome(id uint64) Outcome {
	if id >= uint64(len(m.st.outcomes)) {
		return Outcome{Shares: safe.Zero(), Liquidity: safe.Zero()}
	}
	o := m.st.outcomes[id]
	return Outcome{Shares: safe.OrZero(o.Shares), Liquidity: safe.OrZero(o.Liquidity)}
}

// Initialized reports whether Init has run.
func (m *Market) Initialized() bool { return m.st.initialized }

// CurrentPrice is the unit price at the outcome's current supply.
func (m *Market) CurrentPrice(outcomeID uint64) *uint256.Int {
	return m.st.curve.PriceAtSupply(m.outcome(outcomeID).Shares)
}

// BuyCost prices buying shares of the outcome now.
func (m *Market) BuyCost(outcomeID uint64, shares *uint256.Int) *uint256.Int {
	return m.st.curve.CostToBuy(m.outcome(outcomeID).Shares, shares)
}

// SellRevenue is what selling shares of the outcome pays now, net of fee.
func (m *Market) SellRevenue(outcomeID uint64, shares *uint256.Int) *uint256.Int {
	gross := m.st.curve.RevenueFromSell(m.outcome(outcomeID).Shares, shares)
	return safe.Sub(gross, m.fee(gross))
}

// SharesForValue is how many shares of the outcome value buys now, and
// what they cost.
func (m *Market) SharesForValue(outcomeID uint64, value *uint256.Int) (shares, cost *uint256.Int) {
	supply := m.outcome(outcomeID).Shares
	shares = m.st.curve.MaxSharesForBudget(supply, value)
	return shares, m.st.curve.CostToBuy(supply, shares)
}

// Info summarizes the market.
func (m *Market) Info() domain.MarketInfo {
	md := m.st.metadata
	return domain.MarketInfo{
		ID:               md.ID,
		Kind:             md.Kind,
		Question:         md.Question,
		Creator:          md.Creator,
		EndTime:          md.EndTime,
		Status:           m.st.status,
		TotalLiquidity:   safe.OrZero(m.st.totalLiquidity),
		Category:         md.Category,
		ResolutionSource: md.ResolutionSource,
	}
}

// Position returns user's holding in the outcome.
func (m *Market) Position(user domain.Address, outcomeID uint64) domain.Position {
	return m.position(user, outcomeID)
}

// Positions returns every non-empty holding of user, by outcome.
func (m *Market) Positions(user domain.Address) []domain.Position {
	var out []domain.Position
	for k, p := range m.st.positions {
		if k.user != user || (p.Shares.IsZero() && p.TotalCost.IsZero()) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OutcomeID < out[j].OutcomeID })
	return out
}

// OutcomeShares is the outstanding supply of the outcome.
func (m *Market) OutcomeShares(outcomeID uint64) *uint256.Int {
	return m.outcome(outcomeID).Shares
}

// OutcomeLiquidity is the gross value paid into the outcome.
func (m *Market) OutcomeLiquidity(outcomeID uint64) *uint256.Int {
	return m.outcome(outcomeID).Liquidity
}

// OutcomeCount is the number of outcomes.
func (m *Market) OutcomeCount() uint64 { return m.st.metadata.OutcomeCount }

// OutcomeName returns the outcome's label.
func (m *Market) OutcomeName(outcomeID uint64) (string, bool) {
	names := m.st.metadata.OutcomeNames
	if outcomeID >= uint64(len(names)) {
		return "", false
	}
	return names[outcomeID], true
}

// Odds returns the implied probability of every outcome.
func (m *Market) Odds() []domain.OutcomeOdds {
	prices := make([]*uint256.Int, m.st.metadata.OutcomeCount)
	for i := range prices {
		prices[i] = m.CurrentPrice(uint64(i))
	}
	return impliedOdds(prices)
}

// WinningOutcome is set only once the market is resolved.
func (m *Market) WinningOutcome() (uint64, bool) {
	if m.st.status != domain.MarketStatusResolved {
		return 0, false
	}
	return m.st.winner, true
}

// IsEnded reports whether now is at or past the end time.
func (m *Market) IsEnded(now uint64) bool { return m.ended(now) }

// Status is the lifecycle state.
func (m *Market) Status() domain.MarketStatus { return m.st.status }

// Metadata returns a copy of the immutable metadata.
func (m *Market) Metadata() domain.MarketMetadata {
	md := m.st.metadata
	md.OutcomeNames = append([]string(nil), md.OutcomeNames...)
	return md
}

// Config returns the current configuration.
func (m *Market) Config() domain.MarketConfig { return m.st.config }

// Curve returns the curve parameters.
func (m *Market) Curve() curve.Params { return m.st.curve.Clone() }

// TotalLiquidity is the value held for the pool.
func (m *Market) TotalLiquidity() *uint256.Int { return safe.OrZero(m.st.totalLiquidity) }

// HasParticipated reports whether user ever bought into the market.
func (m *Market) HasParticipated(user domain.Address) bool { return m.st.participated[user] }

// HasClaimed reports whether user has taken winnings or a refund.
func (m *Market) HasClaimed(user domain.Address) bool { return m.st.claimed[user] }
