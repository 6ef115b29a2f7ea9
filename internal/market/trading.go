package market

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// BuyShares spends the attached value on as many shares of outcomeID as it
// covers. Whatever the shares do not cost goes back to the caller.
func (m *Market) BuyShares(f host.Frame, outcomeID uint64, minShares *uint256.Int) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	if err := m.requireActive(); err != nil {
		return err
	}
	if err := m.requireNotEnded(f.BlockTime()); err != nil {
		return err
	}

	caller := f.Caller()
	paid := f.AttachedValue()
	if paid.IsZero() {
		return domain.ErrZeroAmount
	}
	if !m.validOutcome(outcomeID) {
		return domain.ErrInvalidOutcome
	}

	st := m.st
	o := &st.outcomes[outcomeID]
	shares := st.curve.MaxSharesForBudget(o.Shares, paid)
	if shares.IsZero() {
		return domain.ErrInsufficientFunds
	}
	if shares.Lt(safe.OrZero(minShares)) {
		return domain.ErrSlippageExceeded
	}

	cost := st.curve.CostToBuy(o.Shares, shares)
	change := safe.Sub(paid, cost)

	o.Shares = safe.Add(o.Shares, shares)
	o.Liquidity = safe.Add(o.Liquidity, cost)
	st.totalLiquidity = safe.Add(st.totalLiquidity, cost)

	pos := m.position(caller, outcomeID)
	pos.AddShares(shares, cost)
	m.setPosition(caller, pos)
	st.participated[caller] = true

	f.Emit(domain.SharesPurchased{
		User:      caller,
		MarketID:  st.metadata.ID,
		OutcomeID: outcomeID,
		Shares:    shares,
		Cost:      cost,
		NewPrice:  st.curve.PriceAtSupply(o.Shares),
		Timestamp: f.BlockTime(),
	})

	if change.IsZero() {
		return nil
	}
	return f.Transfer(caller, change)
}

// SellShares returns shares of outcomeID to the curve. The seller receives
// the curve revenue minus the platform fee; the fee stays in the pool.
func (m *Market) SellShares(f host.Frame, outcomeID uint64, shares, minReceive *uint256.Int) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := m.requireInitialized(); err != nil {
		return err
	}
	if err := m.requireActive(); err != nil {
		return err
	}
	if err := m.requireNotEnded(f.BlockTime()); err != nil {
		return err
	}

	caller := f.Caller()
	n := safe.OrZero(shares)
	if n.IsZero() {
		return domain.ErrZeroAmount
	}
	if !m.validOutcome(outcomeID) {
		return domain.ErrInvalidOutcome
	}

	pos := m.position(caller, outcomeID)
	if pos.Shares.Lt(n) {
		return domain.ErrInsufficientShares
	}

	st := m.st
	o := &st.outcomes[outcomeID]
	gross := st.curve.RevenueFromSell(o.Shares, n)
	net := safe.Sub(gross, m.fee(gross))
	if net.Lt(safe.OrZero(minReceive)) {
		return domain.ErrSlippageExceeded
	}

	o.Shares = safe.Sub(o.Shares, n)
	o.Liquidity = safe.Sub(o.Liquidity, gross)
	st.totalLiquidity = safe.Sub(st.totalLiquidity, net)

	pos.RemoveShares(n)
	m.setPosition(caller, pos)

	f.Emit(domain.SharesSold{
		User:      caller,
		MarketID:  st.metadata.ID,
		OutcomeID: outcomeID,
		Shares:    n,
		Revenue:   net,
		NewPrice:  st.curve.PriceAtSupply(o.Shares),
		Timestamp: f.BlockTime(),
	})

	return f.Transfer(caller, net)
}
