package market

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// ResolveMarket records the winning outcome. Allowed once the market is
// closed or past its end time, for the resolver or the admin.
func (m *Market) ResolveMarket(f host.Frame, winningOutcome uint64, proof string) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	st := m.st
	switch st.status {
	case domain.MarketStatusResolved:
		return domain.ErrMarketAlreadyResolved
	case domain.MarketStatusCancelled:
		return domain.ErrMarketCancelled
	case domain.MarketStatusActive, domain.MarketStatusClosed:
	}
	if st.status != domain.MarketStatusClosed && !m.ended(f.BlockTime()) {
		return domain.ErrMarketNotEnded
	}

	caller := f.Caller()
	if caller != st.config.Resolver && caller != st.config.Admin {
		return domain.ErrNotResolver
	}

	if !m.validOutcome(winningOutcome) {
		return domain.ErrInvalidOutcome
	}

	st.winner = winningOutcome
	st.status = domain.MarketStatusResolved

	f.Emit(domain.MarketResolved{
		MarketID:       st.metadata.ID,
		WinningOutcome: winningOutcome,
		Resolver:       caller,
		Timestamp:      f.BlockTime(),
		Proof:          proof,
	})
	return nil
}

// ClaimWinnings pays the caller's pro-rata share of the pool after the
// platform fee:
//
//	pool   = total_liquidity - total_liquidity*fee_bps/10000
//	payout = pool * caller_shares / total_winning_shares
//
// Fees already taken on sells stay in total_liquidity and are charged
// again here.
func (m *Market) ClaimWinnings(f host.Frame) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := m.requireInitialized(); err != nil {
		return err
	}
	st := m.st
	if st.status != domain.MarketStatusResolved {
		return domain.ErrMarketNotResolved
	}

	caller := f.Caller()
	if st.claimed[caller] {
		return domain.ErrAlreadyClaimed
	}

	pos := m.position(caller, st.winner)
	if pos.Shares.IsZero() {
		return domain.ErrNoWinningPosition
	}

	payout := m.payout(pos.Shares)
	if payout.IsZero() {
		return domain.ErrNothingToClaim
	}

	st.claimed[caller] = true
	pos.Claimed = true
	m.setPosition(caller, pos)

	f.Emit(domain.WinningsClaimed{
		User:      caller,
		MarketID:  st.metadata.ID,
		Payout:    payout,
		Timestamp: f.BlockTime(),
	})
	return f.Transfer(caller, payout)
}

func (m *Market) payout(shares *uint256.Int) *uint256.Int {
	st := m.st
	winning := st.outcomes[st.winner].Shares
	if winning.IsZero() {
		return safe.Zero()
	}
	pool := safe.Sub(st.totalLiquidity, m.fee(st.totalLiquidity))
	return safe.MulDiv(pool, shares, winning)
}

// ClaimRefund returns the caller's cost basis across all outcomes after the
// market was cancelled.
func (m *Market) ClaimRefund(f host.Frame) error {
	release, err := m.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := m.requireInitialized(); err != nil {
		return err
	}
	st := m.st
	if st.status != domain.MarketStatusCancelled {
		return domain.ErrMarketNotCancelled
	}

	caller := f.Caller()
	if st.claimed[caller] {
		return domain.ErrAlreadyClaimed
	}

	refund := safe.Zero()
	for id := uint64(0); id < st.metadata.OutcomeCount; id++ {
		refund = safe.Add(refund, m.position(caller, id).TotalCost)
	}
	if refund.IsZero() {
		return domain.ErrNoPositionToRefund
	}

	st.claimed[caller] = true

	f.Emit(domain.RefundClaimed{
		User:      caller,
		MarketID:  st.metadata.ID,
		Amount:    refund,
		Timestamp: f.BlockTime(),
	})
	return f.Transfer(caller, refund)
}

// CloseMarket stops trading ahead of the end time.
func (m *Market) CloseMarket(f host.Frame) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	if err := m.requireAdmin(f.Caller()); err != nil {
		return err
	}
	if err := m.requireActive(); err != nil {
		return err
	}

	m.st.status = domain.MarketStatusClosed
	f.Emit(domain.MarketClosed{MarketID: m.st.metadata.ID, Timestamp: f.BlockTime()})
	return nil
}

// CancelMarket moves any unresolved market to Cancelled and opens refunds.
func (m *Market) CancelMarket(f host.Frame, reason string) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	if err := m.requireAdmin(f.Caller()); err != nil {
		return err
	}
	if m.st.status == domain.MarketStatusResolved {
		return domain.ErrMarketAlreadyResolved
	}

	m.st.status = domain.MarketStatusCancelled
	f.Emit(domain.MarketCancelled{
		MarketID:  m.st.metadata.ID,
		Reason:    reason,
		Timestamp: f.BlockTime(),
	})
	return nil
}

// UpdateResolver replaces the resolver.
func (m *Market) UpdateResolver(f host.Frame, resolver domain.Address) error {
	if err := m.requireInitialized(); err != nil {
		return err
	}
	if err := m.requireAdmin(f.Caller()); err != nil {
		return err
	}

	previous := m.st.config.Resolver
	m.st.config.Resolver = resolver
	f.Emit(domain.ResolverUpdated{
		MarketID:         m.st.metadata.ID,
		PreviousResolver: previous,
		NewResolver:      resolver,
	})
	return nil
}
