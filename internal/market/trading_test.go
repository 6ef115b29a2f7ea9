package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

func TestFirstShareCostsInitialPricePlusK(t *testing.T) {
	fx := newFixture(t, binaryArgs())
	before := fx.env.Balance(alice)

	records, err := fx.env.Call(alice, addr, u(11_000_000), func(f host.Frame) error {
		return fx.m.BuyShares(f, 0, u(1))
	})
	require.NoError(t, err)

	pos := fx.m.Position(alice, 0)
	assert.Equal(t, uint64(1), pos.Shares.Uint64())
	assert.Equal(t, uint64(11_000_000), pos.TotalCost.Uint64())
	assert.Equal(t, uint64(11_000_000), fx.m.TotalLiquidity().Uint64())
	assert.Equal(t, uint64(11_000_000), fx.m.OutcomeLiquidity(0).Uint64())
	assert.Equal(t, uint64(11_000_000), safe.Sub(before, fx.env.Balance(alice)).Uint64())
	assert.True(t, fx.m.HasParticipated(alice))

	require.Len(t, records, 1)
	ev, ok := records[0].Event.(domain.SharesPurchased)
	require.True(t, ok)
	assert.Equal(t, uint64(11_000_000), ev.NewPrice.Uint64())
	assert.Equal(t, uint64(11_000_000), ev.Cost.Uint64())
}

func TestBuyRefundsExcess(t *testing.T) {
	fx := newFixture(t, binaryArgs())
	before := fx.env.Balance(alice)

	// Two shares would cost 23_000_000.
	require.NoError(t, fx.buy(alice, 0, 20_000_000))

	assert.Equal(t, uint64(1), fx.m.Position(alice, 0).Shares.Uint64())
	assert.Equal(t, uint64(11_000_000), safe.Sub(before, fx.env.Balance(alice)).Uint64())
	assert.True(t, fx.env.Balance(addr).Eq(fx.m.TotalLiquidity()))
}

func TestBuyFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, fx *fixture)
		outcome uint64
		value   uint64
		min     uint64
		want    error
	}{
		{"zero value", nil, 0, 0, 0, domain.ErrZeroAmount},
		{"invalid outcome", nil, 2, 20_000_000, 0, domain.ErrInvalidOutcome},
		{"below one share", nil, 0, 10_999_999, 0, domain.ErrInsufficientFunds},
		{"slippage", nil, 0, 11_000_000, 2, domain.ErrSlippageExceeded},
		{"closed", func(t *testing.T, fx *fixture) { fx.close(t) }, 0, 20_000_000, 0, domain.ErrMarketNotActive},
		{"ended", func(t *testing.T, fx *fixture) { fx.env.SetBlockTime(endTime) }, 0, 20_000_000, 0, domain.ErrMarketAlreadyEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, binaryArgs())
			if tt.setup != nil {
				tt.setup(t, fx)
			}
			before := fx.env.Balance(alice)
			err := fx.call(alice, u(tt.value), func(f host.Frame) error {
				return fx.m.BuyShares(f, tt.outcome, u(tt.min))
			})
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, before.Eq(fx.env.Balance(alice)), "balance changed on failed buy")
			assert.True(t, fx.m.TotalLiquidity().IsZero())
			assert.False(t, fx.m.HasParticipated(alice))
		})
	}
}

func TestSellShares(t *testing.T) {
	fx := newFixture(t, binaryArgs())
	require.NoError(t, fx.buy(alice, 0, 23_000_000))
	require.Equal(t, uint64(2), fx.m.Position(alice, 0).Shares.Uint64())

	// gross = cost_to_buy(1, 1) = 12_000_000; fee = 240_000.
	assert.Equal(t, uint64(11_760_000), fx.m.SellRevenue(0, u(1)).Uint64())

	before := fx.env.Balance(alice)
	records, err := fx.env.Call(alice, addr, nil, func(f host.Frame) error {
		return fx.m.SellShares(f, 0, u(1), u(11_760_000))
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(11_760_000), safe.Sub(fx.env.Balance(alice), before).Uint64())
	assert.Equal(t, uint64(1), fx.m.OutcomeShares(0).Uint64())
	assert.Equal(t, uint64(23_000_000-12_000_000), fx.m.OutcomeLiquidity(0).Uint64())
	assert.Equal(t, uint64(23_000_000-11_760_000), fx.m.TotalLiquidity().Uint64())
	assert.True(t, fx.env.Balance(addr).Eq(fx.m.TotalLiquidity()))

	pos := fx.m.Position(alice, 0)
	assert.Equal(t, uint64(1), pos.Shares.Uint64())
	assert.Equal(t, uint64(11_500_000), pos.TotalCost.Uint64())

	require.Len(t, records, 1)
	ev := records[0].Event.(domain.SharesSold)
	assert.Equal(t, uint64(11_760_000), ev.Revenue.Uint64())
	assert.Equal(t, uint64(11_000_000), ev.NewPrice.Uint64())

	require.NoError(t, fx.sell(alice, 0, 1, 0))
	pos = fx.m.Position(alice, 0)
	assert.True(t, pos.Shares.IsZero())
	assert.True(t, pos.TotalCost.IsZero())
}

func TestSellFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, fx *fixture)
		outcome uint64
		shares  uint64
		min     uint64
		want    error
	}{
		{"zero shares", nil, 0, 0, 0, domain.ErrZeroAmount},
		{"invalid outcome", nil, 5, 1, 0, domain.ErrInvalidOutcome},
		{"more than held", nil, 0, 3, 0, domain.ErrInsufficientShares},
		{"wrong outcome held", nil, 1, 1, 0, domain.ErrInsufficientShares},
		{"slippage", nil, 0, 1, 11_760_001, domain.ErrSlippageExceeded},
		{"closed", func(t *testing.T, fx *fixture) { fx.close(t) }, 0, 1, 0, domain.ErrMarketNotActive},
		{"ended", func(t *testing.T, fx *fixture) { fx.env.SetBlockTime(endTime + 1) }, 0, 1, 0, domain.ErrMarketAlreadyEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, binaryArgs())
			require.NoError(t, fx.buy(alice, 0, 23_000_000))
			if tt.setup != nil {
				tt.setup(t, fx)
			}
			before := fx.env.Balance(alice)
			err := fx.sell(alice, tt.outcome, tt.shares, tt.min)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, before.Eq(fx.env.Balance(alice)))
			assert.Equal(t, uint64(2), fx.m.Position(alice, 0).Shares.Uint64())
			assert.Equal(t, uint64(23_000_000), fx.m.TotalLiquidity().Uint64())
		})
	}
}

func TestBuysConserveValue(t *testing.T) {
	fx := newFixture(t, binaryArgs())
	trades := []struct {
		who     uint64
		outcome uint64
		value   uint64
	}{
		{0, 0, 75_000_000}, {1, 1, 33_000_000}, {2, 0, 250_000_000},
		{0, 1, 15_345_678}, {1, 0, 99_999_999}, {2, 1, 400_000_000},
	}
	people := []domain.Address{alice, bob, carol}
	for _, tr := range trades {
		require.NoError(t, fx.buy(people[tr.who], tr.outcome, tr.value))
	}

	costs := safe.Zero()
	for _, p := range people {
		for o := uint64(0); o < 2; o++ {
			costs = safe.Add(costs, fx.m.Position(p, o).TotalCost)
		}
	}
	assert.True(t, costs.Eq(fx.m.TotalLiquidity()), "positions %s, liquidity %s", costs.Dec(), fx.m.TotalLiquidity().Dec())
	assert.True(t, safe.Add(fx.m.OutcomeLiquidity(0), fx.m.OutcomeLiquidity(1)).Eq(fx.m.TotalLiquidity()))
	assert.True(t, fx.env.Balance(addr).Eq(fx.m.TotalLiquidity()))

	// Selling keeps the fee inside the pool, so the contract still holds
	// exactly the recorded liquidity.
	require.NoError(t, fx.sell(carol, 0, 3, 0))
	require.NoError(t, fx.sell(bob, 1, 1, 0))
	assert.True(t, fx.env.Balance(addr).Eq(fx.m.TotalLiquidity()))
}
