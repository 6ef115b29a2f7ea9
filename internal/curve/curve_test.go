package curve

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/curvemarket/internal/safe"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestFirstShareCost(t *testing.T) {
	p := DefaultParams()
	// The first share is priced at supply 1: InitialPrice + K.
	assert.Equal(t, uint64(11_000_000), p.CostToBuy(u(0), u(1)).Uint64())
	assert.Equal(t, uint64(23_000_000), p.CostToBuy(u(0), u(2)).Uint64())
	assert.Equal(t, uint64(36_000_000), p.CostToBuy(u(0), u(3)).Uint64())
}

func TestPriceAtSupply(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, uint64(10_000_000), p.PriceAtSupply(u(0)).Uint64())
	assert.Equal(t, uint64(110_000_000), p.PriceAtSupply(u(100)).Uint64())
	assert.True(t, p.PriceAtSupply(u(1000)).Gt(p.PriceAtSupply(u(100))))
}

func TestCostMatchesSeriesSum(t *testing.T) {
	params := []Params{
		DefaultParams(),
		{InitialPrice: u(1), K: u(3)},
		{InitialPrice: u(0), K: u(7)},
		{InitialPrice: u(5), K: u(0)},
	}
	for _, p := range params {
		for s := uint64(0); s < 20; s++ {
			for n := uint64(0); n < 20; n++ {
				sum := safe.Zero()
				for i := uint64(1); i <= n; i++ {
					sum = safe.Add(sum, p.PriceAtSupply(u(s+i)))
				}
				require.True(t, p.CostToBuy(u(s), u(n)).Eq(sum), "s=%d n=%d", s, n)
			}
		}
	}
}

func TestRevenueFromSell(t *testing.T) {
	p := DefaultParams()

	t.Run("reversible", func(t *testing.T) {
		for s := uint64(0); s < 50; s++ {
			for n := uint64(0); n <= s; n++ {
				require.True(t, p.RevenueFromSell(u(s), u(n)).Eq(p.CostToBuy(u(s-n), u(n))))
			}
		}
	})

	t.Run("zero shares", func(t *testing.T) {
		assert.True(t, p.RevenueFromSell(u(10), u(0)).IsZero())
	})

	t.Run("more than supply", func(t *testing.T) {
		assert.True(t, p.RevenueFromSell(u(3), u(4)).IsZero())
	})
}

func TestCostSaturates(t *testing.T) {
	p := DefaultParams()
	assert.True(t, p.CostToBuy(safe.Max(), safe.Max()).Eq(safe.Max()))
	assert.True(t, p.PriceAtSupply(safe.Max()).Eq(safe.Max()))
}

func FuzzCurveProperties(f *testing.F) {
	f.Add(uint64(0), uint64(1), uint64(1), uint64(10_000_000), uint64(1_000_000))
	f.Add(uint64(1000), uint64(25), uint64(300), uint64(1), uint64(0))
	f.Fuzz(func(t *testing.T, s, a, b, ip, k uint64) {
		// Keep the inputs small enough that nothing saturates.
		s, a, b = s%1_000_000, a%10_000, b%10_000
		p := Params{InitialPrice: u(ip % 1_000_000_000), K: u(k % 1_000_000_000)}

		if p.PriceAtSupply(u(s + a)).Lt(p.PriceAtSupply(u(s))) {
			t.Fatalf("price decreased between %d and %d", s, s+a)
		}

		whole := p.CostToBuy(u(s), u(a+b))
		split := safe.Add(p.CostToBuy(u(s), u(a)), p.CostToBuy(u(s+a), u(b)))
		if !whole.Eq(split) {
			t.Fatalf("cost not additive: s=%d a=%d b=%d", s, a, b)
		}

		if !p.RevenueFromSell(u(s+a), u(a)).Eq(p.CostToBuy(u(s), u(a))) {
			t.Fatalf("curve not reversible: s=%d n=%d", s+a, a)
		}
	})
}
