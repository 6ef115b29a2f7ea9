package market

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// oddsScale keeps 1/price from truncating to zero for realistic prices.
var oddsScale = uint256.NewInt(1_000_000_000_000)

// impliedOdds normalizes inverse prices to basis points. A zero price gets
// zero odds.
func impliedOdds(prices []*uint256.Int) []domain.OutcomeOdds {
	inverse := make([]*uint256.Int, len(prices))
	total := safe.Zero()
	for i, p := range prices {
		inverse[i] = safe.Div(oddsScale, p)
		total = safe.Add(total, inverse[i])
	}

	odds := make([]domain.OutcomeOdds, len(prices))
	for i, p := range prices {
		odds[i] = domain.OutcomeOdds{OutcomeID: uint64(i)}
		if safe.OrZero(p).IsZero() || total.IsZero() {
			continue
		}
		odds[i].BPS = safe.MulDiv(inverse[i], safe.U64(safe.BPSDenominator), total).Uint64()
	}
	return odds
}
