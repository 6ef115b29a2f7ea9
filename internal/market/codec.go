package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/curve"
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// stateJSON is the persisted layout of a market. Maps keyed by struct are
// flattened into sorted slices so the encoding is deterministic.
type stateJSON struct {
	Initialized    bool                  `json:"initialized"`
	Metadata       domain.MarketMetadata `json:"metadata"`
	Config         domain.MarketConfig   `json:"config"`
	Curve          curve.Params          `json:"curve"`
	Status         domain.MarketStatus   `json:"status"`
	Outcomes       []Outcome             `json:"outcomes"`
	TotalLiquidity *uint256.Int          `json:"total_liquidity"`
	Winner         uint64                `json:"winner"`
	Positions      []positionJSON        `json:"positions"`
	Participated   []domain.Address      `json:"participated"`
	Claimed        []domain.Address      `json:"claimed"`
}

type positionJSON struct {
	User domain.Address `json:"user"`
	domain.Position
}

// MarshalJSON encodes the full market state.
func (m *Market) MarshalJSON() ([]byte, error) {
	st := m.st
	out := stateJSON{
		Initialized:    st.initialized,
		Metadata:       st.metadata,
		Config:         st.config,
		Curve:          st.curve,
		Status:         st.status,
		Outcomes:       st.outcomes,
		TotalLiquidity: st.totalLiquidity,
		Winner:         st.winner,
		Participated:   sortedAddresses(st.participated),
		Claimed:        sortedAddresses(st.claimed),
	}
	for k, p := range st.positions {
		out.Positions = append(out.Positions, positionJSON{User: k.user, Position: p})
	}
	sort.Slice(out.Positions, func(i, j int) bool {
		a, b := out.Positions[i], out.Positions[j]
		if c := bytes.Compare(a.User[:], b.User[:]); c != 0 {
			return c < 0
		}
		return a.OutcomeID < b.OutcomeID
	})
	return json.Marshal(out)
}

// UnmarshalJSON replaces the market state with the decoded one.
func (m *Market) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("market: decode state: %w", err)
	}
	if in.Status != "" {
		if _, err := domain.ParseMarketStatus(string(in.Status)); err != nil {
			return fmt.Errorf("market: decode state: %w", err)
		}
	}

	st := newState()
	st.initialized = in.Initialized
	st.metadata = in.Metadata
	st.config = in.Config
	st.curve = in.Curve.Clone()
	if in.Status != "" {
		st.status = in.Status
	}
	st.outcomes = make([]Outcome, len(in.Outcomes))
	for i, o := range in.Outcomes {
		st.outcomes[i] = Outcome{Shares: safe.OrZero(o.Shares), Liquidity: safe.OrZero(o.Liquidity)}
	}
	st.totalLiquidity = safe.OrZero(in.TotalLiquidity)
	st.winner = in.Winner
	for _, p := range in.Positions {
		st.positions[positionKey{p.User, p.OutcomeID}] = p.Position.Clone()
	}
	for _, a := range in.Participated {
		st.participated[a] = true
	}
	for _, a := range in.Claimed {
		st.claimed[a] = true
	}
	m.st = st
	return nil
}

func sortedAddresses(set map[domain.Address]bool) []domain.Address {
	out := make([]domain.Address, 0, len(set))
	for a, ok := range set {
		if ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
