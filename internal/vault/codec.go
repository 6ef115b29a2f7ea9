package vault

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

type stateJSON struct {
	Initialized  bool             `json:"initialized"`
	Admin        domain.Address   `json:"admin"`
	FeeRecipient domain.Address   `json:"fee_recipient"`
	Factory      *domain.Address  `json:"factory,omitempty"`
	Paused       bool             `json:"paused"`
	Balances     []balanceJSON    `json:"balances"`
	TotalLocked  *uint256.Int     `json:"total_locked"`
	PlatformFees *uint256.Int     `json:"platform_fees"`
	Authorized   []domain.Address `json:"authorized"`
}

type balanceJSON struct {
	MarketID uint64       `json:"market_id"`
	Amount   *uint256.Int `json:"amount"`
}

// MarshalJSON encodes the vault state with balances ordered by market id.
func (v *Vault) MarshalJSON() ([]byte, error) {
	st := v.st
	out := stateJSON{
		Initialized:  st.initialized,
		Admin:        st.admin,
		FeeRecipient: st.feeRecipient,
		Paused:       st.paused,
		TotalLocked:  safe.OrZero(st.totalLocked),
		PlatformFees: safe.OrZero(st.fees),
		Authorized:   v.AuthorizedMarkets(),
	}
	if st.hasFactory {
		factory := st.factory
		out.Factory = &factory
	}
	for id, b := range st.balances {
		out.Balances = append(out.Balances, balanceJSON{MarketID: id, Amount: b})
	}
	sort.Slice(out.Balances, func(i, j int) bool { return out.Balances[i].MarketID < out.Balances[j].MarketID })
	return json.Marshal(out)
}

// UnmarshalJSON replaces the vault state and rejects encodings whose
// totals do not add up.
func (v *Vault) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("vault: decode state: %w", err)
	}
	st := newState()
	st.initialized = in.Initialized
	st.admin = in.Admin
	st.feeRecipient = in.FeeRecipient
	if in.Factory != nil {
		st.factory = *in.Factory
		st.hasFactory = true
	}
	st.paused = in.Paused
	for _, b := range in.Balances {
		st.balances[b.MarketID] = safe.OrZero(b.Amount)
	}
	st.totalLocked = safe.OrZero(in.TotalLocked)
	st.fees = safe.OrZero(in.PlatformFees)
	for _, a := range in.Authorized {
		st.authorized[a] = true
	}

	decoded := &Vault{st: st}
	if err := decoded.CheckInvariant(); err != nil {
		return fmt.Errorf("vault: decode state: %w", err)
	}
	v.st = st
	return nil
}
