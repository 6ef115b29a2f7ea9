package vault

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

// Initialized reports whether Init has run.
func (v *Vault) Initialized() bool { return v.st.initialized }

// MarketBalance is the escrowed balance of marketID.
func (v *Vault) MarketBalance(marketID uint64) *uint256.Int { return v.balance(marketID) }

// TotalLocked is everything the vault holds.
func (v *Vault) TotalLocked() *uint256.Int { return safe.OrZero(v.st.totalLocked) }

// PlatformFees is the unclaimed fee pool.
func (v *Vault) PlatformFees() *uint256.Int { return safe.OrZero(v.st.fees) }

// IsAuthorized reports whether market may move funds.
func (v *Vault) IsAuthorized(market domain.Address) bool { return v.st.authorized[market] }

// AuthorizedMarkets lists authorized addresses in byte order.
func (v *Vault) AuthorizedMarkets() []domain.Address {
	out := make([]domain.Address, 0, len(v.st.authorized))
	for a, ok := range v.st.authorized {
		if ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// IsPaused reports the pause flag.
func (v *Vault) IsPaused() bool { return v.st.paused }

// Admin is the current admin.
func (v *Vault) Admin() domain.Address { return v.st.admin }

// FeeRecipient is who may claim fees.
func (v *Vault) FeeRecipient() domain.Address { return v.st.feeRecipient }

// Factory returns the factory, if one was set.
func (v *Vault) Factory() (domain.Address, bool) { return v.st.factory, v.st.hasFactory }

// CheckInvariant recomputes the sum of market balances plus fees and
// compares it to total_locked.
func (v *Vault) CheckInvariant() error {
	sum := safe.Sum(v.st.fees)
	for _, b := range v.st.balances {
		sum = safe.Add(sum, b)
	}
	if !sum.Eq(v.TotalLocked()) {
		return fmt.Errorf("vault: total locked %s != balances plus fees %s", v.TotalLocked().Dec(), sum.Dec())
	}
	return nil
}
