// Package vault implements the shared escrow ledger: a balance per market,
// a pool of platform fees and the list of markets allowed to move funds.
//
// The vault keeps total_locked equal to the sum of market balances plus
// unclaimed fees after every call.
package vault

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/safe"
)

type state struct {
	initialized  bool
	admin        domain.Address
	feeRecipient domain.Address
	factory      domain.Address
	hasFactory   bool
	paused       bool
	balances     map[uint64]*uint256.Int
	totalLocked  *uint256.Int
	fees         *uint256.Int
	authorized   map[domain.Address]bool
}

func newState() *state {
	return &state{
		balances:    make(map[uint64]*uint256.Int),
		totalLocked: safe.Zero(),
		fees:        safe.Zero(),
		authorized:  make(map[domain.Address]bool),
	}
}

func (s *state) clone() *state {
	c := *s
	c.balances = make(map[uint64]*uint256.Int, len(s.balances))
	for id, b := range s.balances {
		c.balances[id] = safe.OrZero(b)
	}
	c.authorized = make(map[domain.Address]bool, len(s.authorized))
	for a, ok := range s.authorized {
		c.authorized[a] = ok
	}
	c.totalLocked = safe.OrZero(s.totalLocked)
	c.fees = safe.OrZero(s.fees)
	return &c
}

// Vault is the escrow contract.
type Vault struct {
	st *state
}

// New returns an uninitialized vault.
func New() *Vault {
	return &Vault{st: newState()}
}

// Snapshot implements host.Contract.
func (v *Vault) Snapshot() any { return v.st.clone() }

// Restore implements host.Contract.
func (v *Vault) Restore(snapshot any) { v.st = snapshot.(*state).clone() }

// Init sets the admin and fee recipient. It can run once.
func (v *Vault) Init(_ host.Frame, admin, feeRecipient domain.Address) error {
	if v.st.initialized {
		return domain.ErrAlreadyInitialized
	}
	st := newState()
	st.admin = admin
	st.feeRecipient = feeRecipient
	st.initialized = true
	v.st = st
	return nil
}

func (v *Vault) requireInitialized() error {
	if !v.st.initialized {
		return domain.ErrNotInitialized
	}
	return nil
}

func (v *Vault) requireAdmin(caller domain.Address) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if caller != v.st.admin {
		return domain.ErrNotAdmin
	}
	return nil
}

func (v *Vault) requireNotPaused() error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if v.st.paused {
		return domain.ErrVaultPaused
	}
	return nil
}

// requireAuthorizedCaller admits authorized markets, the factory and the
// admin.
func (v *Vault) requireAuthorizedCaller(caller domain.Address) error {
	st := v.st
	if st.authorized[caller] || (st.hasFactory && caller == st.factory) || caller == st.admin {
		return nil
	}
	return domain.ErrUnauthorizedMarket
}

func (v *Vault) balance(marketID uint64) *uint256.Int {
	return safe.OrZero(v.st.balances[marketID])
}

// Deposit credits the attached value to marketID.
func (v *Vault) Deposit(f host.Frame, marketID uint64) error {
	if err := v.requireNotPaused(); err != nil {
		return err
	}
	if err := v.requireAuthorizedCaller(f.Caller()); err != nil {
		return err
	}
	amount := f.AttachedValue()
	if amount.IsZero() {
		return domain.ErrZeroAmount
	}

	st := v.st
	st.balances[marketID] = safe.Add(v.balance(marketID), amount)
	st.totalLocked = safe.Add(st.totalLocked, amount)

	f.Emit(domain.FundsDeposited{MarketID: marketID, Amount: amount, FromContract: f.Caller()})
	return nil
}

// Withdraw pays amount out of marketID's balance to recipient.
func (v *Vault) Withdraw(f host.Frame, marketID uint64, recipient domain.Address, amount *uint256.Int) error {
	if err := v.requireNotPaused(); err != nil {
		return err
	}
	if err := v.requireAuthorizedCaller(f.Caller()); err != nil {
		return err
	}
	amt := safe.OrZero(amount)
	if amt.IsZero() {
		return domain.ErrZeroAmount
	}
	current := v.balance(marketID)
	if current.Lt(amt) {
		return domain.ErrExceedsMarketBalance
	}

	st := v.st
	st.balances[marketID] = safe.Sub(current, amt)
	st.totalLocked = safe.Sub(st.totalLocked, amt)

	f.Emit(domain.FundsWithdrawn{MarketID: marketID, Recipient: recipient, Amount: amt})
	return f.Transfer(recipient, amt)
}

// CollectPlatformFees moves amount from marketID's balance into the fee
// pool. Collecting zero does nothing.
func (v *Vault) CollectPlatformFees(f host.Frame, marketID uint64, amount *uint256.Int) error {
	if err := v.requireNotPaused(); err != nil {
		return err
	}
	if err := v.requireAuthorizedCaller(f.Caller()); err != nil {
		return err
	}
	amt := safe.OrZero(amount)
	if amt.IsZero() {
		return nil
	}
	current := v.balance(marketID)
	if current.Lt(amt) {
		return domain.ErrExceedsMarketBalance
	}

	st := v.st
	st.balances[marketID] = safe.Sub(current, amt)
	st.fees = safe.Add(st.fees, amt)

	f.Emit(domain.FeesCollected{MarketID: marketID, Amount: amt})
	return nil
}

// ClaimPlatformFees drains the fee pool to the fee recipient.
func (v *Vault) ClaimPlatformFees(f host.Frame) error {
	if err := v.requireNotPaused(); err != nil {
		return err
	}
	st := v.st
	if f.Caller() != st.feeRecipient {
		return domain.ErrAccessDenied
	}
	amount := safe.OrZero(st.fees)
	if amount.IsZero() {
		return domain.ErrNothingToClaim
	}

	st.fees = safe.Zero()
	st.totalLocked = safe.Sub(st.totalLocked, amount)

	f.Emit(domain.FeesClaimed{Recipient: st.feeRecipient, Amount: amount})
	return f.Transfer(st.feeRecipient, amount)
}
