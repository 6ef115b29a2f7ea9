package vault

import (
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
)

// AuthorizeMarket lets market move funds. Admin or factory only.
func (v *Vault) AuthorizeMarket(f host.Frame, market domain.Address) error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	st := v.st
	caller := f.Caller()
	if caller != st.admin && !(st.hasFactory && caller == st.factory) {
		return domain.ErrAccessDenied
	}
	if st.authorized[market] {
		return domain.ErrMarketAlreadyAuthorized
	}

	st.authorized[market] = true
	f.Emit(domain.MarketAuthorized{Market: market})
	return nil
}

// RevokeMarket removes market's authorization. Admin only.
func (v *Vault) RevokeMarket(f host.Frame, market domain.Address) error {
	if err := v.requireAdmin(f.Caller()); err != nil {
		return err
	}
	if !v.st.authorized[market] {
		return domain.ErrMarketNotAuthorized
	}

	delete(v.st.authorized, market)
	f.Emit(domain.MarketRevoked{Market: market})
	return nil
}

// SetFactory records the factory allowed to authorize markets.
func (v *Vault) SetFactory(f host.Frame, factory domain.Address) error {
	if err := v.requireAdmin(f.Caller()); err != nil {
		return err
	}
	v.st.factory = factory
	v.st.hasFactory = true
	return nil
}

// Pause halts deposits, withdrawals and fee movements.
func (v *Vault) Pause(f host.Frame) error {
	return v.setPaused(f, true)
}

// Unpause resumes normal operation.
func (v *Vault) Unpause(f host.Frame) error {
	return v.setPaused(f, false)
}

func (v *Vault) setPaused(f host.Frame, paused bool) error {
	if err := v.requireAdmin(f.Caller()); err != nil {
		return err
	}
	v.st.paused = paused
	f.Emit(domain.VaultPauseStatusChanged{Paused: paused})
	return nil
}

// TransferAdmin hands the admin role to admin.
func (v *Vault) TransferAdmin(f host.Frame, admin domain.Address) error {
	if err := v.requireAdmin(f.Caller()); err != nil {
		return err
	}
	previous := v.st.admin
	v.st.admin = admin
	f.Emit(domain.AdminTransferred{PreviousAdmin: previous, NewAdmin: admin})
	return nil
}

// UpdateFeeRecipient changes who may claim platform fees.
func (v *Vault) UpdateFeeRecipient(f host.Frame, recipient domain.Address) error {
	if err := v.requireAdmin(f.Caller()); err != nil {
		return err
	}
	v.st.feeRecipient = recipient
	return nil
}
