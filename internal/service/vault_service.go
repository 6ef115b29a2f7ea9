package service

import (
	"context"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/vault"
)

// VaultView is the escrow's read model.
type VaultView struct {
	Address           domain.Address   `json:"address"`
	Initialized       bool             `json:"initialized"`
	Admin             domain.Address   `json:"admin"`
	FeeRecipient      domain.Address   `json:"fee_recipient"`
	Factory           *domain.Address  `json:"factory,omitempty"`
	Paused            bool             `json:"paused"`
	TotalLocked       *uint256.Int     `json:"total_locked"`
	PlatformFees      *uint256.Int     `json:"platform_fees"`
	AuthorizedMarkets []domain.Address `json:"authorized_markets"`
	Consistent        bool             `json:"consistent"`
}

// VaultService exposes the escrow's operations and views.
type VaultService struct {
	ledger *Ledger
	logger *slog.Logger
}

// NewVaultService creates a VaultService.
func NewVaultService(ledger *Ledger, logger *slog.Logger) *VaultService {
	return &VaultService{
		ledger: ledger,
		logger: logger.With(slog.String("component", "vault_service")),
	}
}

func (s *VaultService) call(ctx context.Context, op string, caller domain.Address, value *uint256.Int, fn func(v *vault.Vault, f host.Frame) error) ([]domain.EventRecord, error) {
	return s.ledger.CallVault(ctx, "vault."+op, caller, value, fn)
}

// Deposit credits value to marketID's escrow balance.
func (s *VaultService) Deposit(ctx context.Context, caller domain.Address, marketID uint64, value *uint256.Int) ([]domain.EventRecord, error) {
	return s.call(ctx, "deposit", caller, value, func(v *vault.Vault, f host.Frame) error {
		return v.Deposit(f, marketID)
	})
}

// Withdraw pays amount out of marketID's escrow balance to recipient.
func (s *VaultService) Withdraw(ctx context.Context, caller domain.Address, marketID uint64, recipient domain.Address, amount *uint256.Int) ([]domain.EventRecord, error) {
	return s.call(ctx, "withdraw", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.Withdraw(f, marketID, recipient, amount)
	})
}

// CollectFees moves amount from marketID's balance into the fee pool.
func (s *VaultService) CollectFees(ctx context.Context, caller domain.Address, marketID uint64, amount *uint256.Int) ([]domain.EventRecord, error) {
	return s.call(ctx, "collect_fees", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.CollectPlatformFees(f, marketID, amount)
	})
}

// ClaimFees pays the fee pool to the fee recipient.
func (s *VaultService) ClaimFees(ctx context.Context, caller domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "claim_fees", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.ClaimPlatformFees(f)
	})
}

// Authorize lets market use the escrow.
func (s *VaultService) Authorize(ctx context.Context, caller, market domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "authorize", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.AuthorizeMarket(f, market)
	})
}

// Revoke removes market's escrow access.
func (s *VaultService) Revoke(ctx context.Context, caller, market domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "revoke", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.RevokeMarket(f, market)
	})
}

// SetFactory designates the factory address.
func (s *VaultService) SetFactory(ctx context.Context, caller, factory domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "set_factory", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.SetFactory(f, factory)
	})
}

// Pause halts deposits, withdrawals and fee movements.
func (s *VaultService) Pause(ctx context.Context, caller domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "pause", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.Pause(f)
	})
}

// Unpause resumes a paused vault.
func (s *VaultService) Unpause(ctx context.Context, caller domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "unpause", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.Unpause(f)
	})
}

// TransferAdmin hands the admin role to admin.
func (s *VaultService) TransferAdmin(ctx context.Context, caller, admin domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "transfer_admin", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.TransferAdmin(f, admin)
	})
}

// UpdateFeeRecipient changes who may claim the fee pool.
func (s *VaultService) UpdateFeeRecipient(ctx context.Context, caller, recipient domain.Address) ([]domain.EventRecord, error) {
	return s.call(ctx, "update_fee_recipient", caller, nil, func(v *vault.Vault, f host.Frame) error {
		return v.UpdateFeeRecipient(f, recipient)
	})
}

// Summary returns the vault's read model.
func (s *VaultService) Summary() VaultView {
	var out VaultView
	s.ledger.ViewVault(func(v *vault.Vault, _ uint64) {
		out = VaultView{
			Address:           domain.VaultAddress(),
			Initialized:       v.Initialized(),
			Admin:             v.Admin(),
			FeeRecipient:      v.FeeRecipient(),
			Paused:            v.IsPaused(),
			TotalLocked:       v.TotalLocked(),
			PlatformFees:      v.PlatformFees(),
			AuthorizedMarkets: v.AuthorizedMarkets(),
			Consistent:        v.CheckInvariant() == nil,
		}
		if factory, ok := v.Factory(); ok {
			out.Factory = &factory
		}
	})
	if out.AuthorizedMarkets == nil {
		out.AuthorizedMarkets = []domain.Address{}
	}
	return out
}

// MarketBalance is the escrow held for marketID.
func (s *VaultService) MarketBalance(marketID uint64) *uint256.Int {
	var bal *uint256.Int
	s.ledger.ViewVault(func(v *vault.Vault, _ uint64) { bal = v.MarketBalance(marketID) })
	return bal
}

// IsAuthorized reports whether market may use the escrow.
func (s *VaultService) IsAuthorized(market domain.Address) bool {
	var ok bool
	s.ledger.ViewVault(func(v *vault.Vault, _ uint64) { ok = v.IsAuthorized(market) })
	return ok
}
