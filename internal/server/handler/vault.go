package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/service"
)

// VaultService defines the methods that the vault handler requires from the
// service layer.
type VaultService interface {
	Deposit(ctx context.Context, caller domain.Address, marketID uint64, value *uint256.Int) ([]domain.EventRecord, error)
	Withdraw(ctx context.Context, caller domain.Address, marketID uint64, recipient domain.Address, amount *uint256.Int) ([]domain.EventRecord, error)
	CollectFees(ctx context.Context, caller domain.Address, marketID uint64, amount *uint256.Int) ([]domain.EventRecord, error)
	ClaimFees(ctx context.Context, caller domain.Address) ([]domain.EventRecord, error)
	Authorize(ctx context.Context, caller, market domain.Address) ([]domain.EventRecord, error)
	Revoke(ctx context.Context, caller, market domain.Address) ([]domain.EventRecord, error)
	SetFactory(ctx context.Context, caller, factory domain.Address) ([]domain.EventRecord, error)
	Pause(ctx context.Context, caller domain.Address) ([]domain.EventRecord, error)
	Unpause(ctx context.Context, caller domain.Address) ([]domain.EventRecord, error)
	TransferAdmin(ctx context.Context, caller, admin domain.Address) ([]domain.EventRecord, error)
	UpdateFeeRecipient(ctx context.Context, caller, recipient domain.Address) ([]domain.EventRecord, error)

	Summary() service.VaultView
	MarketBalance(marketID uint64) *uint256.Int
}

// VaultHandler serves escrow endpoints.
type VaultHandler struct {
	vault  VaultService
	logger *slog.Logger
}

// NewVaultHandler creates a VaultHandler.
func NewVaultHandler(vault VaultService, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{vault: vault, logger: logger}
}

type vaultResponse struct {
	service.VaultView
	TotalLockedCSPR  string `json:"total_locked_cspr"`
	PlatformFeesCSPR string `json:"platform_fees_cspr"`
	MarketBalance    string `json:"market_balance,omitempty"`
}

type amountRequest struct {
	MarketID  uint64 `json:"market_id"`
	Value     string `json:"value"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

// marketRequest names a market by address or by id.
type marketRequest struct {
	Market   string  `json:"market"`
	MarketID *uint64 `json:"market_id"`
}

type addressRequest struct {
	Address string `json:"address"`
}

// GetVault returns the vault's state. With ?market_id= it also reports that
// market's escrow balance.
// GET /api/vault
func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	v := h.vault.Summary()
	resp := vaultResponse{
		VaultView:        v,
		TotalLockedCSPR:  domain.FormatCSPR(v.TotalLocked),
		PlatformFeesCSPR: domain.FormatCSPR(v.PlatformFees),
	}
	if s := r.URL.Query().Get("market_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid market_id")
			return
		}
		resp.MarketBalance = h.vault.MarketBalance(id).Dec()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Deposit credits the attached value to a market's escrow.
// POST /api/vault/deposit
func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.amountCall(w, r)
	if !ok {
		return
	}
	value, err := parseAmount(req.Value, "value")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.vault.Deposit(r.Context(), caller, req.MarketID, value)
	h.respond(w, r, recs, err)
}

// Withdraw pays out of a market's escrow.
// POST /api/vault/withdraw
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.amountCall(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipient, err := parseAddress(req.Recipient, "recipient")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.vault.Withdraw(r.Context(), caller, req.MarketID, recipient, amount)
	h.respond(w, r, recs, err)
}

// CollectFees moves part of a market's escrow into the fee pool.
// POST /api/vault/fees/collect
func (h *VaultHandler) CollectFees(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.amountCall(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.vault.CollectFees(r.Context(), caller, req.MarketID, amount)
	h.respond(w, r, recs, err)
}

// ClaimFees pays the fee pool to the fee recipient.
// POST /api/vault/fees/claim
func (h *VaultHandler) ClaimFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.ClaimFees(r.Context(), caller)
	h.respond(w, r, recs, err)
}

// Authorize grants a market escrow access.
// POST /api/vault/authorize
func (h *VaultHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	caller, market, ok := h.marketCall(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.Authorize(r.Context(), caller, market)
	h.respond(w, r, recs, err)
}

// Revoke removes a market's escrow access.
// POST /api/vault/revoke
func (h *VaultHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	caller, market, ok := h.marketCall(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.Revoke(r.Context(), caller, market)
	h.respond(w, r, recs, err)
}

// SetFactory designates the factory.
// POST /api/vault/factory
func (h *VaultHandler) SetFactory(w http.ResponseWriter, r *http.Request) {
	caller, addr, ok := h.addressCall(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.SetFactory(r.Context(), caller, addr)
	h.respond(w, r, recs, err)
}

// Pause halts the vault.
// POST /api/vault/pause
func (h *VaultHandler) Pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.Pause(r.Context(), caller)
	h.respond(w, r, recs, err)
}

// Unpause resumes the vault.
// POST /api/vault/unpause
func (h *VaultHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.Unpause(r.Context(), caller)
	h.respond(w, r, recs, err)
}

// TransferAdmin hands over the admin role.
// POST /api/vault/admin
func (h *VaultHandler) TransferAdmin(w http.ResponseWriter, r *http.Request) {
	caller, addr, ok := h.addressCall(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.TransferAdmin(r.Context(), caller, addr)
	h.respond(w, r, recs, err)
}

// UpdateFeeRecipient changes the fee recipient.
// POST /api/vault/fee-recipient
func (h *VaultHandler) UpdateFeeRecipient(w http.ResponseWriter, r *http.Request) {
	caller, addr, ok := h.addressCall(w, r)
	if !ok {
		return
	}
	recs, err := h.vault.UpdateFeeRecipient(r.Context(), caller, addr)
	h.respond(w, r, recs, err)
}

func (h *VaultHandler) amountCall(w http.ResponseWriter, r *http.Request) (domain.Address, amountRequest, bool) {
	var req amountRequest
	caller, ok := callerOf(w, r)
	if !ok {
		return caller, req, false
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return caller, req, false
	}
	return caller, req, true
}

func (h *VaultHandler) marketCall(w http.ResponseWriter, r *http.Request) (domain.Address, domain.Address, bool) {
	caller, ok := callerOf(w, r)
	if !ok {
		return caller, domain.Address{}, false
	}
	var req marketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return caller, domain.Address{}, false
	}
	if req.MarketID != nil {
		return caller, domain.MarketAddress(*req.MarketID), true
	}
	market, err := parseAddress(req.Market, "market")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return caller, domain.Address{}, false
	}
	return caller, market, true
}

func (h *VaultHandler) addressCall(w http.ResponseWriter, r *http.Request) (domain.Address, domain.Address, bool) {
	caller, ok := callerOf(w, r)
	if !ok {
		return caller, domain.Address{}, false
	}
	var req addressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return caller, domain.Address{}, false
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return caller, domain.Address{}, false
	}
	return caller, addr, true
}

func (h *VaultHandler) respond(w http.ResponseWriter, r *http.Request, recs []domain.EventRecord, err error) {
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeEvents(w, http.StatusOK, recs)
}
