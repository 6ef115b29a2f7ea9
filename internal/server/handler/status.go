package handler

import (
	"net/http"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// LedgerStatus is the subset of the ledger the status endpoint reports on.
type LedgerStatus interface {
	BlockTime() uint64
	MarketIDs() []uint64
}

// StatusHandler serves the operator status.
type StatusHandler struct {
	mode     string
	operator domain.Address
	ledger   LedgerStatus
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, operator domain.Address, ledger LedgerStatus) *StatusHandler {
	return &StatusHandler{mode: mode, operator: operator, ledger: ledger}
}

// GetStatus responds with the run mode, operator and ledger clock.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":       h.mode,
		"operator":   h.operator,
		"block_time": h.ledger.BlockTime(),
		"markets":    len(h.ledger.MarketIDs()),
	})
}
