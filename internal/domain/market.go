package domain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MarketKind is the shape of a market's outcome set.
type MarketKind string

const (
	MarketKindBinary         MarketKind = "binary"
	MarketKindMultipleChoice MarketKind = "multiple_choice"
	MarketKindCompound       MarketKind = "compound"
)

// ParseMarketKind validates a kind read from config or the wire.
func ParseMarketKind(s string) (MarketKind, error) {
	switch k := MarketKind(s); k {
	case MarketKindBinary, MarketKindMultipleChoice, MarketKindCompound:
		return k, nil
	}
	return "", fmt.Errorf("unknown market kind %q", s)
}

// AllowsOutcomeCount reports whether a market of this kind may have n
// outcomes. Binary needs exactly two, multiple choice at least two and
// compound markets are unconstrained.
func (k MarketKind) AllowsOutcomeCount(n uint64) bool {
	switch k {
	case MarketKindBinary:
		return n == 2
	case MarketKindMultipleChoice:
		return n >= 2
	case MarketKindCompound:
		return true
	}
	return false
}

// MarketStatus is a market's lifecycle state.
//
//	Active -> Closed -> Resolved
//	Active | Closed -> Cancelled
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusClosed    MarketStatus = "closed"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s MarketStatus) Terminal() bool {
	switch s {
	case MarketStatusResolved, MarketStatusCancelled:
		return true
	case MarketStatusActive, MarketStatusClosed:
		return false
	}
	return false
}

// ParseMarketStatus validates a status read from storage or the wire.
func ParseMarketStatus(s string) (MarketStatus, error) {
	switch st := MarketStatus(s); st {
	case MarketStatusActive, MarketStatusClosed, MarketStatusResolved, MarketStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown market status %q", s)
}

// MarketMetadata is fixed when the market is initialized.
type MarketMetadata struct {
	ID               uint64     `json:"id"`
	Kind             MarketKind `json:"kind"`
	Question         string     `json:"question"`
	OutcomeNames     []string   `json:"outcome_names"`
	OutcomeCount     uint64     `json:"outcome_count"`
	Creator          Address    `json:"creator"`
	CreatedAt        uint64     `json:"created_at"`
	EndTime          uint64     `json:"end_time"`
	ResolutionSource string     `json:"resolution_source"`
	Category         string     `json:"category"`
}

// MarketConfig holds the admin-mutable settings of a market.
type MarketConfig struct {
	Admin          Address `json:"admin"`
	Resolver       Address `json:"resolver"`
	PlatformFeeBPS uint64  `json:"platform_fee_bps"`
	Vault          Address `json:"vault"`
	Factory        Address `json:"factory"`
}

// MaxFeeBPS caps the platform fee at 10%.
const MaxFeeBPS = 1000

// MarketInfo is the summary view of a market.
type MarketInfo struct {
	ID               uint64       `json:"id"`
	Kind             MarketKind   `json:"kind"`
	Question         string       `json:"question"`
	Creator          Address      `json:"creator"`
	EndTime          uint64       `json:"end_time"`
	Status           MarketStatus `json:"status"`
	TotalLiquidity   *uint256.Int `json:"total_liquidity"`
	Category         string       `json:"category"`
	ResolutionSource string       `json:"resolution_source"`
}

// OutcomeOdds is an outcome's implied probability in basis points.
type OutcomeOdds struct {
	OutcomeID uint64 `json:"outcome_id"`
	BPS       uint64 `json:"bps"`
}
