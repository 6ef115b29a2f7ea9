package domain

import "github.com/holiman/uint256"

// Event is a flat notification record appended to the ledger's event log.
type Event interface {
	EventName() string
}

// Market events.

type SharesPurchased struct {
	User      Address      `json:"user"`
	MarketID  uint64       `json:"market_id"`
	OutcomeID uint64       `json:"outcome_id"`
	Shares    *uint256.Int `json:"shares"`
	Cost      *uint256.Int `json:"cost"`
	NewPrice  *uint256.Int `json:"new_price"`
	Timestamp uint64       `json:"timestamp"`
}

type SharesSold struct {
	User      Address      `json:"user"`
	MarketID  uint64       `json:"market_id"`
	OutcomeID uint64       `json:"outcome_id"`
	Shares    *uint256.Int `json:"shares"`
	Revenue   *uint256.Int `json:"revenue"`
	NewPrice  *uint256.Int `json:"new_price"`
	Timestamp uint64       `json:"timestamp"`
}

type MarketResolved struct {
	MarketID       uint64  `json:"market_id"`
	WinningOutcome uint64  `json:"winning_outcome"`
	Resolver       Address `json:"resolver"`
	Timestamp      uint64  `json:"timestamp"`
	Proof          string  `json:"proof"`
}

type MarketClosed struct {
	MarketID  uint64 `json:"market_id"`
	Timestamp uint64 `json:"timestamp"`
}

type MarketCancelled struct {
	MarketID  uint64 `json:"market_id"`
	Reason    string `json:"reason"`
	Timestamp uint64 `json:"timestamp"`
}

type WinningsClaimed struct {
	User      Address      `json:"user"`
	MarketID  uint64       `json:"market_id"`
	Payout    *uint256.Int `json:"payout"`
	Timestamp uint64       `json:"timestamp"`
}

type RefundClaimed struct {
	User      Address      `json:"user"`
	MarketID  uint64       `json:"market_id"`
	Amount    *uint256.Int `json:"amount"`
	Timestamp uint64       `json:"timestamp"`
}

type ResolverUpdated struct {
	MarketID         uint64  `json:"market_id"`
	PreviousResolver Address `json:"previous_resolver"`
	NewResolver      Address `json:"new_resolver"`
}

// Vault events.

type FundsDeposited struct {
	MarketID     uint64       `json:"market_id"`
	Amount       *uint256.Int `json:"amount"`
	FromContract Address      `json:"from_contract"`
}

type FundsWithdrawn struct {
	MarketID  uint64       `json:"market_id"`
	Recipient Address      `json:"recipient"`
	Amount    *uint256.Int `json:"amount"`
}

type FeesCollected struct {
	MarketID uint64       `json:"market_id"`
	Amount   *uint256.Int `json:"amount"`
}

type FeesClaimed struct {
	Recipient Address      `json:"recipient"`
	Amount    *uint256.Int `json:"amount"`
}

type MarketAuthorized struct {
	Market Address `json:"market"`
}

type MarketRevoked struct {
	Market Address `json:"market"`
}

type VaultPauseStatusChanged struct {
	Paused bool `json:"paused"`
}

type AdminTransferred struct {
	PreviousAdmin Address `json:"previous_admin"`
	NewAdmin      Address `json:"new_admin"`
}

func (SharesPurchased) EventName() string         { return "SharesPurchased" }
func (SharesSold) EventName() string              { return "SharesSold" }
func (MarketResolved) EventName() string          { return "MarketResolved" }
func (MarketClosed) EventName() string            { return "MarketClosed" }
func (MarketCancelled) EventName() string         { return "MarketCancelled" }
func (WinningsClaimed) EventName() string         { return "WinningsClaimed" }
func (RefundClaimed) EventName() string           { return "RefundClaimed" }
func (ResolverUpdated) EventName() string         { return "ResolverUpdated" }
func (FundsDeposited) EventName() string          { return "FundsDeposited" }
func (FundsWithdrawn) EventName() string          { return "FundsWithdrawn" }
func (FeesCollected) EventName() string           { return "FeesCollected" }
func (FeesClaimed) EventName() string             { return "FeesClaimed" }
func (MarketAuthorized) EventName() string        { return "MarketAuthorized" }
func (MarketRevoked) EventName() string           { return "MarketRevoked" }
func (VaultPauseStatusChanged) EventName() string { return "VaultPauseStatusChanged" }
func (AdminTransferred) EventName() string        { return "AdminTransferred" }
