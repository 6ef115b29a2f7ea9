package domain

import (
	"errors"
	"fmt"
)

// Infrastructure errors shared by stores, caches and transports.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")
)

// ErrorClass groups ledger error codes by what went wrong.
type ErrorClass string

const (
	ClassAccess  ErrorClass = "access"
	ClassState   ErrorClass = "state"
	ClassTrading ErrorClass = "trading"
	ClassVault   ErrorClass = "vault"
	ClassFactory ErrorClass = "factory"
	ClassClaims  ErrorClass = "claims"
	ClassMath    ErrorClass = "math"
	ClassInit    ErrorClass = "init"
	ClassUnknown ErrorClass = "unknown"
)

// Error is a ledger failure. A call that returns one has no lasting effect;
// Code is the only diagnostic surfaced to the caller.
type Error struct {
	Code uint16
	Name string
	msg  string
}

func newError(code uint16, name, msg string) *Error {
	return &Error{Code: code, Name: name, msg: msg}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.msg, e.Code)
}

// Class reports the error's group, derived from the code's decade.
func (e *Error) Class() ErrorClass {
	switch e.Code / 10 {
	case 0:
		return ClassAccess
	case 1:
		return ClassState
	case 2:
		return ClassTrading
	case 3:
		return ClassVault
	case 4:
		return ClassFactory
	case 5:
		return ClassClaims
	case 6:
		return ClassMath
	case 7:
		return ClassInit
	}
	return ClassUnknown
}

// AsLedgerError extracts the ledger error from err's chain.
func AsLedgerError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// ClassOf returns the class of the ledger error wrapped in err, or
// ClassUnknown when err carries none.
func ClassOf(err error) ErrorClass {
	if le, ok := AsLedgerError(err); ok {
		return le.Class()
	}
	return ClassUnknown
}

// Access control.
var (
	ErrAccessDenied        = newError(1, "AccessDenied", "access denied")
	ErrNotAdmin            = newError(2, "NotAdmin", "caller is not admin")
	ErrNotResolver         = newError(3, "NotResolver", "caller is not resolver")
	ErrNotAuthorizedMarket = newError(4, "NotAuthorizedMarket", "caller is not an authorized market")
	ErrNotFactory          = newError(5, "NotFactory", "caller is not factory")
)

// Market state.
var (
	ErrMarketNotActive       = newError(10, "MarketNotActive", "market is not active")
	ErrMarketNotClosed       = newError(11, "MarketNotClosed", "market is not closed")
	ErrMarketNotResolved     = newError(12, "MarketNotResolved", "market is not resolved")
	ErrMarketAlreadyResolved = newError(13, "MarketAlreadyResolved", "market already resolved")
	ErrMarketNotEnded        = newError(14, "MarketNotEnded", "market has not ended")
	ErrMarketCancelled       = newError(15, "MarketCancelled", "market is cancelled")
	ErrMarketAlreadyEnded    = newError(16, "MarketAlreadyEnded", "market already ended")
	ErrMarketNotCancelled    = newError(17, "MarketNotCancelled", "market is not cancelled")
)

// Trading.
var (
	ErrInsufficientShares = newError(20, "InsufficientShares", "insufficient shares")
	ErrInsufficientFunds  = newError(21, "InsufficientFunds", "insufficient funds")
	ErrSlippageExceeded   = newError(22, "SlippageExceeded", "slippage exceeded")
	ErrInvalidOutcome     = newError(23, "InvalidOutcome", "invalid outcome")
	ErrZeroAmount         = newError(24, "ZeroAmount", "amount is zero")
	ErrInvalidShareAmount = newError(25, "InvalidShareAmount", "invalid share amount")
	ErrMinimumNotMet      = newError(26, "MinimumNotMet", "minimum not met")
)

// Vault.
var (
	ErrUnauthorizedMarket       = newError(30, "UnauthorizedMarket", "caller is not authorized for vault")
	ErrInsufficientVaultBalance = newError(31, "InsufficientVaultBalance", "insufficient vault balance")
	ErrVaultPaused              = newError(32, "VaultPaused", "vault is paused")
	ErrMarketAlreadyAuthorized  = newError(33, "MarketAlreadyAuthorized", "market already authorized")
	ErrMarketNotAuthorized      = newError(34, "MarketNotAuthorized", "market not authorized")
	ErrExceedsMarketBalance     = newError(35, "ExceedsMarketBalance", "amount exceeds market balance")
)

// Market creation policy.
var (
	ErrFactoryPaused                = newError(40, "FactoryPaused", "market creation is paused")
	ErrInvalidMarketDuration        = newError(41, "InvalidMarketDuration", "invalid market duration")
	ErrInsufficientInitialLiquidity = newError(42, "InsufficientInitialLiquidity", "insufficient initial liquidity")
	ErrInvalidOutcomeCount          = newError(43, "InvalidOutcomeCount", "invalid outcome count")
	ErrInvalidQuestion              = newError(44, "InvalidQuestion", "invalid question")
	ErrVaultNotSet                  = newError(45, "VaultNotSet", "vault not set")
	ErrFeeTooHigh                   = newError(46, "FeeTooHigh", "fee too high")
)

// Claims.
var (
	ErrAlreadyClaimed     = newError(50, "AlreadyClaimed", "already claimed")
	ErrNothingToClaim     = newError(51, "NothingToClaim", "nothing to claim")
	ErrNoWinningPosition  = newError(52, "NoWinningPosition", "no winning position")
	ErrNoPositionToRefund = newError(53, "NoPositionToRefund", "no position to refund")
)

// Arithmetic.
var (
	ErrOverflow       = newError(60, "Overflow", "arithmetic overflow")
	ErrUnderflow      = newError(61, "Underflow", "arithmetic underflow")
	ErrDivisionByZero = newError(62, "DivisionByZero", "division by zero")
)

// Initialization.
var (
	ErrAlreadyInitialized = newError(70, "AlreadyInitialized", "already initialized")
	ErrNotInitialized     = newError(71, "NotInitialized", "not initialized")
	ErrInvalidInitParams  = newError(72, "InvalidInitParams", "invalid init parameters")
)
