package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/holiman/uint256"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ContractKind distinguishes the contract types a ledger hosts.
type ContractKind string

const (
	ContractKindMarket ContractKind = "market"
	ContractKindVault  ContractKind = "vault"
)

// ContractState is a persisted snapshot of one contract.
type ContractState struct {
	Address   Address
	Kind      ContractKind
	MarketID  uint64
	State     json.RawMessage
	UpdatedAt time.Time
}

// StateStore persists contract snapshots and account balances.
type StateStore interface {
	SaveContract(ctx context.Context, state ContractState) error
	LoadContracts(ctx context.Context) ([]ContractState, error)
	SaveBalances(ctx context.Context, balances map[Address]*uint256.Int) error
	LoadBalances(ctx context.Context) (map[Address]*uint256.Int, error)
}

// EventRecord is one persisted ledger event.
type EventRecord struct {
	Seq       uint64          `json:"seq"`
	Contract  Address         `json:"contract"`
	Name      string          `json:"name"`
	BlockTime uint64          `json:"block_time"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventStore persists the append-only ledger event log.
type EventStore interface {
	Append(ctx context.Context, records []EventRecord) error
	ListSince(ctx context.Context, afterSeq uint64, limit int) ([]EventRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]EventRecord, error)
	LastSeq(ctx context.Context) (uint64, error)
}

// AuditEntry is a single audit log record.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
