package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// StateStore implements domain.StateStore using PostgreSQL. Amounts are
// stored as NUMERIC(78,0) and travel as decimal strings.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a new StateStore backed by the given connection pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// SaveContract upserts one contract snapshot.
func (s *StateStore) SaveContract(ctx context.Context, st domain.ContractState) error {
	const query = `
		INSERT INTO contract_states (address, kind, market_id, state, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (address) DO UPDATE SET
			kind       = EXCLUDED.kind,
			market_id  = EXCLUDED.market_id,
			state      = EXCLUDED.state,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, st.Address.Hex(), string(st.Kind), int64(st.MarketID), []byte(st.State))
	if err != nil {
		return fmt.Errorf("postgres: save contract %s: %w", st.Address.Hex(), err)
	}
	return nil
}

// LoadContracts returns every snapshot, vault first and markets by id.
func (s *StateStore) LoadContracts(ctx context.Context) ([]domain.ContractState, error) {
	const query = `
		SELECT address, kind, market_id, state, updated_at
		FROM contract_states
		ORDER BY (kind = 'vault') DESC, market_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load contracts: %w", err)
	}
	defer rows.Close()

	var out []domain.ContractState
	for rows.Next() {
		var (
			st       domain.ContractState
			addr     string
			kind     string
			marketID int64
			raw      []byte
		)
		if err := rows.Scan(&addr, &kind, &marketID, &raw, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan contract: %w", err)
		}
		st.Address = common.HexToAddress(addr)
		st.Kind = domain.ContractKind(kind)
		st.MarketID = uint64(marketID)
		st.State = raw
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load contracts rows: %w", err)
	}
	return out, nil
}

// SaveBalances replaces the balance table in one transaction.
func (s *StateStore) SaveBalances(ctx context.Context, balances map[domain.Address]*uint256.Int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save balances: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM account_balances`); err != nil {
		return fmt.Errorf("postgres: clear balances: %w", err)
	}

	batch := &pgx.Batch{}
	const query = `INSERT INTO account_balances (address, balance, updated_at) VALUES ($1, $2::numeric, NOW())`
	for addr, bal := range balances {
		if bal == nil || bal.IsZero() {
			continue
		}
		batch.Queue(query, addr.Hex(), bal.Dec())
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: save balance batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close balance batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit balances: %w", err)
	}
	return nil
}

// LoadBalances returns every stored balance.
func (s *StateStore) LoadBalances(ctx context.Context) (map[domain.Address]*uint256.Int, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, balance::text FROM account_balances`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load balances: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Address]*uint256.Int)
	for rows.Next() {
		var addr, dec string
		if err := rows.Scan(&addr, &dec); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		bal, err := uint256.FromDecimal(dec)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse balance of %s: %w", addr, err)
		}
		out[common.HexToAddress(addr)] = bal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load balances rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.StateStore = (*StateStore)(nil)
