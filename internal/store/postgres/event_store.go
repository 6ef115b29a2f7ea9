package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts records in one transaction. A duplicate sequence number
// fails the whole batch with domain.ErrAlreadyExists.
func (s *EventStore) Append(ctx context.Context, records []domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin append events: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO ledger_events (seq, contract, name, block_time, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`
	for _, r := range records {
		var created *time.Time
		if !r.CreatedAt.IsZero() {
			t := r.CreatedAt
			created = &t
		}
		batch.Queue(query, int64(r.Seq), r.Contract.Hex(), r.Name, int64(r.BlockTime), []byte(r.Payload), created)
	}

	br := tx.SendBatch(ctx, batch)
	for i, r := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("postgres: event %d: %w", r.Seq, domain.ErrAlreadyExists)
			}
			return fmt.Errorf("postgres: append event batch item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close event batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit events: %w", err)
	}
	return nil
}

// ListSince returns up to limit records with seq > afterSeq in order.
func (s *EventStore) ListSince(ctx context.Context, afterSeq uint64, limit int) ([]domain.EventRecord, error) {
	query := `
		SELECT seq, contract, name, block_time, payload, created_at
		FROM ledger_events
		WHERE seq > $1
		ORDER BY seq ASC`
	args := []any{int64(afterSeq)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.query(ctx, "list events since", query, args...)
}

// ListBefore returns every record created before the given time.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.EventRecord, error) {
	const query = `
		SELECT seq, contract, name, block_time, payload, created_at
		FROM ledger_events
		WHERE created_at < $1
		ORDER BY seq ASC`
	return s.query(ctx, "list events before", query, before)
}

// LastSeq returns the highest stored sequence number, or 0.
func (s *EventStore) LastSeq(ctx context.Context) (uint64, error) {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM ledger_events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("postgres: last event seq: %w", err)
	}
	return uint64(seq), nil
}

func (s *EventStore) query(ctx context.Context, action, query string, args ...any) ([]domain.EventRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", action, err)
	}
	defer rows.Close()

	var out []domain.EventRecord
	for rows.Next() {
		var (
			r         domain.EventRecord
			seq       int64
			contract  string
			blockTime int64
			payload   []byte
		)
		if err := rows.Scan(&seq, &contract, &r.Name, &blockTime, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		r.Seq = uint64(seq)
		r.Contract = common.HexToAddress(contract)
		r.BlockTime = uint64(blockTime)
		r.Payload = payload
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", action, err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
