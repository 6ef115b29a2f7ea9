package domain

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

// Quote is the cached price and implied odds of one outcome.
type Quote struct {
	MarketID  uint64       `json:"market_id"`
	OutcomeID uint64       `json:"outcome_id"`
	Price     *uint256.Int `json:"price"`
	OddsBPS   uint64       `json:"odds_bps"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// QuoteCache provides fast access to the latest outcome quotes.
type QuoteCache interface {
	SetQuotes(ctx context.Context, marketID uint64, quotes []Quote) error
	GetQuotes(ctx context.Context, marketID uint64) ([]Quote, error)
	Invalidate(ctx context.Context, marketID uint64) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ReplayGuard remembers signed request fingerprints for a bounded time.
type ReplayGuard interface {
	// MarkSeen records key and reports whether it was not already present.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
