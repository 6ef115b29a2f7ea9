package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// quoteTTL bounds how long a quote survives without a refresh.
const quoteTTL = 10 * time.Minute

// QuoteCache implements domain.QuoteCache. Each market's quotes live in one
// hash at "<ns>:quotes:<market id>", one JSON field per outcome.
type QuoteCache struct {
	c *Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{c: c}
}

func (qc *QuoteCache) quoteKey(marketID uint64) string {
	return qc.c.key("quotes", strconv.FormatUint(marketID, 10))
}

// SetQuotes replaces every quote of a market in one transaction.
func (qc *QuoteCache) SetQuotes(ctx context.Context, marketID uint64, quotes []domain.Quote) error {
	key := qc.quoteKey(marketID)
	fields := make(map[string]any, len(quotes))
	for _, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("redis: marshal quote %d/%d: %w", marketID, q.OutcomeID, err)
		}
		fields[strconv.FormatUint(q.OutcomeID, 10)] = data
	}

	pipe := qc.c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, quoteTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes %d: %w", marketID, err)
	}
	return nil
}

// GetQuotes returns a market's quotes ordered by outcome. It returns
// domain.ErrNotFound when nothing is cached.
func (qc *QuoteCache) GetQuotes(ctx context.Context, marketID uint64) ([]domain.Quote, error) {
	vals, err := qc.c.rdb.HGetAll(ctx, qc.quoteKey(marketID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %d: %w", marketID, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	out := make([]domain.Quote, 0, len(vals))
	for field, raw := range vals {
		var q domain.Quote
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("redis: decode quote %d/%s: %w", marketID, field, err)
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OutcomeID < out[j].OutcomeID })
	return out, nil
}

// Invalidate drops a market's cached quotes.
func (qc *QuoteCache) Invalidate(ctx context.Context, marketID uint64) error {
	if err := qc.c.rdb.Del(ctx, qc.quoteKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate quotes %d: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
