package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// ReplayGuard implements domain.ReplayGuard with SET NX so that every API
// process sharing the Redis instance rejects the same replayed request.
type ReplayGuard struct {
	c *Client
}

// NewReplayGuard creates a ReplayGuard backed by the given Client.
func NewReplayGuard(c *Client) *ReplayGuard {
	return &ReplayGuard{c: c}
}

// MarkSeen stores key for ttl. It returns false if key was already stored.
func (g *ReplayGuard) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.c.rdb.SetNX(ctx, g.c.key("replay", key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark request %s: %w", key, err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.ReplayGuard = (*ReplayGuard)(nil)
