package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// KeeperConfig sets how often the keeper runs its jobs.
type KeeperConfig struct {
	Operator        domain.Address
	Interval        time.Duration
	ArchiveInterval time.Duration
	ArchiveAfter    time.Duration
}

// Keeper performs operator housekeeping: it closes markets whose end time
// has passed and archives old events to cold storage.
type Keeper struct {
	markets  *MarketService
	archiver domain.Archiver
	cfg      KeeperConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewKeeper creates a Keeper. archiver may be nil, which disables archival.
func NewKeeper(markets *MarketService, archiver domain.Archiver, cfg KeeperConfig, logger *slog.Logger) *Keeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ArchiveInterval <= 0 {
		cfg.ArchiveInterval = 24 * time.Hour
	}
	return &Keeper{
		markets:  markets,
		archiver: archiver,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "keeper")),
	}
}

// Run executes the keeper jobs until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.cfg.Interval)
	defer ticker.Stop()

	var archiveC <-chan time.Time
	if k.archiver != nil {
		archiveTicker := time.NewTicker(k.cfg.ArchiveInterval)
		defer archiveTicker.Stop()
		archiveC = archiveTicker.C
	}

	k.logger.InfoContext(ctx, "keeper: started",
		slog.Duration("interval", k.cfg.Interval),
		slog.Bool("archive", k.archiver != nil),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			k.CloseExpired(ctx)
		case <-archiveC:
			if _, err := k.Archive(ctx); err != nil {
				k.logger.ErrorContext(ctx, "keeper: archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// CloseExpired closes every Active market past its end time and returns how
// many it closed. Failures are logged and the rest still run.
func (k *Keeper) CloseExpired(ctx context.Context) int {
	var closed int
	for _, id := range k.markets.Expired() {
		if _, err := k.markets.Close(ctx, k.cfg.Operator, id); err != nil {
			if errors.Is(err, domain.ErrMarketNotActive) {
				continue
			}
			k.logger.WarnContext(ctx, "keeper: close market failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed++
		k.logger.InfoContext(ctx, "keeper: closed expired market", slog.Uint64("market_id", id))
	}
	return closed
}

// Archive copies events older than the archive horizon to cold storage.
func (k *Keeper) Archive(ctx context.Context) (int64, error) {
	if k.archiver == nil {
		return 0, nil
	}
	before := k.now().UTC().Add(-k.cfg.ArchiveAfter)
	n, err := k.archiver.ArchiveEvents(ctx, before)
	if err != nil {
		return n, err
	}
	if n > 0 {
		k.logger.InfoContext(ctx, "keeper: archived events",
			slog.Int64("events", n),
			slog.Time("before", before),
		)
	}
	return n, nil
}
