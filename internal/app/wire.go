package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/curvemarket/internal/blob/s3"
	"github.com/alanyoungcy/curvemarket/internal/cache/redis"
	"github.com/alanyoungcy/curvemarket/internal/config"
	"github.com/alanyoungcy/curvemarket/internal/crypto"
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/notify"
	"github.com/alanyoungcy/curvemarket/internal/server/handler"
	"github.com/alanyoungcy/curvemarket/internal/store/memory"
	"github.com/alanyoungcy/curvemarket/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the modes need. It
// is constructed by Wire and torn down by the returned cleanup function.
// Optional collaborators are nil when not configured.
type Dependencies struct {
	// Operator identity.
	Signer *crypto.Signer

	// Stores
	StateStore domain.StateStore
	EventStore domain.EventStore
	AuditStore domain.AuditStore

	// Caches (Redis only)
	QuoteCache  domain.QuoteCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Signed request replay protection. Redis-backed when configured so
	// that every API process shares it.
	ReplayGuard domain.ReplayGuard

	// Blob storage (S3 only)
	Archiver *s3blob.EventArchiver

	// Notifications
	Notifier *notify.Notifier

	// Health probes by dependency name.
	Health map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

	// --- Operator key ---
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey: cfg.Operator.PrivateKey,
		KeyFile:       cfg.Operator.KeyFile,
		Passphrase:    cfg.Operator.KeyPassphrase,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: operator key: %w", err)
	}
	deps.Signer, err = crypto.NewSigner(key)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: operator signer: %w", err)
	}

	// --- Ledger state ---
	switch cfg.Ledger.StateBackend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.StateStore = pgClient.StateStore()
		deps.EventStore = pgClient.EventStore()
		deps.AuditStore = pgClient.AuditStore()
		deps.Health["postgres"] = handler.PingFunc(pgClient.Pool().Ping)
	default:
		deps.StateStore = memory.NewStateStore()
		deps.EventStore = memory.NewEventStore()
		deps.AuditStore = memory.NewAuditStore()
	}

	// --- Redis ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.ReplayGuard = redis.NewReplayGuard(redisClient)
		deps.Health["redis"] = redisClient
	}

	if deps.ReplayGuard == nil {
		deps.ReplayGuard = memory.NewReplayGuard()
	}

	// --- S3 event archive ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			deps.EventStore,
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.AuditStore,
		)
		deps.Health["s3"] = handler.PingFunc(s3Client.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
