package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/curvemarket/internal/config"
	"github.com/alanyoungcy/curvemarket/internal/curve"
	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
	"github.com/alanyoungcy/curvemarket/internal/server"
	"github.com/alanyoungcy/curvemarket/internal/server/handler"
	"github.com/alanyoungcy/curvemarket/internal/server/ws"
	"github.com/alanyoungcy/curvemarket/internal/service"
)

// runtime is the restored ledger plus the services built on it.
type runtime struct {
	deps    *Dependencies
	ledger  *service.Ledger
	markets *service.MarketService
	vault   *service.VaultService
}

// buildRuntime restores the ledger from the state store, bootstraps the vault
// on first start and builds the services.
func (a *App) buildRuntime(ctx context.Context, deps *Dependencies) (*runtime, error) {
	skew := a.cfg.Ledger.ClockSkew.Duration
	env := host.New(host.WithClock(func() time.Time { return time.Now().Add(skew) }))

	ledger := service.NewLedger(env, deps.StateStore, deps.EventStore, deps.AuditStore, a.logger).
		WithNotifier(deps.Notifier)
	if deps.QuoteCache != nil {
		ledger.WithQuoteCache(deps.QuoteCache)
	}
	if deps.SignalBus != nil {
		ledger.WithSignalBus(deps.SignalBus)
	}
	if deps.LockManager != nil {
		ledger.WithLockManager(deps.LockManager, 0)
	}

	restored, err := ledger.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore ledger: %w", err)
	}

	operator := deps.Signer.Address()
	genesis, err := genesisBalances(a.cfg.Ledger.GenesisBalances)
	if err != nil {
		return nil, err
	}
	if err := ledger.Bootstrap(ctx, service.BootstrapParams{
		Operator:     operator,
		Admin:        optionalAddress(a.cfg.Vault.Admin),
		FeeRecipient: optionalAddress(a.cfg.Vault.FeeRecipient),
		Genesis:      genesis,
	}); err != nil {
		return nil, fmt.Errorf("bootstrap ledger: %w", err)
	}

	policy, err := marketPolicy(a.cfg.Market, operator)
	if err != nil {
		return nil, err
	}
	markets := service.NewMarketService(ledger, policy, a.logger)
	if deps.QuoteCache != nil {
		markets.WithQuoteCache(deps.QuoteCache)
	}

	a.logger.InfoContext(ctx, "ledger ready",
		slog.Int("restored_contracts", restored),
		slog.String("operator", operator.Hex()),
		slog.String("policy", policy.String()),
	)

	return &runtime{
		deps:    deps,
		ledger:  ledger,
		markets: markets,
		vault:   service.NewVaultService(ledger, a.logger),
	}, nil
}

// ServerMode serves the HTTP and WebSocket API.
func (a *App) ServerMode(ctx context.Context, rt *runtime) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, rt)
	return g.Wait()
}

// KeeperMode runs only the maintenance loop.
func (a *App) KeeperMode(ctx context.Context, rt *runtime) error {
	a.logger.InfoContext(ctx, "starting keeper mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startKeeper(ctx, g, rt)
	return g.Wait()
}

// FullMode runs the API and the keeper in one process over one ledger.
func (a *App) FullMode(ctx context.Context, rt *runtime) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startKeeper(ctx, g, rt)
	a.startHTTPServer(ctx, g, rt)
	return g.Wait()
}

func (a *App) startKeeper(ctx context.Context, g *errgroup.Group, rt *runtime) {
	var archiver domain.Archiver
	if rt.deps.Archiver != nil {
		archiver = rt.deps.Archiver
	}
	keeper := service.NewKeeper(rt.markets, archiver, service.KeeperConfig{
		Operator:        rt.deps.Signer.Address(),
		Interval:        a.cfg.Keeper.Interval.Duration,
		ArchiveInterval: a.cfg.Keeper.ArchiveInterval.Duration,
		ArchiveAfter:    a.cfg.Keeper.ArchiveAfter.Duration,
	}, a.logger)
	g.Go(func() error {
		return keeper.Run(ctx)
	})
}

// startHTTPServer adds the API server and WebSocket hub to g. The server
// shuts down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, rt *runtime) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	// Events reach the hub through Redis when it is configured, so a
	// separate keeper process is visible too. Otherwise feed it in-process.
	hub := ws.NewHub(rt.deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	if rt.deps.SignalBus == nil {
		rt.ledger.OnEvent(hub.Publish)
	}
	g.Go(func() error {
		return hub.Run(ctx)
	})

	operator := rt.deps.Signer.Address()

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(rt.deps.Health, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, operator, rt.ledger),
		Markets: handler.NewMarketHandler(rt.markets, a.logger),
		Vault:   handler.NewVaultHandler(rt.vault, a.logger),
		Events:  handler.NewEventHandler(rt.ledger, a.logger),
	}
	if rt.deps.Archiver != nil {
		handlers.Archive = handler.NewArchiveHandler(rt.deps.Archiver, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
		AuthMaxSkew: a.cfg.Server.AuthMaxSkew.Duration,
	}, handlers, hub, rt.deps.RateLimiter, rt.deps.ReplayGuard, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// genesisBalances parses the configured genesis map. Validate has already
// checked every entry, so errors here indicate a config built in code.
func genesisBalances(raw map[string]string) (map[domain.Address]*uint256.Int, error) {
	out := make(map[domain.Address]*uint256.Int, len(raw))
	for addr, amount := range raw {
		a, err := domain.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("genesis balance %q: %w", addr, err)
		}
		v, err := domain.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("genesis balance %q: %w", addr, err)
		}
		out[a] = v
	}
	return out, nil
}

func marketPolicy(mc config.MarketConfig, operator domain.Address) (service.Policy, error) {
	initial, err := domain.ParseAmount(mc.InitialPrice)
	if err != nil {
		return service.Policy{}, fmt.Errorf("market initial_price: %w", err)
	}
	k, err := domain.ParseAmount(mc.KConstant)
	if err != nil {
		return service.Policy{}, fmt.Errorf("market k_constant: %w", err)
	}
	return service.Policy{
		Operator:      operator,
		DefaultFeeBPS: mc.DefaultFeeBPS,
		MaxFeeBPS:     mc.MaxFeeBPS,
		MinDuration:   mc.MinDuration.Duration,
		MaxDuration:   mc.MaxDuration.Duration,
		Curve:         curve.Params{InitialPrice: initial, K: k},
	}, nil
}

func optionalAddress(s string) domain.Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Address{}
	}
	return common.HexToAddress(s)
}
