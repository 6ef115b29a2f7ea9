package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/server/handler"
	"github.com/alanyoungcy/curvemarket/internal/server/middleware"
	"github.com/alanyoungcy/curvemarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// RateLimit is requests per RateWindow per client IP; zero disables it.
	RateLimit  int
	RateWindow time.Duration
	// AuthMaxSkew bounds how far a signed request's timestamp may drift.
	AuthMaxSkew time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Markets *handler.MarketHandler
	Vault   *handler.VaultHandler
	Events  *handler.EventHandler
	// Archive is nil when no archive bucket is configured.
	Archive *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API in front of the ledger.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain applied. limiter, replay and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, replay domain.ReplayGuard, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Markets.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.Deploy)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/outcomes", handlers.Markets.GetOutcomes)
	mux.HandleFunc("GET /api/markets/{id}/quotes", handlers.Markets.GetQuotes)
	mux.HandleFunc("GET /api/markets/{id}/quote/buy", handlers.Markets.QuoteBuy)
	mux.HandleFunc("GET /api/markets/{id}/quote/sell", handlers.Markets.QuoteSell)
	mux.HandleFunc("GET /api/markets/{id}/positions/{address}", handlers.Markets.GetPositions)
	mux.HandleFunc("POST /api/markets/{id}/buy", handlers.Markets.Buy)
	mux.HandleFunc("POST /api/markets/{id}/sell", handlers.Markets.Sell)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Markets.ClaimWinnings)
	mux.HandleFunc("POST /api/markets/{id}/refund", handlers.Markets.ClaimRefund)
	mux.HandleFunc("POST /api/markets/{id}/close", handlers.Markets.Close)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Markets.Cancel)
	mux.HandleFunc("POST /api/markets/{id}/resolver", handlers.Markets.UpdateResolver)

	// Vault.
	mux.HandleFunc("GET /api/vault", handlers.Vault.GetVault)
	mux.HandleFunc("POST /api/vault/deposit", handlers.Vault.Deposit)
	mux.HandleFunc("POST /api/vault/withdraw", handlers.Vault.Withdraw)
	mux.HandleFunc("POST /api/vault/fees/collect", handlers.Vault.CollectFees)
	mux.HandleFunc("POST /api/vault/fees/claim", handlers.Vault.ClaimFees)
	mux.HandleFunc("POST /api/vault/authorize", handlers.Vault.Authorize)
	mux.HandleFunc("POST /api/vault/revoke", handlers.Vault.Revoke)
	mux.HandleFunc("POST /api/vault/factory", handlers.Vault.SetFactory)
	mux.HandleFunc("POST /api/vault/pause", handlers.Vault.Pause)
	mux.HandleFunc("POST /api/vault/unpause", handlers.Vault.Unpause)
	mux.HandleFunc("POST /api/vault/admin", handlers.Vault.TransferAdmin)
	mux.HandleFunc("POST /api/vault/fee-recipient", handlers.Vault.UpdateFeeRecipient)

	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive/events", handlers.Archive.ListDays)
		mux.HandleFunc("GET /api/archive/events/{day}", handlers.Archive.GetDay)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Innermost first: requests flow CORS, logging, auth, rate limit, mux.
	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.SignatureAuth(cfg.AuthMaxSkew, replay, nil)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
