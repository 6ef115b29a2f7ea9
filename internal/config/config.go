// Package config defines the top-level configuration for the curvemarket
// operator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CURVEMARKET_* environment variables.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Market   MarketConfig   `toml:"market"`
	Vault    VaultConfig    `toml:"vault"`
	Operator OperatorConfig `toml:"operator"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig selects where contract state lives and seeds account balances.
type LedgerConfig struct {
	// StateBackend is "memory" or "postgres".
	StateBackend string `toml:"state_backend"`
	// ClockSkew is added to wall time when computing block time.
	ClockSkew duration `toml:"clock_skew"`
	// GenesisBalances maps hex addresses to mote amounts, minted on first start.
	GenesisBalances map[string]string `toml:"genesis_balances"`
}

// MarketConfig holds curve defaults and the deployment policy.
type MarketConfig struct {
	InitialPrice  string   `toml:"initial_price"`
	KConstant     string   `toml:"k_constant"`
	DefaultFeeBPS uint64   `toml:"default_fee_bps"`
	MaxFeeBPS     uint64   `toml:"max_fee_bps"`
	MinDuration   duration `toml:"min_duration"`
	MaxDuration   duration `toml:"max_duration"`
}

// VaultConfig holds the escrow roles. Empty values default to the operator.
type VaultConfig struct {
	Admin        string `toml:"admin"`
	FeeRecipient string `toml:"fee_recipient"`
}

// OperatorConfig points at the operator's encrypted signing key.
type OperatorConfig struct {
	KeyFile       string `toml:"key_file"`
	KeyPassphrase string `toml:"key_passphrase"`
	// PrivateKey is a hex key used when no key file is configured.
	PrivateKey string `toml:"private_key"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables Redis.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables event archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the number of requests a client may make per RateWindow.
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	AuthMaxSkew duration `toml:"auth_max_skew"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook"`
	Events            []string `toml:"events"`
}

// KeeperConfig controls the background maintenance loop.
type KeeperConfig struct {
	Interval        duration `toml:"interval"`
	ArchiveInterval duration `toml:"archive_interval"`
	// ArchiveAfter is how old an event must be before it is archived.
	ArchiveAfter duration `toml:"archive_after"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			StateBackend:    "memory",
			GenesisBalances: map[string]string{},
		},
		Market: MarketConfig{
			InitialPrice:  "10000000",
			KConstant:     "1000000",
			DefaultFeeBPS: 200,
			MaxFeeBPS:     domain.MaxFeeBPS,
			MinDuration:   duration{time.Hour},
			MaxDuration:   duration{365 * 24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "curvemarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
			AuthMaxSkew: duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"MarketResolved", "MarketCancelled"},
		},
		Keeper: KeeperConfig{
			Interval:        duration{30 * time.Second},
			ArchiveInterval: duration{24 * time.Hour},
			ArchiveAfter:    duration{7 * 24 * time.Hour},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"keeper": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, keeper, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledger
	switch c.Ledger.StateBackend {
	case "memory":
	case "postgres":
		errs = append(errs, c.Postgres.validate()...)
	default:
		errs = append(errs, fmt.Sprintf("ledger: unknown state_backend %q (valid: memory, postgres)", c.Ledger.StateBackend))
	}
	for addr, amount := range c.Ledger.GenesisBalances {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("ledger: genesis_balances key %q is not an address", addr))
		}
		if _, err := domain.ParseAmount(amount); err != nil {
			errs = append(errs, fmt.Sprintf("ledger: genesis_balances[%s]: %v", addr, err))
		}
	}

	// Market
	initialPrice, ipErr := domain.ParseAmount(c.Market.InitialPrice)
	if ipErr != nil {
		errs = append(errs, fmt.Sprintf("market: initial_price: %v", ipErr))
	}
	k, kErr := domain.ParseAmount(c.Market.KConstant)
	if kErr != nil {
		errs = append(errs, fmt.Sprintf("market: k_constant: %v", kErr))
	}
	if ipErr == nil && kErr == nil && initialPrice.IsZero() && k.IsZero() {
		errs = append(errs, "market: initial_price and k_constant cannot both be zero")
	}
	if c.Market.MaxFeeBPS > domain.MaxFeeBPS {
		errs = append(errs, fmt.Sprintf("market: max_fee_bps must be <= %d", domain.MaxFeeBPS))
	}
	if c.Market.DefaultFeeBPS > c.Market.MaxFeeBPS {
		errs = append(errs, "market: default_fee_bps must not exceed max_fee_bps")
	}
	if c.Market.MinDuration.Duration < 0 {
		errs = append(errs, "market: min_duration must be >= 0")
	}
	if c.Market.MaxDuration.Duration < c.Market.MinDuration.Duration {
		errs = append(errs, "market: max_duration must not be below min_duration")
	}

	// Vault
	for name, v := range map[string]string{"admin": c.Vault.Admin, "fee_recipient": c.Vault.FeeRecipient} {
		if v != "" && !common.IsHexAddress(v) {
			errs = append(errs, fmt.Sprintf("vault: %s %q is not an address", name, v))
		}
	}

	// Operator
	if c.Operator.KeyFile == "" && c.Operator.PrivateKey == "" {
		errs = append(errs, "operator: either key_file or private_key must be set")
	}
	if c.Operator.KeyFile != "" && c.Operator.KeyPassphrase == "" {
		errs = append(errs, "operator: key_passphrase is required when key_file is set")
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket != "" && c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty when bucket is set")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
		if c.Server.AuthMaxSkew.Duration <= 0 {
			errs = append(errs, "server: auth_max_skew must be > 0")
		}
	}

	// Keeper
	if c.Mode != "server" && c.Keeper.Interval.Duration <= 0 {
		errs = append(errs, "keeper: interval must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (p PostgresConfig) validate() []string {
	var errs []string
	if strings.TrimSpace(p.DSN) == "" {
		if p.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if p.Port <= 0 || p.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", p.Port))
		}
		if p.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if p.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if p.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if p.PoolMinConns > p.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}
	return errs
}
