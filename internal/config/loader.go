package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CURVEMARKET_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CURVEMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setStr(&cfg.Ledger.StateBackend, "CURVEMARKET_LEDGER_STATE_BACKEND")
	setDuration(&cfg.Ledger.ClockSkew, "CURVEMARKET_LEDGER_CLOCK_SKEW")

	// ── Market ──
	setStr(&cfg.Market.InitialPrice, "CURVEMARKET_MARKET_INITIAL_PRICE")
	setStr(&cfg.Market.KConstant, "CURVEMARKET_MARKET_K_CONSTANT")
	setUint64(&cfg.Market.DefaultFeeBPS, "CURVEMARKET_MARKET_DEFAULT_FEE_BPS")
	setUint64(&cfg.Market.MaxFeeBPS, "CURVEMARKET_MARKET_MAX_FEE_BPS")
	setDuration(&cfg.Market.MinDuration, "CURVEMARKET_MARKET_MIN_DURATION")
	setDuration(&cfg.Market.MaxDuration, "CURVEMARKET_MARKET_MAX_DURATION")

	// ── Vault ──
	setStr(&cfg.Vault.Admin, "CURVEMARKET_VAULT_ADMIN")
	setStr(&cfg.Vault.FeeRecipient, "CURVEMARKET_VAULT_FEE_RECIPIENT")

	// ── Operator ──
	setStr(&cfg.Operator.KeyFile, "CURVEMARKET_OPERATOR_KEY_FILE")
	setStr(&cfg.Operator.KeyPassphrase, "CURVEMARKET_OPERATOR_KEY_PASSPHRASE")
	setStr(&cfg.Operator.PrivateKey, "CURVEMARKET_OPERATOR_PRIVATE_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CURVEMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CURVEMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CURVEMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CURVEMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CURVEMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CURVEMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CURVEMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CURVEMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CURVEMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CURVEMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CURVEMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CURVEMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CURVEMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CURVEMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CURVEMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CURVEMARKET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CURVEMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CURVEMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "CURVEMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CURVEMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CURVEMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CURVEMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CURVEMARKET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CURVEMARKET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CURVEMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CURVEMARKET_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "CURVEMARKET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "CURVEMARKET_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.AuthMaxSkew, "CURVEMARKET_SERVER_AUTH_MAX_SKEW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CURVEMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CURVEMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CURVEMARKET_NOTIFY_DISCORD_WEBHOOK")
	setStringSlice(&cfg.Notify.Events, "CURVEMARKET_NOTIFY_EVENTS")

	// ── Keeper ──
	setDuration(&cfg.Keeper.Interval, "CURVEMARKET_KEEPER_INTERVAL")
	setDuration(&cfg.Keeper.ArchiveInterval, "CURVEMARKET_KEEPER_ARCHIVE_INTERVAL")
	setDuration(&cfg.Keeper.ArchiveAfter, "CURVEMARKET_KEEPER_ARCHIVE_AFTER")

	// ── Top-level ──
	setStr(&cfg.Mode, "CURVEMARKET_MODE")
	setStr(&cfg.LogLevel, "CURVEMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
