package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/toslens/internal/crypto"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOSLENS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Watchlist.Backend = strings.ToLower(strings.TrimSpace(cfg.Watchlist.Backend))

	return &cfg, nil
}

// RPCURL resolves the chain endpoint from the plain value or the sealed file.
func (c *Config) RPCURL() (string, error) {
	url, err := crypto.LoadSecret(crypto.SecretSource{
		Plain:      c.Chain.RPCURL,
		SealedPath: c.Chain.EncryptedRPCURLPath,
		Password:   c.Chain.RPCURLPassword,
	})
	if err != nil {
		return "", fmt.Errorf("config: rpc url: %w", err)
	}
	return url, nil
}

// applyEnvOverrides reads well-known TOSLENS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "TOSLENS_CHAIN_RPC_URL")
	setStr(&cfg.Chain.EncryptedRPCURLPath, "TOSLENS_CHAIN_ENCRYPTED_RPC_URL_PATH")
	setStr(&cfg.Chain.RPCURLPassword, "TOSLENS_CHAIN_RPC_URL_PASSWORD")
	setStr(&cfg.Chain.StakingContract, "TOSLENS_CHAIN_STAKING_CONTRACT")
	setStr(&cfg.Chain.ClaimableContract, "TOSLENS_CHAIN_CLAIMABLE_CONTRACT")
	setDuration(&cfg.Chain.CallTimeout, "TOSLENS_CHAIN_CALL_TIMEOUT")

	// ── Engine ──
	setInt(&cfg.Engine.FetchConcurrency, "TOSLENS_ENGINE_FETCH_CONCURRENCY")
	setStr(&cfg.Engine.RefreshInterval, "TOSLENS_ENGINE_REFRESH_INTERVAL")
	setDuration(&cfg.Engine.RefreshTimeout, "TOSLENS_ENGINE_REFRESH_TIMEOUT")
	setInt64(&cfg.Engine.ProjectionCacheSize, "TOSLENS_ENGINE_PROJECTION_CACHE_SIZE")

	// ── Watchlist ──
	setStr(&cfg.Watchlist.Backend, "TOSLENS_WATCHLIST_BACKEND")
	setStr(&cfg.Watchlist.LevelDBPath, "TOSLENS_WATCHLIST_LEVELDB_PATH")
	setStringSlice(&cfg.Watchlist.Addresses, "TOSLENS_WATCHLIST_ADDRESSES")
	setStr(&cfg.Watchlist.BackupCron, "TOSLENS_WATCHLIST_BACKUP_CRON")
	setStr(&cfg.Watchlist.BackupPrefix, "TOSLENS_WATCHLIST_BACKUP_PREFIX")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "TOSLENS_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "TOSLENS_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "TOSLENS_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "TOSLENS_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "TOSLENS_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "TOSLENS_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "TOSLENS_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "TOSLENS_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "TOSLENS_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "TOSLENS_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "TOSLENS_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TOSLENS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOSLENS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOSLENS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOSLENS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TOSLENS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TOSLENS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TOSLENS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOSLENS_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOSLENS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOSLENS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOSLENS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TOSLENS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TOSLENS_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "TOSLENS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TOSLENS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TOSLENS_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "TOSLENS_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TOSLENS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TOSLENS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TOSLENS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TOSLENS_NOTIFY_EVENTS")
	setFloat64(&cfg.Notify.RunwayAlertDays, "TOSLENS_NOTIFY_RUNWAY_ALERT_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TOSLENS_MODE")
	setStr(&cfg.LogLevel, "TOSLENS_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
