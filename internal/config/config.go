// Package config defines the top-level configuration for toslens and provides
// validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TOSLENS_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Engine    EngineConfig    `toml:"engine"`
	Watchlist WatchlistConfig `toml:"watchlist"`
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig holds the Ethereum RPC endpoint and staking contract addresses.
// The RPC URL usually embeds a provider API key, so it can be kept sealed on
// disk instead (see crypto.Seal).
type ChainConfig struct {
	RPCURL              string   `toml:"rpc_url"`
	EncryptedRPCURLPath string   `toml:"encrypted_rpc_url_path"`
	RPCURLPassword      string   `toml:"rpc_url_password"`
	StakingContract     string   `toml:"staking_contract"`
	ClaimableContract   string   `toml:"claimable_contract"`
	CallTimeout         duration `toml:"call_timeout"`
}

// EngineConfig tunes the refresh pipeline.
type EngineConfig struct {
	// FetchConcurrency bounds in-flight position reads. 1 reads strictly in order.
	FetchConcurrency int `toml:"fetch_concurrency"`
	// RefreshInterval is a cron spec, e.g. "@every 5m".
	RefreshInterval     string   `toml:"refresh_interval"`
	RefreshTimeout      duration `toml:"refresh_timeout"`
	ProjectionCacheSize int64    `toml:"projection_cache_size"`
}

// WatchlistConfig selects where tracked addresses live.
type WatchlistConfig struct {
	Backend     string   `toml:"backend"`
	LevelDBPath string   `toml:"leveldb_path"`
	Addresses   []string `toml:"addresses"`
	// BackupCron schedules S3 exports. Empty disables them.
	BackupCron   string `toml:"backup_cron"`
	BackupPrefix string `toml:"backup_prefix"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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

// RedisConfig holds Redis connection parameters. An empty Addr runs without
// Redis: no cross-replica locks, no API rate limit, in-process fan-out.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables watch-list backups.
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
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards every route but /api/health when set.
	APIKey             string `toml:"api_key"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// RunwayAlertDays fires a runway_low alert when remaining days drop below it.
	// Zero disables the alert.
	RunwayAlertDays float64 `toml:"runway_alert_days"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			StakingContract:   "0x14fb0933Ec45ecE75A431D10AFAa1DDF7BfeE44C",
			ClaimableContract: "0xD27A68a457005f822863199Af0F817f672588ad6",
			CallTimeout:       duration{15 * time.Second},
		},
		Engine: EngineConfig{
			FetchConcurrency:    8,
			RefreshInterval:     "@every 5m",
			RefreshTimeout:      duration{60 * time.Second},
			ProjectionCacheSize: 256,
		},
		Watchlist: WatchlistConfig{
			Backend:      "leveldb",
			LevelDBPath:  "data/watchlist",
			BackupPrefix: "watchlist",
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
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
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"runway_low", "refresh_failed"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"watch":  true,
	"once":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"postgres": true,
	"leveldb":  true,
	"memory":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, watch, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" && c.Chain.EncryptedRPCURLPath == "" {
		errs = append(errs, "chain: either rpc_url or encrypted_rpc_url_path must be set")
	}
	if c.Chain.EncryptedRPCURLPath != "" && c.Chain.RPCURL == "" && c.Chain.RPCURLPassword == "" {
		errs = append(errs, "chain: rpc_url_password is required when encrypted_rpc_url_path is set")
	}
	if c.Chain.StakingContract != "" && !common.IsHexAddress(c.Chain.StakingContract) {
		errs = append(errs, fmt.Sprintf("chain: staking_contract %q is not an address", c.Chain.StakingContract))
	}
	if c.Chain.ClaimableContract != "" && !common.IsHexAddress(c.Chain.ClaimableContract) {
		errs = append(errs, fmt.Sprintf("chain: claimable_contract %q is not an address", c.Chain.ClaimableContract))
	}
	if c.Chain.CallTimeout.Duration < 0 {
		errs = append(errs, "chain: call_timeout must not be negative")
	}

	// Engine
	if c.Engine.FetchConcurrency < 1 {
		errs = append(errs, "engine: fetch_concurrency must be >= 1")
	}
	if _, err := cron.ParseStandard(c.Engine.RefreshInterval); err != nil {
		errs = append(errs, fmt.Sprintf("engine: refresh_interval %q: %v", c.Engine.RefreshInterval, err))
	}
	if c.Engine.RefreshTimeout.Duration <= 0 {
		errs = append(errs, "engine: refresh_timeout must be > 0")
	}
	if c.Engine.ProjectionCacheSize < 0 {
		errs = append(errs, "engine: projection_cache_size must be >= 0")
	}

	// Watchlist
	if !validBackends[strings.ToLower(c.Watchlist.Backend)] {
		errs = append(errs, fmt.Sprintf("watchlist: unknown backend %q (valid: postgres, leveldb, memory)", c.Watchlist.Backend))
	}
	if strings.EqualFold(c.Watchlist.Backend, "leveldb") && c.Watchlist.LevelDBPath == "" {
		errs = append(errs, "watchlist: leveldb_path must not be empty for the leveldb backend")
	}
	for _, a := range c.Watchlist.Addresses {
		if !common.IsHexAddress(strings.TrimSpace(a)) {
			errs = append(errs, fmt.Sprintf("watchlist: seed address %q is not an address", a))
		}
	}
	if c.Watchlist.BackupCron != "" {
		if _, err := cron.ParseStandard(c.Watchlist.BackupCron); err != nil {
			errs = append(errs, fmt.Sprintf("watchlist: backup_cron %q: %v", c.Watchlist.BackupCron, err))
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "watchlist: backup_cron requires s3.bucket")
		}
	}

	// Supabase, only when it backs the watch-list.
	if strings.EqualFold(c.Watchlist.Backend, "postgres") {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket != "" && c.S3.Endpoint == "" && c.S3.Region == "" {
		errs = append(errs, "s3: endpoint or region must be set when bucket is set")
	}

	// Server
	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server: rate_limit_per_minute must be >= 0")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.RunwayAlertDays < 0 {
		errs = append(errs, "notify: runway_alert_days must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
