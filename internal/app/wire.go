package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/toslens/internal/blob/s3"
	"github.com/alanyoungcy/toslens/internal/cache/redis"
	"github.com/alanyoungcy/toslens/internal/config"
	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/notify"
	"github.com/alanyoungcy/toslens/internal/platform/tosstaking"
	"github.com/alanyoungcy/toslens/internal/projection"
	"github.com/alanyoungcy/toslens/internal/store/leveldb"
	"github.com/alanyoungcy/toslens/internal/store/memory"
	"github.com/alanyoungcy/toslens/internal/store/postgres"
)

// Dependencies bundles every adapter the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional adapters are nil when not configured.
type Dependencies struct {
	Chain       domain.ChainReader
	Projections *projection.Cache

	// Stores
	Watchlist domain.WatchlistStore
	Audit     domain.AuditStore // postgres backend only

	// Redis
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Notifier *notify.Notifier
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
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- Chain ---
	rpcURL, err := cfg.RPCURL()
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	chain, err := tosstaking.Dial(ctx, rpcURL, tosstaking.Config{
		StakingContract:   cfg.Chain.StakingContract,
		ClaimableContract: cfg.Chain.ClaimableContract,
		CallTimeout:       cfg.Chain.CallTimeout.Duration,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: chain: %w", err))
	}
	closers = append(closers, chain.Close)
	deps.Chain = chain

	projections, err := projection.NewCache(cfg.Engine.ProjectionCacheSize)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, projections.Close)
	deps.Projections = projections

	// --- Watch-list store ---
	switch cfg.Watchlist.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Watchlist = postgres.NewWatchlistStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)

	case "leveldb":
		store, err := leveldb.Open(cfg.Watchlist.LevelDBPath)
		if err != nil {
			return fail(fmt.Errorf("wire: leveldb: %w", err))
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Watchlist = store

	case "memory":
		deps.Watchlist = memory.NewWatchlistStore()

	default:
		return fail(fmt.Errorf("wire: unknown watchlist backend %q", cfg.Watchlist.Backend))
	}

	// --- Redis (optional) ---
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
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		logger.InfoContext(ctx, "redis not configured, running single-replica")
	}

	// --- S3 blob storage (optional) ---
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
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
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
