package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/scheduler"
	"github.com/alanyoungcy/toslens/internal/server"
	"github.com/alanyoungcy/toslens/internal/server/handler"
	"github.com/alanyoungcy/toslens/internal/server/ws"
	"github.com/alanyoungcy/toslens/internal/service"
)

const (
	backupJobTimeout = 5 * time.Minute
	shutdownTimeout  = 5 * time.Second
)

// services holds what the modes run.
type services struct {
	deps      *Dependencies
	engine    *service.Engine
	refresher *service.Refresher
	watchlist *service.WatchlistService
	backup    *service.WatchlistBackup // nil without S3
	scheduler *scheduler.Scheduler
}

// build constructs the services, seeds the watch-list and registers the
// scheduled jobs. Observers are attached here, before any refresh runs.
func (a *App) build(ctx context.Context, deps *Dependencies) (*services, error) {
	rt := &services{deps: deps}

	rt.engine = service.NewEngine(deps.Chain, a.cfg.Engine.FetchConcurrency,
		service.WithProjector(deps.Projections))
	rt.refresher = service.NewRefresher(rt.engine, deps.Watchlist, deps.SignalBus,
		a.cfg.Engine.RefreshTimeout.Duration, a.logger)

	if deps.Notifier.Enabled() {
		rt.refresher.AddObserver(service.NewRunwayAlerter(deps.Notifier, a.cfg.Notify.RunwayAlertDays, a.logger))
	}

	rt.watchlist = service.NewWatchlistService(deps.Watchlist, deps.Audit, rt.refresher.Trigger, a.logger)
	if err := rt.watchlist.Seed(ctx, a.cfg.Watchlist.Addresses); err != nil {
		return nil, fmt.Errorf("seed watchlist: %w", err)
	}

	if deps.BlobWriter != nil && deps.BlobReader != nil {
		rt.backup = service.NewWatchlistBackup(deps.Watchlist, deps.BlobWriter, deps.BlobReader,
			a.cfg.Watchlist.BackupPrefix, rt.refresher.Trigger, a.logger)
	}

	rt.scheduler = scheduler.New(deps.LockManager, a.logger)
	// Every replica keeps its own latest snapshot, so refresh is never
	// gated by the shared lock.
	if err := rt.scheduler.AddLocal("refresh", a.cfg.Engine.RefreshInterval, 0, func(context.Context) error {
		rt.refresher.Trigger()
		return nil
	}); err != nil {
		return nil, err
	}
	if rt.backup != nil && a.cfg.Watchlist.BackupCron != "" {
		if err := rt.scheduler.Add("watchlist_backup", a.cfg.Watchlist.BackupCron, backupJobTimeout, func(ctx context.Context) error {
			_, err := rt.backup.Backup(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}

	return rt, nil
}

// serverMode runs the refresh loop, the scheduler, the WebSocket hub and the
// HTTP API until ctx is cancelled.
func (a *App) serverMode(ctx context.Context, rt *services) error {
	a.logger.InfoContext(ctx, "starting server mode")

	hub := ws.NewHub(rt.deps.SignalBus, rt.refresher, a.cfg.Server.CORSOrigins, a.logger)
	if rt.deps.SignalBus == nil {
		rt.refresher.AddObserver(hub)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.refresher.Run(ctx) })
	g.Go(func() error { return hub.Run(ctx) })

	rt.scheduler.Start(ctx)
	defer rt.scheduler.Stop()

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, a.handlers(rt), hub, rt.deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

func (a *App) handlers(rt *services) server.Handlers {
	wl := handler.NewWatchlistHandler(rt.watchlist, a.logger)
	if rt.backup != nil {
		wl = wl.WithBackup(rt.backup)
	}
	h := server.Handlers{
		Health:     handler.NewHealthHandler(rt.refresher, a.logger),
		Dashboard:  handler.NewDashboardHandler(rt.refresher, a.logger),
		Projection: handler.NewProjectionHandler(rt.engine, rt.refresher, a.logger),
		Watchlist:  wl,
	}
	if rt.deps.Audit != nil {
		h.Audit = handler.NewAuditHandler(rt.deps.Audit, a.logger)
	}
	return h
}

// watchMode runs the refresh loop and scheduled jobs without the HTTP API,
// logging a summary of every accepted snapshot.
func (a *App) watchMode(ctx context.Context, rt *services) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	rt.refresher.AddObserver(snapshotLogger{logger: a.logger})

	rt.scheduler.Start(ctx)
	defer rt.scheduler.Stop()

	return rt.refresher.Run(ctx)
}

// onceMode runs a single refresh, writes the snapshot as JSON to stdout and
// returns. Read failures recorded in the snapshot make it return an error
// after the snapshot is written.
func (a *App) onceMode(ctx context.Context, rt *services) error {
	snap, err := rt.refresher.Refresh(ctx)
	if err != nil && !errors.Is(err, domain.ErrSuperseded) {
		return fmt.Errorf("once mode: %w", err)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("once mode: write snapshot: %w", err)
	}

	if snap.RunwayError != "" || snap.StakingError != "" {
		return fmt.Errorf("once mode: refresh incomplete (runway: %q, staking: %q)", snap.RunwayError, snap.StakingError)
	}
	return nil
}

// snapshotLogger reports each accepted snapshot in the log.
type snapshotLogger struct {
	logger *slog.Logger
}

func (l snapshotLogger) Observe(ctx context.Context, snap domain.DashboardSnapshot) {
	attrs := []any{slog.Uint64("token", snap.Token), slog.Int("addresses", len(snap.Addresses))}
	switch {
	case snap.RunwayUndefined:
		attrs = append(attrs, slog.Bool("runway_undefined", true))
	case snap.Runway != nil:
		attrs = append(attrs,
			slog.String("remaining_days", snap.Runway.DisplayDays().StringFixed(2)),
			slog.Time("depletion", snap.Runway.DepletionTimestamp),
		)
	}
	if snap.Staking != nil {
		attrs = append(attrs,
			slog.String("grand_total", snap.Staking.GrandTotal.String()),
			slog.String("claimable_eth", snap.Staking.ClaimableReward.String()),
		)
	}
	l.logger.InfoContext(ctx, "dashboard", attrs...)
}
