package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// WatchlistSource supplies the addresses to aggregate on each refresh.
type WatchlistSource interface {
	List(ctx context.Context) ([]string, error)
}

// SnapshotObserver is told about every accepted snapshot.
type SnapshotObserver interface {
	Observe(ctx context.Context, snap domain.DashboardSnapshot)
}

// Refresher runs refresh cycles and keeps the latest accepted snapshot in
// memory. Every cycle gets a token from a monotonic counter; a cycle whose
// token has been superseded by a newer issued token is discarded on
// completion instead of replacing the current snapshot.
type Refresher struct {
	engine    *Engine
	watchlist WatchlistSource
	bus       domain.SignalBus
	observers []SnapshotObserver
	timeout   time.Duration
	logger    *slog.Logger

	issued  atomic.Uint64
	latest  atomic.Pointer[domain.DashboardSnapshot]
	trigger chan struct{}

	// mu serialises Run's background cycles; direct Refresh calls may overlap.
	mu sync.Mutex
}

// NewRefresher creates a Refresher. bus may be nil, in which case snapshots
// are not published. timeout bounds each cycle; zero means no bound.
func NewRefresher(engine *Engine, watchlist WatchlistSource, bus domain.SignalBus, timeout time.Duration, logger *slog.Logger, observers ...SnapshotObserver) *Refresher {
	return &Refresher{
		engine:    engine,
		watchlist: watchlist,
		bus:       bus,
		observers: observers,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "refresher")),
		trigger:   make(chan struct{}, 1),
	}
}

// AddObserver registers o for accepted snapshots. Call it before the first
// refresh starts.
func (r *Refresher) AddObserver(o SnapshotObserver) {
	r.observers = append(r.observers, o)
}

// Latest returns the most recent accepted snapshot, if any.
func (r *Refresher) Latest() (domain.DashboardSnapshot, bool) {
	p := r.latest.Load()
	if p == nil {
		return domain.DashboardSnapshot{}, false
	}
	return *p, true
}

// Trigger requests an asynchronous refresh from Run. Requests made while one
// is already pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run performs an initial refresh and then one refresh per Trigger until ctx
// is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.Trigger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.trigger:
			r.mu.Lock()
			_, err := r.Refresh(ctx)
			r.mu.Unlock()
			if err != nil && !errors.Is(err, domain.ErrSuperseded) && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Refresh runs one full cycle: read the watch-list, compute runway and
// staking concurrently, then project growth of the staked total over the
// runway horizon. It returns domain.ErrSuperseded, together with the
// computed snapshot, when a newer refresh was issued before this one
// finished. Failures of the runway or staking computation are recorded in
// the snapshot rather than returned.
func (r *Refresher) Refresh(ctx context.Context) (domain.DashboardSnapshot, error) {
	token := r.issued.Add(1)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	addresses, err := r.watchlist.List(ctx)
	if err != nil {
		return domain.DashboardSnapshot{}, fmt.Errorf("refresh: list watchlist: %w", err)
	}

	snap := r.compute(ctx, token, addresses)

	if !r.accept(&snap) {
		r.logger.DebugContext(ctx, "discarding superseded refresh",
			slog.Uint64("token", token),
			slog.Uint64("latest_issued", r.issued.Load()),
		)
		return snap, domain.ErrSuperseded
	}

	r.logger.InfoContext(ctx, "refresh complete",
		slog.Uint64("token", token),
		slog.Int("addresses", len(addresses)),
		slog.Bool("runway_ok", snap.Runway != nil),
		slog.Bool("staking_ok", snap.Staking != nil),
		slog.Duration("elapsed", snap.CompletedAt.Sub(snap.StartedAt)),
	)

	r.publish(ctx, snap)
	for _, o := range r.observers {
		o.Observe(ctx, snap)
	}
	return snap, nil
}

func (r *Refresher) compute(ctx context.Context, token uint64, addresses []string) domain.DashboardSnapshot {
	snap := domain.DashboardSnapshot{
		Token:     token,
		StartedAt: r.engine.now(),
		Addresses: addresses,
	}

	var (
		wg         sync.WaitGroup
		runway     domain.RunwaySnapshot
		runwayErr  error
		staking    domain.StakingSummary
		stakingErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		runway, runwayErr = r.engine.ComputeRunway(ctx, token)
	}()
	go func() {
		defer wg.Done()
		staking, stakingErr = r.engine.ComputeStakingSummary(ctx, token, addresses)
	}()
	wg.Wait()

	switch {
	case runwayErr == nil:
		snap.Runway = &runway
	case errors.Is(runwayErr, domain.ErrRunwayUndefined):
		snap.Runway = &runway
		snap.RunwayUndefined = true
	default:
		snap.RunwayError = runwayErr.Error()
	}

	if stakingErr == nil {
		snap.Staking = &staking
	} else {
		snap.StakingError = stakingErr.Error()
	}

	if snap.Runway != nil && !snap.RunwayUndefined && snap.Staking != nil {
		snap.Projection = r.engine.ProjectCompoundGrowth(snap.Staking.GrandTotal, snap.Runway.HorizonDays())
	} else {
		snap.Projection = r.engine.ProjectCompoundGrowth(staking.GrandTotal, 0)
	}

	snap.CompletedAt = r.engine.now()
	return snap
}

// accept installs snap as the latest unless a newer token has been issued
// or already accepted.
func (r *Refresher) accept(snap *domain.DashboardSnapshot) bool {
	for {
		if snap.Token != r.issued.Load() {
			return false
		}
		cur := r.latest.Load()
		if cur != nil && cur.Token >= snap.Token {
			return false
		}
		if r.latest.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

func (r *Refresher) publish(ctx context.Context, snap domain.DashboardSnapshot) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		r.logger.ErrorContext(ctx, "marshal snapshot", slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Publish(ctx, domain.ChannelDashboard, payload); err != nil {
		r.logger.WarnContext(ctx, "publish snapshot failed", slog.String("error", err.Error()))
	}
}
