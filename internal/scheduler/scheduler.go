// Package scheduler runs periodic jobs such as the watch-list refresh and
// backup on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// JobFunc is the work run on each tick.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron.Cron. When a LockManager is set each job takes a
// distributed lock named after it, so only one replica runs a given tick.
type Scheduler struct {
	cron   *cron.Cron
	locks  domain.LockManager
	logger *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New creates a Scheduler. locks may be nil. Specs accept five cron fields
// or descriptors such as "@every 5m" and "@daily".
func New(locks domain.LockManager, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		locks:  locks,
		logger: logger.With(slog.String("component", "scheduler")),
		ctx:    context.Background(),
	}
}

// Add registers fn under name. ttl bounds both the job's run time and how
// long its lock is held.
func (s *Scheduler) Add(name, spec string, ttl time.Duration, fn JobFunc) error {
	return s.add(name, spec, ttl, true, fn)
}

// AddLocal registers fn under name without taking the distributed lock, for
// work every replica must do itself.
func (s *Scheduler) AddLocal(name, spec string, ttl time.Duration, fn JobFunc) error {
	return s.add(name, spec, ttl, false, fn)
}

func (s *Scheduler) add(name, spec string, ttl time.Duration, shared bool, fn JobFunc) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, ttl, shared, fn) }); err != nil {
		return fmt.Errorf("scheduler: register %s (%q): %w", name, spec, err)
	}
	s.logger.Info("job registered", slog.String("job", name), slog.String("spec", spec), slog.Bool("shared", shared))
	return nil
}

// Start begins running jobs. Jobs get contexts derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) run(name string, ttl time.Duration, shared bool, fn JobFunc) {
	ctx := s.baseContext()
	if ctx.Err() != nil {
		return
	}
	if ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ttl)
		defer cancel()
	}

	if shared && s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "job:"+name, ttl)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.DebugContext(ctx, "job skipped, lock held elsewhere", slog.String("job", name))
			return
		}
		if err != nil {
			s.logger.WarnContext(ctx, "job lock failed", slog.String("job", name), slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.ErrorContext(ctx, "job failed",
			slog.String("job", name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "job done", slog.String("job", name), slog.Duration("elapsed", time.Since(start)))
}
