package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// Notification event types.
const (
	EventRunwayLow     = "runway_low"
	EventRefreshFailed = "refresh_failed"
)

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RunwayAlerter watches accepted snapshots and notifies once when the runway
// drops below a threshold, and again only after it has recovered. It also
// reports refresh cycles whose reads failed.
type RunwayAlerter struct {
	notifier  Notifier
	threshold decimal.Decimal
	logger    *slog.Logger

	mu      sync.Mutex
	alerted bool
}

// NewRunwayAlerter creates a RunwayAlerter firing below thresholdDays. A
// non-positive threshold disables runway alerts.
func NewRunwayAlerter(notifier Notifier, thresholdDays float64, logger *slog.Logger) *RunwayAlerter {
	return &RunwayAlerter{
		notifier:  notifier,
		threshold: decimal.NewFromFloat(thresholdDays),
		logger:    logger.With(slog.String("component", "runway_alerter")),
	}
}

// Observe implements SnapshotObserver.
func (a *RunwayAlerter) Observe(ctx context.Context, snap domain.DashboardSnapshot) {
	if snap.RunwayError != "" || snap.StakingError != "" {
		msg := fmt.Sprintf("refresh #%d: runway: %s; staking: %s", snap.Token, orNone(snap.RunwayError), orNone(snap.StakingError))
		a.send(ctx, EventRefreshFailed, "Staking refresh failed", msg)
	}

	if !a.threshold.IsPositive() || snap.Runway == nil || snap.RunwayUndefined {
		return
	}

	low := snap.Runway.RemainingDays.LessThan(a.threshold)
	a.mu.Lock()
	fire := low && !a.alerted
	a.alerted = low
	a.mu.Unlock()

	if fire {
		a.send(ctx, EventRunwayLow, "Runway below threshold", FormatRunway(*snap.Runway))
	}
}

func (a *RunwayAlerter) send(ctx context.Context, event, title, msg string) {
	if err := a.notifier.Notify(ctx, event, title, msg); err != nil {
		a.logger.WarnContext(ctx, "notification failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// FormatRunway renders a runway snapshot as a short human readable message.
func FormatRunway(s domain.RunwaySnapshot) string {
	balance, _ := s.RunwayBalance.Float64()
	supply, _ := s.TotalSupply.Float64()
	return fmt.Sprintf(
		"Remaining: %s days (until %s, %s)\nRunway: %s TOS\nTotal LTOS: %s\nInterest/s: %s TOS",
		s.DisplayDays().StringFixed(2),
		s.DepletionTimestamp.UTC().Format("2006-01-02 15:04 MST"),
		humanize.RelTime(s.DepletionTimestamp, s.ComputedAt, "ago", "from now"),
		humanize.CommafWithDigits(balance, 2),
		humanize.CommafWithDigits(supply, 2),
		s.InterestPerSecond.StringFixed(6),
	)
}

func orNone(s string) string {
	if s == "" {
		return "ok"
	}
	return s
}
