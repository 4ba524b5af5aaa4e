package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/domain"
)

type sentNote struct{ event, title, msg string }

type recordingNotifier struct {
	sent []sentNote
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, event, title, msg string) error {
	n.sent = append(n.sent, sentNote{event, title, msg})
	return n.err
}

func snapshotWithDays(days int64) domain.DashboardSnapshot {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	secs := decimal.NewFromInt(days * 86400)
	return domain.DashboardSnapshot{
		Runway: &domain.RunwaySnapshot{
			RunwayBalance:      decimal.NewFromInt(1_234_567),
			TotalSupply:        decimal.NewFromInt(50_000_000),
			InterestPerSecond:  decimal.RequireFromString("0.151119531"),
			RemainingSeconds:   secs,
			RemainingDays:      decimal.NewFromInt(days),
			DepletionTimestamp: now.Add(time.Duration(days) * 24 * time.Hour),
			ComputedAt:         now,
		},
	}
}

func TestRunwayAlerterFiresOncePerDip(t *testing.T) {
	n := &recordingNotifier{}
	a := NewRunwayAlerter(n, 30, discardLogger())
	ctx := context.Background()

	a.Observe(ctx, snapshotWithDays(45))
	assert.Empty(t, n.sent)

	a.Observe(ctx, snapshotWithDays(20))
	a.Observe(ctx, snapshotWithDays(19))
	require.Len(t, n.sent, 1)
	assert.Equal(t, EventRunwayLow, n.sent[0].event)
	assert.Contains(t, n.sent[0].msg, "20.00 days")
	assert.Contains(t, n.sent[0].msg, "1,234,567")

	a.Observe(ctx, snapshotWithDays(40))
	a.Observe(ctx, snapshotWithDays(10))
	assert.Len(t, n.sent, 2)
}

func TestRunwayAlerterReportsFailures(t *testing.T) {
	n := &recordingNotifier{err: errors.New("webhook down")}
	a := NewRunwayAlerter(n, 0, discardLogger())

	a.Observe(context.Background(), domain.DashboardSnapshot{Token: 7, StakingError: "aggregate stake: boom"})
	require.Len(t, n.sent, 1)
	assert.Equal(t, EventRefreshFailed, n.sent[0].event)
	assert.Contains(t, n.sent[0].msg, "#7")
	assert.Contains(t, n.sent[0].msg, "boom")
}

func TestRunwayAlerterIgnoresUndefinedRunway(t *testing.T) {
	n := &recordingNotifier{}
	a := NewRunwayAlerter(n, 30, discardLogger())
	snap := snapshotWithDays(0)
	snap.RunwayUndefined = true
	a.Observe(context.Background(), snap)
	assert.Empty(t, n.sent)
}
