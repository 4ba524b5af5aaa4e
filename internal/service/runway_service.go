package service

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/toslens/internal/domain"
)

const (
	// InterestPeriodSeconds is the length of one compounding period (8h).
	InterestPeriodSeconds = 28800

	secondsPerDay = 86400

	// runwayPrecision is the number of decimal places kept by each division.
	runwayPrecision = 36
)

// InterestRatePerPeriod is the interest paid per staked unit per period.
var InterestRatePerPeriod = decimal.RequireFromString("0.00008704505")

var (
	maxDurationSeconds = decimal.NewFromInt(math.MaxInt64 / int64(time.Second))
	// maxDepletionOffset caps depletion dates roughly thirty million years out.
	maxDepletionOffset = decimal.NewFromInt(1_000_000_000_000_000)
)

// RunwayEstimator turns pool and supply readings into a runway estimate.
type RunwayEstimator struct {
	chain domain.ChainReader
}

// NewRunwayEstimator creates a RunwayEstimator reading from chain.
func NewRunwayEstimator(chain domain.ChainReader) *RunwayEstimator {
	return &RunwayEstimator{chain: chain}
}

// Estimate reads the runway balance and total supply concurrently and
// computes the snapshot as of now. A failure of either read aborts the
// estimate and is returned unchanged.
func (e *RunwayEstimator) Estimate(ctx context.Context, now time.Time) (domain.RunwaySnapshot, error) {
	var runwayBalance, totalSupply decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.chain.RunwayBalance(gctx)
		if err != nil {
			return err
		}
		runwayBalance = v
		return nil
	})
	g.Go(func() error {
		v, err := e.chain.TotalStakedSupply(gctx)
		if err != nil {
			return err
		}
		totalSupply = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RunwaySnapshot{}, err
	}

	return EstimateRunway(runwayBalance, totalSupply, now)
}

// EstimateRunway computes a runway snapshot from balances already scaled to
// token units. When the effective interest rate is zero it returns
// domain.ErrRunwayUndefined along with a snapshot carrying the balances.
func EstimateRunway(runwayBalance, totalSupply decimal.Decimal, now time.Time) (domain.RunwaySnapshot, error) {
	snap := domain.RunwaySnapshot{
		RunwayBalance:     runwayBalance,
		TotalSupply:       totalSupply,
		InterestPerSecond: InterestPerSecond(totalSupply),
		ComputedAt:        now,
	}
	if !snap.InterestPerSecond.IsPositive() {
		snap.InterestPerSecond = decimal.Zero
		return snap, domain.ErrRunwayUndefined
	}

	snap.RemainingSeconds = runwayBalance.DivRound(snap.InterestPerSecond, runwayPrecision)
	snap.RemainingDays = snap.RemainingSeconds.DivRound(decimal.NewFromInt(secondsPerDay), runwayPrecision)
	snap.DepletionTimestamp = depletionTime(now, snap.RemainingSeconds)
	return snap, nil
}

// InterestPerSecond returns the interest accrued per second by all stakers.
func InterestPerSecond(totalSupply decimal.Decimal) decimal.Decimal {
	return InterestRatePerPeriod.Mul(totalSupply).DivRound(decimal.NewFromInt(InterestPeriodSeconds), runwayPrecision)
}

func depletionTime(now time.Time, remaining decimal.Decimal) time.Time {
	if !remaining.IsPositive() {
		return now
	}
	if remaining.LessThanOrEqual(maxDurationSeconds) {
		return now.Add(time.Duration(remaining.Shift(9).IntPart()))
	}
	// Past time.Duration's range whole seconds are plenty.
	if remaining.GreaterThan(maxDepletionOffset) {
		remaining = maxDepletionOffset
	}
	return time.Unix(now.Unix()+remaining.IntPart(), int64(now.Nanosecond())).In(now.Location())
}
