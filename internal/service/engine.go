package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/projection"
)

// Projector produces compound growth projections.
type Projector interface {
	Project(principal decimal.Decimal, horizonDays int) domain.ProjectionResult
}

type projectFunc func(decimal.Decimal, int) domain.ProjectionResult

func (f projectFunc) Project(principal decimal.Decimal, horizonDays int) domain.ProjectionResult {
	return f(principal, horizonDays)
}

// Engine is the aggregation and projection boundary consumed by the
// refresher and the HTTP API. Refresh tokens are echoed into results and
// never influence computed values.
type Engine struct {
	runway    *RunwayEstimator
	stakes    *StakeAggregator
	projector Projector
	now       func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock used for depletion timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithProjector replaces the default uncached projector.
func WithProjector(p Projector) EngineOption {
	return func(e *Engine) { e.projector = p }
}

// NewEngine wires an Engine over chain.
func NewEngine(chain domain.ChainReader, fetchConcurrency int, opts ...EngineOption) *Engine {
	e := &Engine{
		runway:    NewRunwayEstimator(chain),
		stakes:    NewStakeAggregator(chain, fetchConcurrency),
		projector: projectFunc(projection.Project),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeRunway estimates the runway as of now. It returns a
// *domain.ChainQueryError on read failure, or domain.ErrRunwayUndefined with
// a balance-only snapshot when no interest is accruing.
func (e *Engine) ComputeRunway(ctx context.Context, token uint64) (domain.RunwaySnapshot, error) {
	snap, err := e.runway.Estimate(ctx, e.now())
	snap.Token = token
	return snap, err
}

// ComputeStakingSummary aggregates stake for addresses. It returns a
// *domain.AggregationError on any read failure.
func (e *Engine) ComputeStakingSummary(ctx context.Context, token uint64, addresses []string) (domain.StakingSummary, error) {
	summary, err := e.stakes.Aggregate(ctx, addresses)
	if err != nil {
		return domain.StakingSummary{}, err
	}
	summary.Token = token
	return summary, nil
}

// ProjectCompoundGrowth never fails; degenerate inputs give the empty
// projection.
func (e *Engine) ProjectCompoundGrowth(principal decimal.Decimal, horizonDays int) domain.ProjectionResult {
	return e.projector.Project(principal, horizonDays)
}
