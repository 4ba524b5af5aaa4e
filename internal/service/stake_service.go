package service

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// DefaultFetchConcurrency caps in-flight chain reads during aggregation.
const DefaultFetchConcurrency = 8

// StakeAggregator resolves watched addresses into per-address and grand
// stake totals. Reads fan out over at most concurrency goroutines and are
// reassembled in input order, so output is identical to a sequential pass.
type StakeAggregator struct {
	chain       domain.ChainReader
	concurrency int
}

// NewStakeAggregator creates a StakeAggregator. A concurrency of 1 makes
// every read strictly sequential.
func NewStakeAggregator(chain domain.ChainReader, concurrency int) *StakeAggregator {
	if concurrency < 1 {
		concurrency = DefaultFetchConcurrency
	}
	return &StakeAggregator{chain: chain, concurrency: concurrency}
}

// positionRef locates one non-sentinel position in the fan-out.
type positionRef struct {
	addr  int
	index uint64
}

// Aggregate builds the staking summary for addresses, which must already be
// validated and deduplicated. Any failed read fails the whole aggregation
// with a *domain.AggregationError; no partial summary is returned.
func (a *StakeAggregator) Aggregate(ctx context.Context, addresses []string) (domain.StakingSummary, error) {
	if len(addresses) == 0 {
		return domain.StakingSummary{
			GrandTotal:      decimal.Zero,
			ClaimableReward: decimal.Zero,
			PerAddress:      []domain.AddressStakeSummary{},
		}, nil
	}

	indices, err := a.fetchIndices(ctx, addresses)
	if err != nil {
		return domain.StakingSummary{}, err
	}

	var refs []positionRef
	for i, idx := range indices {
		// Entry 0 is the sentinel.
		for _, pos := range idx[min(1, len(idx)):] {
			refs = append(refs, positionRef{addr: i, index: pos})
		}
	}

	amounts, err := a.fetchAmounts(ctx, addresses, refs)
	if err != nil {
		return domain.StakingSummary{}, err
	}

	totals := make([]decimal.Decimal, len(addresses))
	for i := range totals {
		totals[i] = decimal.Zero
	}
	for k, ref := range refs {
		totals[ref.addr] = totals[ref.addr].Add(amounts[k])
	}

	summary := domain.StakingSummary{
		GrandTotal: decimal.Zero,
		PerAddress: make([]domain.AddressStakeSummary, len(addresses)),
	}
	for i, addr := range addresses {
		summary.PerAddress[i] = domain.AddressStakeSummary{
			Address:       addr,
			PositionCount: len(indices[i]),
			Total:         totals[i],
		}
		summary.GrandTotal = summary.GrandTotal.Add(totals[i])
	}

	claimable, err := a.chain.ClaimableReward(ctx, summary.GrandTotal)
	if err != nil {
		return domain.StakingSummary{}, &domain.AggregationError{Err: err}
	}
	summary.ClaimableReward = claimable
	return summary, nil
}

func (a *StakeAggregator) fetchIndices(ctx context.Context, addresses []string) ([][]uint64, error) {
	indices := make([][]uint64, len(addresses))
	err := fanOut(ctx, len(addresses), a.concurrency, func(ctx context.Context, i int) error {
		idx, err := a.chain.PositionIndices(ctx, addresses[i])
		if err != nil {
			return &domain.AggregationError{Address: addresses[i], Err: err}
		}
		indices[i] = idx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return indices, nil
}

func (a *StakeAggregator) fetchAmounts(ctx context.Context, addresses []string, refs []positionRef) ([]decimal.Decimal, error) {
	amounts := make([]decimal.Decimal, len(refs))
	err := fanOut(ctx, len(refs), a.concurrency, func(ctx context.Context, k int) error {
		ref := refs[k]
		amt, err := a.chain.PositionAmount(ctx, ref.index)
		if err != nil {
			return &domain.AggregationError{
				Address:  addresses[ref.addr],
				Index:    ref.index,
				HasIndex: true,
				Err:      err,
			}
		}
		amounts[k] = amt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// fanOut calls fn for slots 0..n-1 with at most limit in flight and returns
// the error of the lowest failing slot. Once slot j has failed, slots above
// j are skipped; slots below it always run, so the reported failure does
// not depend on completion order.
func fanOut(ctx context.Context, n, limit int, fn func(ctx context.Context, slot int) error) error {
	errs := make([]error, n)
	var lowest atomic.Int64
	lowest.Store(int64(n))

	var g errgroup.Group
	g.SetLimit(limit)
	for k := range n {
		g.Go(func() error {
			if int64(k) > lowest.Load() {
				return nil
			}
			err := ctx.Err()
			if err == nil {
				err = fn(ctx, k)
			}
			if err == nil {
				return nil
			}
			errs[k] = err
			for {
				cur := lowest.Load()
				if int64(k) >= cur || lowest.CompareAndSwap(cur, int64(k)) {
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if k := lowest.Load(); k < int64(n) {
		return errs[k]
	}
	return nil
}
