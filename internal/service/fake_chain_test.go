package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/toslens/internal/domain"
)

var errRPC = errors.New("rpc unavailable")

// fakeChain is an in-memory domain.ChainReader.
type fakeChain struct {
	mu        sync.Mutex
	runway    decimal.Decimal
	supply    decimal.Decimal
	positions map[string][]uint64
	amounts   map[uint64]decimal.Decimal

	failIndicesFor string
	failAmountAt   uint64
	failAmounts    map[uint64]time.Duration // index -> delay before failing
	failClaimable  bool
	failRunway     bool
	delay          time.Duration

	indexCalls      atomic.Int64
	amountCalls     atomic.Int64
	claimableCalls  atomic.Int64
	claimableGotSum decimal.Decimal
	inFlight        atomic.Int64
	maxInFlight     atomic.Int64
}

var _ domain.ChainReader = (*fakeChain)(nil)

func newFakeChain() *fakeChain {
	return &fakeChain{
		runway:    decimal.NewFromInt(1_000_000),
		supply:    decimal.NewFromInt(50_000_000),
		positions: map[string][]uint64{},
		amounts:   map[uint64]decimal.Decimal{},
	}
}

func (f *fakeChain) enter() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeChain) RunwayBalance(ctx context.Context) (decimal.Decimal, error) {
	if f.failRunway {
		return decimal.Decimal{}, &domain.ChainQueryError{Query: "runwayTos", Err: errRPC}
	}
	return f.runway, nil
}

func (f *fakeChain) TotalStakedSupply(ctx context.Context) (decimal.Decimal, error) {
	return f.supply, nil
}

func (f *fakeChain) PositionIndices(ctx context.Context, address string) ([]uint64, error) {
	defer f.enter()()
	f.indexCalls.Add(1)
	if address == f.failIndicesFor {
		return nil, &domain.ChainQueryError{Query: "stakingOf", Arg: address, Err: errRPC}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.positions[address]...), nil
}

func (f *fakeChain) PositionAmount(ctx context.Context, index uint64) (decimal.Decimal, error) {
	defer f.enter()()
	f.amountCalls.Add(1)
	if f.failAmountAt != 0 && index == f.failAmountAt {
		return decimal.Decimal{}, &domain.ChainQueryError{Query: "stakedOf", Err: errRPC}
	}
	if d, ok := f.failAmounts[index]; ok {
		time.Sleep(d)
		return decimal.Decimal{}, &domain.ChainQueryError{Query: "stakedOf", Arg: fmt.Sprint(index), Err: errRPC}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.amounts[index], nil
}

func (f *fakeChain) ClaimableReward(ctx context.Context, totalStaked decimal.Decimal) (decimal.Decimal, error) {
	f.claimableCalls.Add(1)
	if f.failClaimable {
		return decimal.Decimal{}, &domain.ChainQueryError{Query: "claimableEther", Err: errRPC}
	}
	f.mu.Lock()
	f.claimableGotSum = totalStaked
	f.mu.Unlock()
	return totalStaked.Div(decimal.NewFromInt(1000)), nil
}
