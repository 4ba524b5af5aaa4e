package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChainReader is the read-only view of the staking contracts. Every method
// returns a *ChainQueryError on failure and never retries.
type ChainReader interface {
	RunwayBalance(ctx context.Context) (decimal.Decimal, error)
	TotalStakedSupply(ctx context.Context) (decimal.Decimal, error)
	PositionIndices(ctx context.Context, address string) ([]uint64, error)
	PositionAmount(ctx context.Context, index uint64) (decimal.Decimal, error)
	ClaimableReward(ctx context.Context, totalStaked decimal.Decimal) (decimal.Decimal, error)
}
