package domain

import "github.com/shopspring/decimal"

// SentinelPositionIndex is the bookkeeping entry every staker's position list
// starts with. It never holds stake.
const SentinelPositionIndex = 0

// StakePosition is one stake entry owned by a single address.
type StakePosition struct {
	Index  uint64          `json:"index"`
	Amount decimal.Decimal `json:"amount"`
}

// AddressStakeSummary totals the positions of one watched address.
// PositionCount includes the sentinel entry.
type AddressStakeSummary struct {
	Address       string          `json:"address"`
	PositionCount int             `json:"position_count"`
	Total         decimal.Decimal `json:"total"`
}

// StakingSummary aggregates every watched address. GrandTotal always equals
// the exact sum of PerAddress totals.
type StakingSummary struct {
	Token           uint64                `json:"token"`
	GrandTotal      decimal.Decimal       `json:"grand_total"`
	ClaimableReward decimal.Decimal       `json:"claimable_reward"`
	PerAddress      []AddressStakeSummary `json:"per_address"`
}
