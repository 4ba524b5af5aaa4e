package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunwaySnapshot is the result of one runway estimation. RemainingDays is
// unrounded; use DisplayDays for the two-decimal presentation value.
type RunwaySnapshot struct {
	Token              uint64          `json:"token"`
	RunwayBalance      decimal.Decimal `json:"runway_balance"`
	TotalSupply        decimal.Decimal `json:"total_supply"`
	InterestPerSecond  decimal.Decimal `json:"interest_per_second"`
	RemainingSeconds   decimal.Decimal `json:"remaining_seconds"`
	RemainingDays      decimal.Decimal `json:"remaining_days"`
	DepletionTimestamp time.Time       `json:"depletion_timestamp"`
	ComputedAt         time.Time       `json:"computed_at"`
}

// DisplayDays returns RemainingDays rounded half-up to two decimal places.
func (s RunwaySnapshot) DisplayDays() decimal.Decimal {
	return s.RemainingDays.Round(2)
}

// MaxHorizonDays caps projection horizons at a century. A near-empty staked
// supply makes the runway astronomically long.
const MaxHorizonDays = 36500

var maxHorizon = decimal.NewFromInt(MaxHorizonDays)

// HorizonDays returns the whole number of days left, capped at
// MaxHorizonDays, which is the horizon handed to the compound projection.
func (s RunwaySnapshot) HorizonDays() int {
	if !s.RemainingDays.IsPositive() {
		return 0
	}
	days := s.RemainingDays.Floor()
	if days.GreaterThan(maxHorizon) {
		return MaxHorizonDays
	}
	return int(days.IntPart())
}
