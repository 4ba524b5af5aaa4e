// Package projection computes compound-interest growth trajectories for a
// staked principal. Results depend only on their inputs; calendar dates are
// derived at presentation time from each point's day offset.
package projection

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/toslens/internal/domain"
)

const (
	// PeriodsPerDay is the number of compounding ticks per day (one every 8h).
	PeriodsPerDay = 3

	// MaxSamples bounds the number of stepped samples regardless of horizon.
	MaxSamples = 50

	// Precision is the number of decimal places kept after each
	// multiplication while raising the growth factor to a power.
	Precision = 36

	// AmountPlaces is the scale projected amounts are rounded to, matching the
	// 18-decimal token.
	AmountPlaces = 18
)

// RatePerPeriod is the fixed interest applied on every compounding tick.
var RatePerPeriod = decimal.RequireFromString("0.00008704505")

var growthPerPeriod = decimal.NewFromInt(1).Add(RatePerPeriod)

// Project builds the trajectory for principal over horizonDays. A
// non-positive principal or horizon yields the empty projection.
func Project(principal decimal.Decimal, horizonDays int) domain.ProjectionResult {
	if !principal.IsPositive() || horizonDays <= 0 {
		return domain.ProjectionResult{
			Principal:   decimal.Zero,
			DataPoints:  []domain.ProjectionPoint{},
			Milestones:  []domain.ProjectionPoint{},
			FinalProfit: decimal.Zero,
			FinalAmount: decimal.Zero,
		}
	}

	milestones := MilestoneDays(horizonDays)
	isMilestone := func(day int) bool {
		for _, m := range milestones {
			if m == day {
				return true
			}
		}
		return false
	}

	byDay := make(map[int]domain.ProjectionPoint, MaxSamples+len(milestones)+1)
	add := func(day int, milestone bool) {
		if existing, ok := byDay[day]; ok {
			if milestone && !existing.IsMilestone {
				existing.IsMilestone = true
				byDay[day] = existing
			}
			return
		}
		amount := AmountAt(principal, day)
		byDay[day] = domain.ProjectionPoint{
			Day:         day,
			Profit:      amount.Sub(principal),
			TotalAmount: amount,
			IsMilestone: milestone,
		}
	}

	step := SampleStep(horizonDays)
	for day := 0; day <= horizonDays; day += step {
		add(day, isMilestone(day))
	}
	for _, m := range milestones {
		add(m, true)
	}
	add(horizonDays, isMilestone(horizonDays))

	points := make([]domain.ProjectionPoint, 0, len(byDay))
	for _, p := range byDay {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })

	var tagged []domain.ProjectionPoint
	for _, p := range points {
		if p.IsMilestone {
			tagged = append(tagged, p)
		}
	}

	final := byDay[horizonDays]
	return domain.ProjectionResult{
		Principal:   principal,
		HorizonDays: horizonDays,
		DataPoints:  points,
		Milestones:  tagged,
		FinalProfit: final.Profit,
		FinalAmount: final.TotalAmount,
	}
}

// AmountAt returns principal * (1+rate)^(day*PeriodsPerDay) rounded to
// AmountPlaces.
func AmountAt(principal decimal.Decimal, day int) decimal.Decimal {
	factor := powRound(growthPerPeriod, int64(day)*PeriodsPerDay, Precision)
	return principal.Mul(factor).Round(AmountPlaces)
}

// MilestoneDays returns floor(h*0.25), floor(h*0.5) and floor(h*0.75) with
// duplicates removed, ascending.
func MilestoneDays(horizonDays int) []int {
	// floor(3h/4) without forming 3h.
	q, r := horizonDays/4, horizonDays%4
	candidates := []int{q, horizonDays / 2, 3*q + 3*r/4}
	out := make([]int, 0, len(candidates))
	for _, d := range candidates {
		if len(out) > 0 && out[len(out)-1] == d {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SampleStep is the day interval between stepped samples.
func SampleStep(horizonDays int) int {
	step := horizonDays / MaxSamples
	if step < 1 {
		return 1
	}
	return step
}

// powRound raises base to a non-negative integer power by repeated squaring,
// rounding every intermediate product to places decimal places.
func powRound(base decimal.Decimal, exp int64, places int32) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Round(places)
		}
		exp >>= 1
		if exp > 0 {
			base = base.Mul(base).Round(places)
		}
	}
	return result
}
