package domain

import "time"

// DashboardSnapshot is everything a single refresh produces. Runway and
// Staking are nil when their computation failed; the matching error string is
// set instead. RunwayUndefined marks the no-runway-pressure case, which is
// not a failure.
type DashboardSnapshot struct {
	Token           uint64           `json:"token"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     time.Time        `json:"completed_at"`
	Addresses       []string         `json:"addresses"`
	Runway          *RunwaySnapshot  `json:"runway,omitempty"`
	RunwayUndefined bool             `json:"runway_undefined"`
	RunwayError     string           `json:"runway_error,omitempty"`
	Staking         *StakingSummary  `json:"staking,omitempty"`
	StakingError    string           `json:"staking_error,omitempty"`
	Projection      ProjectionResult `json:"projection"`
}
