package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectionPoint is one sample of a compound growth trajectory. Day is an
// offset from the projection start; see CalendarDate.
type ProjectionPoint struct {
	Day         int             `json:"day"`
	Profit      decimal.Decimal `json:"profit"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	IsMilestone bool            `json:"is_milestone"`
}

// CalendarDate returns the date the point falls on for a projection that
// starts on the day containing start.
func (p ProjectionPoint) CalendarDate(start time.Time) time.Time {
	y, m, d := start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, start.Location()).AddDate(0, 0, p.Day)
}

// ProjectionResult is a full compound growth projection. The zero value is
// the empty projection returned for degenerate inputs.
type ProjectionResult struct {
	Principal   decimal.Decimal   `json:"principal"`
	HorizonDays int               `json:"horizon_days"`
	DataPoints  []ProjectionPoint `json:"data_points"`
	Milestones  []ProjectionPoint `json:"milestones"`
	FinalProfit decimal.Decimal   `json:"final_profit"`
	FinalAmount decimal.Decimal   `json:"final_amount"`
}

// IsEmpty reports whether the projection has no samples.
func (r ProjectionResult) IsEmpty() bool {
	return len(r.DataPoints) == 0
}
