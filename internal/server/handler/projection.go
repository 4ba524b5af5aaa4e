package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// Projector computes compound growth.
type Projector interface {
	ProjectCompoundGrowth(principal decimal.Decimal, horizonDays int) domain.ProjectionResult
}

// ProjectionHandler serves ad-hoc compound growth projections.
type ProjectionHandler struct {
	projector Projector
	snapshots SnapshotSource
	logger    *slog.Logger
}

// NewProjectionHandler creates a ProjectionHandler. snapshots supplies the
// defaults when principal or days are omitted.
func NewProjectionHandler(projector Projector, snapshots SnapshotSource, logger *slog.Logger) *ProjectionHandler {
	return &ProjectionHandler{projector: projector, snapshots: snapshots, logger: logger}
}

// Project returns the projection for principal over days. Missing values
// fall back to the latest staked total and runway horizon.
// GET /api/projection?principal=10000&days=30
func (h *ProjectionHandler) Project(w http.ResponseWriter, r *http.Request) {
	principal, days, err := h.params(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.projector.ProjectCompoundGrowth(principal, days))
}

func (h *ProjectionHandler) params(r *http.Request) (decimal.Decimal, int, error) {
	q := r.URL.Query()
	snap, haveSnap := h.snapshots.Latest()

	var principal decimal.Decimal
	switch raw := q.Get("principal"); {
	case raw != "":
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Decimal{}, 0, fmt.Errorf("invalid principal %q", raw)
		}
		principal = p
	case haveSnap && snap.Staking != nil:
		principal = snap.Staking.GrandTotal
	default:
		return decimal.Decimal{}, 0, fmt.Errorf("principal is required until staking data is available")
	}

	var days int
	switch raw := q.Get("days"); {
	case raw != "":
		d, err := strconv.Atoi(raw)
		if err != nil {
			return decimal.Decimal{}, 0, fmt.Errorf("invalid days %q", raw)
		}
		if d > domain.MaxHorizonDays {
			return decimal.Decimal{}, 0, fmt.Errorf("days must be at most %d", domain.MaxHorizonDays)
		}
		days = d
	case haveSnap && snap.Runway != nil && !snap.RunwayUndefined:
		days = snap.Runway.HorizonDays()
	default:
		return decimal.Decimal{}, 0, fmt.Errorf("days is required until runway data is available")
	}
	return principal, days, nil
}
