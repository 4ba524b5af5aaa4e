package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// SnapshotSource exposes the latest accepted refresh.
type SnapshotSource interface {
	Latest() (domain.DashboardSnapshot, bool)
}

// Refresher is the part of the refresh service the API drives.
type Refresher interface {
	SnapshotSource
	Refresh(ctx context.Context) (domain.DashboardSnapshot, error)
	Trigger()
}

// DashboardHandler serves the computed runway, staking and projection data.
type DashboardHandler struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(refresher Refresher, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{refresher: refresher, logger: logger}
}

func (h *DashboardHandler) latest(w http.ResponseWriter) (domain.DashboardSnapshot, bool) {
	snap, ok := h.refresher.Latest()
	if !ok {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "no data yet, first refresh in progress")
	}
	return snap, ok
}

// Dashboard returns the whole latest snapshot.
// GET /api/dashboard
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.latest(w); ok {
		writeJSON(w, http.StatusOK, snap)
	}
}

type runwayResponse struct {
	Token           uint64                 `json:"token"`
	Runway          *domain.RunwaySnapshot `json:"runway,omitempty"`
	RunwayUndefined bool                   `json:"runway_undefined"`
	DisplayDays     string                 `json:"display_days,omitempty"`
}

// Runway returns the latest runway estimate. A pool with no accruing
// interest is reported with runway_undefined set, not as an error.
// GET /api/runway
func (h *DashboardHandler) Runway(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	if snap.Runway == nil {
		writeError(w, http.StatusBadGateway, snap.RunwayError)
		return
	}
	resp := runwayResponse{Token: snap.Token, Runway: snap.Runway, RunwayUndefined: snap.RunwayUndefined}
	if !snap.RunwayUndefined {
		resp.DisplayDays = snap.Runway.DisplayDays().StringFixed(2)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Staking returns the latest staking summary.
// GET /api/staking
func (h *DashboardHandler) Staking(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	if snap.Staking == nil {
		writeError(w, http.StatusBadGateway, snap.StakingError)
		return
	}
	writeJSON(w, http.StatusOK, snap.Staking)
}

// Refresh runs a refresh. With ?wait=true it runs inline and returns the
// snapshot; otherwise it enqueues one and answers 202.
// POST /api/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") != "true" {
		h.refresher.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":       "accepted",
			"requested_at": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	snap, err := h.refresher.Refresh(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, domain.ErrSuperseded):
		writeError(w, http.StatusConflict, "refresh superseded by a newer request")
	default:
		h.logger.ErrorContext(r.Context(), "handler: refresh failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "refresh failed")
	}
}
