package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	snapshots SnapshotSource
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(snapshots SnapshotSource, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{snapshots: snapshots, startedAt: time.Now(), logger: logger}
}

// HealthCheck reports liveness and the age of the latest snapshot.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if snap, ok := h.snapshots.Latest(); ok {
		resp["last_refresh_token"] = snap.Token
		resp["last_refresh_at"] = snap.CompletedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
