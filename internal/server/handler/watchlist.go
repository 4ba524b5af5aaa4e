package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// WatchlistService manages the watched addresses.
type WatchlistService interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, address string) (string, error)
	Remove(ctx context.Context, address string) error
}

// WatchlistBackup exports and restores the watch-list.
type WatchlistBackup interface {
	Backup(ctx context.Context) (string, error)
	RestoreLatest(ctx context.Context) (int, error)
}

// WatchlistHandler serves watch-list CRUD and backup endpoints.
type WatchlistHandler struct {
	svc    WatchlistService
	backup WatchlistBackup // optional
	logger *slog.Logger
}

// NewWatchlistHandler creates a WatchlistHandler.
func NewWatchlistHandler(svc WatchlistService, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{svc: svc, logger: logger}
}

// WithBackup enables the backup and restore endpoints.
func (h *WatchlistHandler) WithBackup(b WatchlistBackup) *WatchlistHandler {
	h.backup = b
	return h
}

type watchlistResponse struct {
	Addresses []string `json:"addresses"`
}

type addAddressRequest struct {
	Address string `json:"address"`
}

// List returns the watched addresses.
// GET /api/watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list watchlist failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list watchlist")
		return
	}
	writeJSON(w, http.StatusOK, watchlistResponse{Addresses: addrs})
}

// Add watches a new address.
// POST /api/watchlist {"address":"0x..."}
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addAddressRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	addr, err := h.svc.Add(r.Context(), req.Address)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"address": addr})
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid Ethereum address")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "address already watched")
	default:
		h.logger.ErrorContext(r.Context(), "handler: add address failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to add address")
	}
}

// Remove stops watching an address.
// DELETE /api/watchlist/{address}
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Remove(r.Context(), r.PathValue("address"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid Ethereum address")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "address not watched")
	default:
		h.logger.ErrorContext(r.Context(), "handler: remove address failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to remove address")
	}
}

// Backup exports the watch-list to object storage.
// POST /api/watchlist/backup
func (h *WatchlistHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		writeError(w, http.StatusNotImplemented, "object storage not configured")
		return
	}
	path, err := h.backup.Backup(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: backup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// Restore replaces the watch-list with the newest export.
// POST /api/watchlist/restore
func (h *WatchlistHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		writeError(w, http.StatusNotImplemented, "object storage not configured")
		return
	}
	n, err := h.backup.RestoreLatest(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]int{"restored": n})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no backup found")
	default:
		h.logger.ErrorContext(r.Context(), "handler: restore failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "restore failed")
	}
}
