package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/platform/tosstaking"
)

// WatchlistService validates and persists the watched addresses. Every
// successful change invokes onChange so a refresh can be triggered.
type WatchlistService struct {
	store    domain.WatchlistStore
	audit    domain.AuditStore
	onChange func()
	logger   *slog.Logger
}

// NewWatchlistService creates a WatchlistService. audit and onChange may be nil.
func NewWatchlistService(store domain.WatchlistStore, audit domain.AuditStore, onChange func(), logger *slog.Logger) *WatchlistService {
	if onChange == nil {
		onChange = func() {}
	}
	return &WatchlistService{
		store:    store,
		audit:    audit,
		onChange: onChange,
		logger:   logger.With(slog.String("component", "watchlist")),
	}
}

// List returns the watched addresses in insertion order.
func (s *WatchlistService) List(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

// Add validates raw, stores its checksummed form and returns it. Adding an
// address that is already watched, in any letter case, returns
// domain.ErrAlreadyExists.
func (s *WatchlistService) Add(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("watchlist: empty address: %w", domain.ErrInvalidAddress)
	}
	addr, err := tosstaking.NormalizeAddress(raw)
	if err != nil {
		return "", fmt.Errorf("watchlist: %w", err)
	}

	existing, err := s.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("watchlist: list: %w", err)
	}
	for _, e := range existing {
		if strings.EqualFold(e, addr) {
			return "", fmt.Errorf("watchlist: %s: %w", addr, domain.ErrAlreadyExists)
		}
	}

	if err := s.store.Add(ctx, addr); err != nil {
		return "", fmt.Errorf("watchlist: add %s: %w", addr, err)
	}
	s.record(ctx, "watchlist_add", addr)
	s.onChange()
	return addr, nil
}

// Remove stops watching raw. It returns domain.ErrNotFound when the address
// is not watched.
func (s *WatchlistService) Remove(ctx context.Context, raw string) error {
	addr, err := tosstaking.NormalizeAddress(raw)
	if err != nil {
		return fmt.Errorf("watchlist: %w", err)
	}
	if err := s.store.Remove(ctx, addr); err != nil {
		return fmt.Errorf("watchlist: remove %s: %w", addr, err)
	}
	s.record(ctx, "watchlist_remove", addr)
	s.onChange()
	return nil
}

// Seed adds every address in seeds that is not yet watched. Invalid entries
// are logged and skipped.
func (s *WatchlistService) Seed(ctx context.Context, seeds []string) error {
	for _, raw := range seeds {
		_, err := s.Add(ctx, raw)
		switch {
		case err == nil:
		case isAny(err, domain.ErrAlreadyExists):
		case isAny(err, domain.ErrInvalidAddress):
			s.logger.WarnContext(ctx, "skipping invalid seed address", slog.String("address", raw))
		default:
			return err
		}
	}
	return nil
}

func (s *WatchlistService) record(ctx context.Context, event, addr string) {
	s.logger.InfoContext(ctx, event, slog.String("address", addr))
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, map[string]any{"address": addr}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
