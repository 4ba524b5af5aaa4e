// Package memory provides a process-local watch-list store.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// WatchlistStore keeps the watch-list in memory. It is used when no durable
// backend is configured and in tests.
type WatchlistStore struct {
	mu    sync.RWMutex
	addrs []string
}

var _ domain.WatchlistStore = (*WatchlistStore)(nil)

// NewWatchlistStore returns a store seeded with addrs.
func NewWatchlistStore(addrs ...string) *WatchlistStore {
	return &WatchlistStore{addrs: append([]string(nil), addrs...)}
}

func (s *WatchlistStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.addrs...), nil
}

func (s *WatchlistStore) Add(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(address) >= 0 {
		return fmt.Errorf("memory: add %s: %w", address, domain.ErrAlreadyExists)
	}
	s.addrs = append(s.addrs, address)
	return nil
}

func (s *WatchlistStore) Remove(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(address)
	if i < 0 {
		return fmt.Errorf("memory: remove %s: %w", address, domain.ErrNotFound)
	}
	s.addrs = append(s.addrs[:i], s.addrs[i+1:]...)
	return nil
}

func (s *WatchlistStore) Replace(_ context.Context, addresses []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrs = append([]string(nil), addresses...)
	return nil
}

func (s *WatchlistStore) indexOf(address string) int {
	for i, a := range s.addrs {
		if strings.EqualFold(a, address) {
			return i
		}
	}
	return -1
}
