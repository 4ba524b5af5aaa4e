package leveldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/domain"
)

const (
	addr1 = "0x14fb0933Ec45ecE75A431D10AFAa1DDF7BfeE44C"
	addr2 = "0xD27A68a457005f822863199Af0F817f672588ad6"
	addr3 = "0x0000000000000000000000000000000000000001"
)

func openTemp(t *testing.T) (*WatchlistStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestWatchlistStoreOrderAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Add(ctx, addr2))
	require.NoError(t, s.Add(ctx, addr1))
	require.NoError(t, s.Add(ctx, addr3))
	assert.ErrorIs(t, s.Add(ctx, "0x14FB0933EC45ECE75A431D10AFAA1DDF7BFEE44C"), domain.ErrAlreadyExists)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{addr2, addr1, addr3}, got)

	require.NoError(t, s.Remove(ctx, addr1))
	assert.ErrorIs(t, s.Remove(ctx, addr1), domain.ErrNotFound)

	// Re-adding puts the address at the end.
	require.NoError(t, s.Add(ctx, addr1))
	got, _ = s.List(ctx)
	assert.Equal(t, []string{addr2, addr3, addr1}, got)
}

func TestWatchlistStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	require.NoError(t, s.Add(ctx, addr1))
	require.NoError(t, s.Add(ctx, addr2))
	require.NoError(t, s.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{addr1, addr2}, got)

	require.NoError(t, s.Add(ctx, addr3))
	got, _ = s.List(ctx)
	assert.Equal(t, []string{addr1, addr2, addr3}, got)
}

func TestWatchlistStoreReplace(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Add(ctx, addr1))
	require.NoError(t, s.Replace(ctx, []string{addr3, addr2, addr3}))

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{addr3, addr2}, got)
	assert.ErrorIs(t, s.Remove(ctx, addr1), domain.ErrNotFound)

	require.NoError(t, s.Replace(ctx, nil))
	got, _ = s.List(ctx)
	assert.Empty(t, got)
}
