package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/domain"
)

func TestWatchlistStore(t *testing.T) {
	ctx := context.Background()
	s := NewWatchlistStore("0xAa")

	require.NoError(t, s.Add(ctx, "0xBb"))
	assert.ErrorIs(t, s.Add(ctx, "0xAA"), domain.ErrAlreadyExists)

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAa", "0xBb"}, got)

	got[0] = "mutated"
	again, _ := s.List(ctx)
	assert.Equal(t, "0xAa", again[0])

	require.NoError(t, s.Remove(ctx, "0xaa"))
	assert.ErrorIs(t, s.Remove(ctx, "0xaa"), domain.ErrNotFound)

	require.NoError(t, s.Replace(ctx, []string{"0xCc", "0xDd"}))
	got, _ = s.List(ctx)
	assert.Equal(t, []string{"0xCc", "0xDd"}, got)
}

func TestWatchlistStoreEmptyListIsNonNil(t *testing.T) {
	got, err := NewWatchlistStore().List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
