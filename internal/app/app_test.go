package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/config"
	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/notify"
	"github.com/alanyoungcy/toslens/internal/projection"
	"github.com/alanyoungcy/toslens/internal/server"
	"github.com/alanyoungcy/toslens/internal/store/memory"
)

const watched = "0x14fb0933Ec45ecE75A431D10AFAa1DDF7BfeE44C"

// stubChain serves one address with a single 100 TOS position.
type stubChain struct {
	failIndices bool
}

func (s stubChain) RunwayBalance(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(1_000_000), nil
}

func (s stubChain) TotalStakedSupply(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(50_000_000), nil
}

func (s stubChain) PositionIndices(_ context.Context, address string) ([]uint64, error) {
	if s.failIndices {
		return nil, &domain.ChainQueryError{Query: "stakingOf", Arg: address, Err: errors.New("rpc down")}
	}
	if strings.EqualFold(address, watched) {
		return []uint64{0, 7}, nil
	}
	return []uint64{0}, nil
}

func (s stubChain) PositionAmount(_ context.Context, index uint64) (decimal.Decimal, error) {
	if index == 7 {
		return decimal.NewFromInt(100), nil
	}
	return decimal.Zero, nil
}

func (s stubChain) ClaimableReward(_ context.Context, total decimal.Decimal) (decimal.Decimal, error) {
	return total.Div(decimal.NewFromInt(1000)), nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestApp(t *testing.T, chain domain.ChainReader) (*App, *Dependencies, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Chain.RPCURL = "http://unused"
	cfg.Watchlist.Backend = "memory"
	cfg.Watchlist.Addresses = []string{strings.ToLower(watched), "not-an-address"}

	cache, err := projection.NewCache(16)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	deps := &Dependencies{
		Chain:       chain,
		Projections: cache,
		Watchlist:   memory.NewWatchlistStore(),
		Notifier:    notify.NewNotifier(nil, cfg.Notify.Events, quietLogger()),
	}
	a := New(&cfg, quietLogger())
	out := &bytes.Buffer{}
	a.out = out
	return a, deps, out
}

func TestBuild_SeedsWatchlist(t *testing.T) {
	a, deps, _ := newTestApp(t, stubChain{})
	rt, err := a.build(context.Background(), deps)
	require.NoError(t, err)

	addrs, err := rt.watchlist.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{common.HexToAddress(watched).Hex()}, addrs, "valid seed stored checksummed, invalid one skipped")
	assert.Nil(t, rt.backup, "no blob storage configured")

	// Seeding twice does not duplicate.
	_, err = a.build(context.Background(), deps)
	require.NoError(t, err)
	addrs, _ = deps.Watchlist.List(context.Background())
	assert.Len(t, addrs, 1)
}

func TestOnceMode_WritesSnapshot(t *testing.T) {
	a, deps, out := newTestApp(t, stubChain{})
	rt, err := a.build(context.Background(), deps)
	require.NoError(t, err)

	require.NoError(t, a.onceMode(context.Background(), rt))

	var got struct {
		Runway struct {
			RemainingDays string `json:"remaining_days"`
		} `json:"runway"`
		RunwayUndefined bool `json:"runway_undefined"`
		Staking         struct {
			GrandTotal      string `json:"grand_total"`
			ClaimableReward string `json:"claimable_reward"`
		} `json:"staking"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.False(t, got.RunwayUndefined)
	assert.True(t, strings.HasPrefix(got.Runway.RemainingDays, "76.58"), got.Runway.RemainingDays)
	assert.Equal(t, "100", got.Staking.GrandTotal)
	assert.Equal(t, "0.1", got.Staking.ClaimableReward)
}

func TestOnceMode_ReportsIncompleteRefresh(t *testing.T) {
	a, deps, out := newTestApp(t, stubChain{failIndices: true})
	rt, err := a.build(context.Background(), deps)
	require.NoError(t, err)

	err = a.onceMode(context.Background(), rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh incomplete")
	assert.Contains(t, out.String(), "staking_error", "snapshot still written")
}

func TestWatchMode_StopsOnCancel(t *testing.T) {
	a, deps, _ := newTestApp(t, stubChain{})
	rt, err := a.build(context.Background(), deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.watchMode(ctx, rt) }()

	require.Eventually(t, func() bool {
		_, ok := rt.refresher.Latest()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch mode did not stop")
	}
}

func TestHandlers_ServeDashboard(t *testing.T) {
	a, deps, _ := newTestApp(t, stubChain{})
	rt, err := a.build(context.Background(), deps)
	require.NoError(t, err)
	_, err = rt.refresher.Refresh(context.Background())
	require.NoError(t, err)

	h := a.handlers(rt)
	assert.Nil(t, h.Audit, "audit routes need the postgres backend")

	srv := httptest.NewServer(server.Routes(server.Config{}, h, nil, nil, quietLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/staking")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/api/watchlist/backup", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp2.StatusCode)
}
