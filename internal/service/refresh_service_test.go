package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/projection"
	"github.com/alanyoungcy/toslens/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingBus struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}

type observerFunc func(ctx context.Context, snap domain.DashboardSnapshot)

func (f observerFunc) Observe(ctx context.Context, snap domain.DashboardSnapshot) { f(ctx, snap) }

// gatedWatchlist blocks List for the first caller until release is closed.
type gatedWatchlist struct {
	addrs   []string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedWatchlist) List(ctx context.Context) ([]string, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.addrs, nil
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestRefreshComputesFullSnapshot(t *testing.T) {
	chain := newFakeChain()
	chain.positions[addrA] = []uint64{0, 1}
	chain.amounts[1] = decimal.NewFromInt(10_000)
	bus := &recordingBus{}
	var observed []domain.DashboardSnapshot

	engine := NewEngine(chain, 4, WithClock(fixedClock()))
	r := NewRefresher(engine, memory.NewWatchlistStore(addrA), bus, time.Second, discardLogger(),
		observerFunc(func(_ context.Context, s domain.DashboardSnapshot) { observed = append(observed, s) }))

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, snap.Token)
	require.NotNil(t, snap.Runway)
	require.NotNil(t, snap.Staking)
	assert.EqualValues(t, 1, snap.Runway.Token)
	assert.EqualValues(t, 1, snap.Staking.Token)
	assert.Equal(t, "10000", snap.Staking.GrandTotal.String())

	assert.Equal(t, snap.Runway.HorizonDays(), snap.Projection.HorizonDays)
	assert.False(t, snap.Projection.IsEmpty())
	assert.True(t, snap.Projection.Principal.Equal(snap.Staking.GrandTotal))

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, snap.Token, latest.Token)

	require.Len(t, bus.channels, 1)
	assert.Equal(t, domain.ChannelDashboard, bus.channels[0])
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bus.payloads[0], &decoded))
	assert.EqualValues(t, 1, decoded["token"])

	require.Len(t, observed, 1)
}

func TestRefreshTinySupplyProjectsCappedHorizon(t *testing.T) {
	chain := newFakeChain()
	chain.supply = decimal.RequireFromString("0.000000000000000001")
	chain.positions[addrA] = []uint64{0, 1}
	chain.amounts[1] = decimal.NewFromInt(1)

	engine := NewEngine(chain, 4, WithClock(fixedClock()))
	r := NewRefresher(engine, memory.NewWatchlistStore(addrA), nil, time.Second, discardLogger())

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.MaxHorizonDays, snap.Projection.HorizonDays)
	last := snap.Projection.DataPoints[len(snap.Projection.DataPoints)-1]
	assert.Equal(t, domain.MaxHorizonDays, last.Day)
	assert.LessOrEqual(t, len(snap.Projection.DataPoints), projection.MaxSamples+5)
}

func TestRefreshRecordsFailuresInSnapshot(t *testing.T) {
	chain := newFakeChain()
	chain.failRunway = true
	chain.positions[addrA] = []uint64{0}

	r := NewRefresher(NewEngine(chain, 2), memory.NewWatchlistStore(addrA), nil, 0, discardLogger())
	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)

	assert.Nil(t, snap.Runway)
	assert.Contains(t, snap.RunwayError, "runwayTos")
	require.NotNil(t, snap.Staking)
	assert.True(t, snap.Projection.IsEmpty())
}

func TestRefreshRunwayUndefined(t *testing.T) {
	chain := newFakeChain()
	chain.supply = decimal.Zero

	r := NewRefresher(NewEngine(chain, 2), memory.NewWatchlistStore(), nil, 0, discardLogger())
	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.RunwayUndefined)
	require.NotNil(t, snap.Runway)
	assert.Empty(t, snap.RunwayError)
	assert.True(t, snap.Projection.IsEmpty())
}

func TestRefreshSupersededResultIsDiscarded(t *testing.T) {
	chain := newFakeChain()
	chain.positions[addrA] = []uint64{0}
	gate := &gatedWatchlist{addrs: []string{addrA}, entered: make(chan struct{}), release: make(chan struct{})}
	bus := &recordingBus{}

	r := NewRefresher(NewEngine(chain, 2), gate, bus, 0, discardLogger())

	type result struct {
		snap domain.DashboardSnapshot
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		s, err := r.Refresh(context.Background())
		slow <- result{s, err}
	}()
	<-gate.entered

	fast, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, fast.Token)

	close(gate.release)
	res := <-slow
	assert.ErrorIs(t, res.err, domain.ErrSuperseded)
	assert.EqualValues(t, 1, res.snap.Token)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.EqualValues(t, 2, latest.Token)
	assert.Len(t, bus.channels, 1)
}

func TestRefresherRunRefreshesOnTrigger(t *testing.T) {
	chain := newFakeChain()
	store := memory.NewWatchlistStore()
	refreshed := make(chan uint64, 8)

	r := NewRefresher(NewEngine(chain, 2), store, nil, 0, discardLogger(),
		observerFunc(func(_ context.Context, s domain.DashboardSnapshot) { refreshed <- s.Token }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case tok := <-refreshed:
		assert.EqualValues(t, 1, tok)
	case <-time.After(2 * time.Second):
		t.Fatal("initial refresh did not run")
	}

	r.Trigger()
	select {
	case tok := <-refreshed:
		assert.EqualValues(t, 2, tok)
	case <-time.After(2 * time.Second):
		t.Fatal("triggered refresh did not run")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLatestBeforeFirstRefresh(t *testing.T) {
	r := NewRefresher(NewEngine(newFakeChain(), 1), memory.NewWatchlistStore(), nil, 0, discardLogger())
	_, ok := r.Latest()
	assert.False(t, ok)
}
