package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/store/memory"
)

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, path string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobInfo
	for p, data := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path > out[j].Path })
	return out, nil
}

func TestWatchlistBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	src := memory.NewWatchlistStore(stakingContract, addrB)

	b := NewWatchlistBackup(src, blobs, blobs, "/backups/", nil, discardLogger())
	b.now = func() time.Time { return time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC) }

	path, err := b.Backup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backups/watchlist-20240309T080706Z.json", path)

	var doc watchlistExport
	require.NoError(t, json.Unmarshal(blobs.objects[path], &doc))
	assert.Equal(t, []string{stakingContract, addrB}, doc.Addresses)

	dst := memory.NewWatchlistStore("0x0000000000000000000000000000000000000009")
	changed := false
	r := NewWatchlistBackup(dst, blobs, blobs, "backups", func() { changed = true }, discardLogger())
	n, err := r.RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, changed)

	got, _ := dst.List(ctx)
	assert.Equal(t, []string{stakingContract, addrB}, got)
}

func TestWatchlistBackupRestorePicksNewestAndCleans(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	old, _ := json.Marshal(watchlistExport{Addresses: []string{addrA}})
	newer, _ := json.Marshal(watchlistExport{Addresses: []string{
		"0x14fb0933ec45ece75a431d10afaa1ddf7bfee44c", "garbage", stakingContract,
	}})
	blobs.objects["watchlist/watchlist-20240101T000000Z.json"] = old
	blobs.objects["watchlist/watchlist-20240201T000000Z.json"] = newer
	blobs.objects["watchlist/notes.txt"] = []byte("ignore")

	dst := memory.NewWatchlistStore()
	n, err := NewWatchlistBackup(dst, blobs, blobs, "", nil, discardLogger()).RestoreLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := dst.List(ctx)
	assert.Equal(t, []string{stakingContract}, got)
}

func TestWatchlistBackupRestoreWithoutExports(t *testing.T) {
	blobs := newMemBlobs()
	_, err := NewWatchlistBackup(memory.NewWatchlistStore(), blobs, blobs, "x", nil, discardLogger()).
		RestoreLatest(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
