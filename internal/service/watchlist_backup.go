package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/toslens/internal/domain"
	"github.com/alanyoungcy/toslens/internal/platform/tosstaking"
)

// watchlistExport is the JSON document written to object storage.
type watchlistExport struct {
	ExportedAt time.Time `json:"exported_at"`
	Addresses  []string  `json:"addresses"`
}

// WatchlistBackup exports the watch-list to object storage and restores the
// newest export.
type WatchlistBackup struct {
	store    domain.WatchlistStore
	writer   domain.BlobWriter
	reader   domain.BlobReader
	prefix   string
	onChange func()
	now      func() time.Time
	logger   *slog.Logger
}

// NewWatchlistBackup creates a WatchlistBackup writing under prefix.
func NewWatchlistBackup(store domain.WatchlistStore, writer domain.BlobWriter, reader domain.BlobReader, prefix string, onChange func(), logger *slog.Logger) *WatchlistBackup {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "watchlist"
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &WatchlistBackup{
		store:    store,
		writer:   writer,
		reader:   reader,
		prefix:   prefix,
		onChange: onChange,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "watchlist_backup")),
	}
}

// Backup writes the current watch-list and returns the object path.
func (b *WatchlistBackup) Backup(ctx context.Context) (string, error) {
	addrs, err := b.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("backup: list watchlist: %w", err)
	}
	now := b.now().UTC()
	data, err := json.Marshal(watchlistExport{ExportedAt: now, Addresses: addrs})
	if err != nil {
		return "", fmt.Errorf("backup: marshal: %w", err)
	}

	path := fmt.Sprintf("%s/watchlist-%s.json", b.prefix, now.Format("20060102T150405Z"))
	if err := b.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("backup: put %s: %w", path, err)
	}
	b.logger.InfoContext(ctx, "watchlist backed up", slog.String("path", path), slog.Int("addresses", len(addrs)))
	return path, nil
}

// RestoreLatest replaces the watch-list with the newest export and returns
// the number of addresses restored. Invalid addresses in the export are
// dropped. It returns domain.ErrNotFound when no export exists.
func (b *WatchlistBackup) RestoreLatest(ctx context.Context) (int, error) {
	blobs, err := b.reader.List(ctx, b.prefix+"/")
	if err != nil {
		return 0, fmt.Errorf("restore: list: %w", err)
	}
	var candidates []domain.BlobInfo
	for _, bl := range blobs {
		if strings.HasSuffix(bl.Path, ".json") {
			candidates = append(candidates, bl)
		}
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("restore: %w", domain.ErrNotFound)
	}
	// Export names embed a sortable UTC timestamp.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Path < candidates[j].Path })
	latest := candidates[len(candidates)-1].Path

	rc, err := b.reader.Get(ctx, latest)
	if err != nil {
		return 0, fmt.Errorf("restore: get %s: %w", latest, err)
	}
	defer rc.Close()

	var doc watchlistExport
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return 0, fmt.Errorf("restore: decode %s: %w", latest, err)
	}

	seen := make(map[string]bool, len(doc.Addresses))
	addrs := make([]string, 0, len(doc.Addresses))
	for _, raw := range doc.Addresses {
		addr, err := tosstaking.NormalizeAddress(raw)
		if err != nil {
			b.logger.WarnContext(ctx, "dropping invalid address from backup", slog.String("address", raw))
			continue
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}

	if err := b.store.Replace(ctx, addrs); err != nil {
		return 0, fmt.Errorf("restore: replace watchlist: %w", err)
	}
	b.logger.InfoContext(ctx, "watchlist restored", slog.String("path", latest), slog.Int("addresses", len(addrs)))
	b.onChange()
	return len(addrs), nil
}
