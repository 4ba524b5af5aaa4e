package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// WatchlistStore implements domain.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	pool *pgxpool.Pool
}

var _ domain.WatchlistStore = (*WatchlistStore)(nil)

// NewWatchlistStore creates a new WatchlistStore backed by the given pool.
func NewWatchlistStore(pool *pgxpool.Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

// List returns every watched address in insertion order.
func (s *WatchlistStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watchlist: %w", err)
	}
	addrs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan watchlist: %w", err)
	}
	if addrs == nil {
		addrs = []string{}
	}
	return addrs, nil
}

// Add appends address. It returns domain.ErrAlreadyExists if the address is
// already present in any letter case.
func (s *WatchlistStore) Add(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO watchlist (address) VALUES ($1)`, address)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: add %s: %w", address, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: add %s: %w", address, err)
	}
	return nil
}

// Remove deletes address, matched case-insensitively.
func (s *WatchlistStore) Remove(ctx context.Context, address string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watchlist WHERE LOWER(address) = LOWER($1)`, address)
	if err != nil {
		return fmt.Errorf("postgres: remove %s: %w", address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: remove %s: %w", address, domain.ErrNotFound)
	}
	return nil
}

// Replace atomically swaps the whole watch-list for addresses, keeping their
// order.
func (s *WatchlistStore) Replace(ctx context.Context, addresses []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM watchlist`); err != nil {
		return fmt.Errorf("postgres: clear watchlist: %w", err)
	}
	batch := &pgx.Batch{}
	for _, a := range addresses {
		batch.Queue(`INSERT INTO watchlist (address) VALUES ($1) ON CONFLICT DO NOTHING`, a)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: insert watchlist: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit replace: %w", err)
	}
	return nil
}
