package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Event  string
	Since  *time.Time
	Until  *time.Time
}

// WatchlistStore persists the ordered set of watched addresses. List returns
// addresses in insertion order.
type WatchlistStore interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, address string) error
	Remove(ctx context.Context, address string) error
	Replace(ctx context.Context, addresses []string) error
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore records operator actions such as watch-list edits.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
