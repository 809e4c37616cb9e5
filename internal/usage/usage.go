// Package usage counts browser launches. The SQLite counter is the default;
// a Redis counter can be selected in config to share counts across hosts.
package usage

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/logger"
)

// Entry is the launch count of one browser.
type Entry struct {
	BrowserPackage string `json:"browser_package"`
	LaunchCount    int64  `json:"launch_count"`
	LastUsedAt     int64  `json:"last_used_at"`
}

// Counter records browser launches.
type Counter interface {
	Increment(ctx context.Context, browserPackage string) error
	Stats(ctx context.Context) ([]Entry, error)
}

// SQLiteCounter stores counts in the browser_usage table.
type SQLiteCounter struct {
	store *db.Store
}

// NewSQLiteCounter returns a counter backed by store.
func NewSQLiteCounter(store *db.Store) *SQLiteCounter {
	return &SQLiteCounter{store: store}
}

// Increment adds one launch for browserPackage.
func (c *SQLiteCounter) Increment(ctx context.Context, browserPackage string) error {
	browserPackage = strings.TrimSpace(browserPackage)
	if browserPackage == "" {
		return fmt.Errorf("browser package is required")
	}
	return c.store.IncrementBrowserUsage(ctx, browserPackage)
}

// Stats returns every counter, most launched first.
func (c *SQLiteCounter) Stats(ctx context.Context) ([]Entry, error) {
	rows, err := c.store.ListBrowserUsage(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry(r))
	}
	return out, nil
}

// New builds the counter selected by cfg. The returned close function
// releases backend resources and is never nil.
func New(ctx context.Context, cfg *config.Config, store *db.Store, log logger.Logger) (Counter, func() error, error) {
	switch cfg.UsageBackend {
	case "", config.UsageBackendSQLite:
		return NewSQLiteCounter(store), func() error { return nil }, nil
	case config.UsageBackendRedis:
		client, err := Connect(ctx, ConnectOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.RedisTimeoutDuration(),
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisCounter(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown usage backend %q", cfg.UsageBackend)
	}
}
