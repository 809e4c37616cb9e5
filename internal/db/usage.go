package db

import (
	"context"

	"github.com/hpungsan/hostgate/internal/errors"
)

// BrowserUsage is the launch counter of one browser.
type BrowserUsage struct {
	BrowserPackage string `json:"browser_package"`
	LaunchCount    int64  `json:"launch_count"`
	LastUsedAt     int64  `json:"last_used_at"`
}

// IncrementBrowserUsage adds one launch for browserPackage.
func (s *Store) IncrementBrowserUsage(ctx context.Context, browserPackage string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO browser_usage (browser_package, launch_count, last_used_at)
		VALUES (?, 1, ?)
		ON CONFLICT(browser_package) DO UPDATE SET
			launch_count = launch_count + 1,
			last_used_at = excluded.last_used_at
	`, browserPackage, nowMillis())
	if err != nil {
		return dbError(err)
	}
	s.changed(TableBrowserUsage)
	return nil
}

// ListBrowserUsage returns every counter, most launched first.
func (s *Store) ListBrowserUsage(ctx context.Context) ([]BrowserUsage, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT browser_package, launch_count, last_used_at
		FROM browser_usage
		ORDER BY launch_count DESC, browser_package
	`)
	if err != nil {
		return nil, errors.NewDatabase(err)
	}
	defer rows.Close()

	out := []BrowserUsage{}
	for rows.Next() {
		var u BrowserUsage
		if err := rows.Scan(&u.BrowserPackage, &u.LaunchCount, &u.LastUsedAt); err != nil {
			return nil, errors.NewDatabase(err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabase(err)
	}
	return out, nil
}
