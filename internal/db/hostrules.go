package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/query"
)

const hostRuleColumns = "id, host, status, folder_id, preferred_browser_package, is_preference_enabled, created_at, updated_at"

// LookupHostRule returns the rule for host, or nil if none exists.
func (s *Store) LookupHostRule(ctx context.Context, host string) (*domain.HostRule, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+hostRuleColumns+" FROM host_rules WHERE host = ?", host)
	return lookupHostRule(row)
}

// LookupHostRuleByID returns the rule with id, or nil if none exists.
func (s *Store) LookupHostRuleByID(ctx context.Context, id int64) (*domain.HostRule, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+hostRuleColumns+" FROM host_rules WHERE id = ?", id)
	return lookupHostRule(row)
}

// GetHostRuleByID returns the rule with id or a NotFound error.
func (s *Store) GetHostRuleByID(ctx context.Context, id int64) (*domain.HostRule, error) {
	r, err := s.LookupHostRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.NewNotFound("host rule", id)
	}
	return r, nil
}

// WatchHostRule streams the rule for host (nil while absent).
func (s *Store) WatchHostRule(ctx context.Context, host string) (<-chan *domain.HostRule, error) {
	load := func(ctx context.Context) (*domain.HostRule, error) { return s.LookupHostRule(ctx, host) }
	equal := func(a, b *domain.HostRule) bool { return a.Equal(b) }
	return observe(ctx, s, "host_rule", load, equal, TableHostRules)
}

func lookupHostRule(row *sql.Row) (*domain.HostRule, error) {
	r, err := scanHostRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabase(err)
	}
	return r, nil
}

// UpsertHostRule inserts a rule or replaces every mutable field of the
// existing rule for the same host. created_at is kept on replace.
// Sets r.ID, r.CreatedAt and r.UpdatedAt.
func (s *Store) UpsertHostRule(ctx context.Context, r *domain.HostRule) (int64, error) {
	now := nowMillis()
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO host_rules (host, status, folder_id, preferred_browser_package, is_preference_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			status = excluded.status,
			folder_id = excluded.folder_id,
			preferred_browser_package = excluded.preferred_browser_package,
			is_preference_enabled = excluded.is_preference_enabled,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, r.Host, string(r.Status), toNullInt64(r.FolderID), toNullString(r.PreferredBrowserPackage),
		boolToInt(r.IsPreferenceEnabled), now, now)

	var id, createdAt int64
	if err := row.Scan(&id, &createdAt); err != nil {
		return 0, dbError(err)
	}

	r.ID = id
	r.CreatedAt = createdAt
	r.UpdatedAt = now
	s.changed(TableHostRules)
	return id, nil
}

// SetHostRuleFolder changes only the folder of a rule.
func (s *Store) SetHostRuleFolder(ctx context.Context, id int64, folderID *int64) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE host_rules SET folder_id = ?, updated_at = ? WHERE id = ?",
		toNullInt64(folderID), nowMillis(), id)
	if err != nil {
		return dbError(err)
	}
	if err := affected(result, "host rule", id); err != nil {
		return err
	}
	s.changed(TableHostRules)
	return nil
}

// DeleteHostRuleByHost removes the rule for host.
func (s *Store) DeleteHostRuleByHost(ctx context.Context, host string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM host_rules WHERE host = ?", host)
	if err != nil {
		return dbError(err)
	}
	if err := affected(result, "host rule", host); err != nil {
		return err
	}
	s.changed(TableHostRules, TableHistory)
	return nil
}

// DeleteHostRuleByID removes the rule with id.
func (s *Store) DeleteHostRuleByID(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM host_rules WHERE id = ?", id)
	if err != nil {
		return dbError(err)
	}
	if err := affected(result, "host rule", id); err != nil {
		return err
	}
	// history rows referencing the rule are nulled by ON DELETE SET NULL
	s.changed(TableHostRules, TableHistory)
	return nil
}

// ClearFolderAssociation detaches every rule in folderID and returns how
// many were detached. Zero matches is not an error.
func (s *Store) ClearFolderAssociation(ctx context.Context, folderID int64) (int, error) {
	result, err := s.q.ExecContext(ctx,
		"UPDATE host_rules SET folder_id = NULL, updated_at = ? WHERE folder_id = ?",
		nowMillis(), folderID)
	if err != nil {
		return 0, dbError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabase(err)
	}
	if n > 0 {
		s.changed(TableHostRules)
	}
	return int(n), nil
}

// CountHostRulesInFolder returns the number of rules referencing folderID.
func (s *Store) CountHostRulesInFolder(ctx context.Context, folderID int64) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM host_rules WHERE folder_id = ?", folderID).Scan(&n); err != nil {
		return 0, errors.NewDatabase(err)
	}
	return n, nil
}

// ListHostRules returns every rule ordered by host.
func (s *Store) ListHostRules(ctx context.Context) ([]domain.HostRule, error) {
	return s.listHostRules(ctx, "")
}

// ListHostRulesByStatus returns rules with the given status.
func (s *Store) ListHostRulesByStatus(ctx context.Context, status domain.RuleStatus) ([]domain.HostRule, error) {
	return s.listHostRules(ctx, "WHERE status = ?", string(status))
}

// ListHostRulesByFolder returns rules placed directly in folderID.
func (s *Store) ListHostRulesByFolder(ctx context.Context, folderID int64) ([]domain.HostRule, error) {
	return s.listHostRules(ctx, "WHERE folder_id = ?", folderID)
}

// ListRootHostRulesByStatus returns rules with the given status that sit in
// no folder.
func (s *Store) ListRootHostRulesByStatus(ctx context.Context, status domain.RuleStatus) ([]domain.HostRule, error) {
	return s.listHostRules(ctx, "WHERE status = ? AND folder_id IS NULL", string(status))
}

func (s *Store) listHostRules(ctx context.Context, where string, args ...any) ([]domain.HostRule, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+hostRuleColumns+" FROM host_rules "+where+" ORDER BY host, id", args...)
	if err != nil {
		return nil, errors.NewDatabase(err)
	}
	defer rows.Close()

	rules := []domain.HostRule{}
	for rows.Next() {
		r, err := scanHostRule(rows)
		if err != nil {
			return nil, errors.NewDatabase(err)
		}
		rules = append(rules, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabase(err)
	}
	return rules, nil
}

// HostRuleRow is a rule together with the group key of the query that
// produced it.
type HostRuleRow struct {
	domain.HostRule
	GroupKey *string `json:"group_key,omitempty"`
}

// QueryHostRules runs an item query built over query.HostRules.
func (s *Store) QueryHostRules(ctx context.Context, q query.Query) ([]HostRuleRow, error) {
	rows, err := s.q.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	out := []HostRuleRow{}
	for rows.Next() {
		var (
			row      HostRuleRow
			status   string
			folderID sql.NullInt64
			browser  sql.NullString
			enabled  int
			groupKey sql.NullString
		)
		err := rows.Scan(&row.ID, &row.Host, &status, &folderID, &browser, &enabled,
			&row.CreatedAt, &row.UpdatedAt, &groupKey)
		if err != nil {
			return nil, errors.NewDatabase(err)
		}
		row.Status = domain.RuleStatus(status)
		row.FolderID = fromNullInt64(folderID)
		row.PreferredBrowserPackage = fromNullString(browser)
		row.IsPreferenceEnabled = enabled != 0
		row.GroupKey = fromNullString(groupKey)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabase(err)
	}
	return out, nil
}

func scanHostRule(row rowScanner) (*domain.HostRule, error) {
	var (
		r        domain.HostRule
		status   string
		folderID sql.NullInt64
		browser  sql.NullString
		enabled  int
	)
	err := row.Scan(&r.ID, &r.Host, &status, &folderID, &browser, &enabled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = domain.RuleStatus(status)
	r.FolderID = fromNullInt64(folderID)
	r.PreferredBrowserPackage = fromNullString(browser)
	r.IsPreferenceEnabled = enabled != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
