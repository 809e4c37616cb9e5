package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/query"
)

const historyColumns = "id, uri_string, host, timestamp, source, action, chosen_browser_package, associated_host_rule_id, event_id"

// InsertHistory appends a history record. A zero Timestamp is set to now.
// The rule reference is weak: a rule deleted since the caller looked it up
// is stored as NULL instead of failing the insert. Sets rec.ID and
// rec.AssociatedHostRuleID to what was stored.
func (s *Store) InsertHistory(ctx context.Context, rec *domain.UriHistoryRecord) (int64, error) {
	if rec.Timestamp == 0 {
		rec.Timestamp = nowMillis()
	}
	var (
		id     int64
		ruleID sql.NullInt64
	)
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO uri_history (uri_string, host, timestamp, source, action, chosen_browser_package, associated_host_rule_id, event_id)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT id FROM host_rules WHERE id = ?), ?)
		RETURNING id, associated_host_rule_id
	`, rec.UriString, rec.Host, rec.Timestamp, string(rec.Source), string(rec.Action),
		toNullString(rec.ChosenBrowserPackage), toNullInt64(rec.AssociatedHostRuleID), toNullString(rec.EventID),
	).Scan(&id, &ruleID)
	if err != nil {
		return 0, dbError(err)
	}
	if rec.AssociatedHostRuleID != nil && !ruleID.Valid {
		s.log.Debug("history rule reference dropped; rule no longer exists",
			logger.Int64("rule_id", *rec.AssociatedHostRuleID))
	}
	rec.ID = id
	rec.AssociatedHostRuleID = fromNullInt64(ruleID)
	s.changed(TableHistory)
	return id, nil
}

// GetHistoryRecord returns the record with id or a NotFound error.
func (s *Store) GetHistoryRecord(ctx context.Context, id int64) (*domain.UriHistoryRecord, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+historyColumns+" FROM uri_history WHERE id = ?", id)
	rec, _, err := scanHistory(row, false)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("history record", id)
	}
	if err != nil {
		return nil, errors.NewDatabase(err)
	}
	return rec, nil
}

// DeleteHistoryRecord removes one record.
func (s *Store) DeleteHistoryRecord(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM uri_history WHERE id = ?", id)
	if err != nil {
		return dbError(err)
	}
	if err := affected(result, "history record", id); err != nil {
		return err
	}
	s.changed(TableHistory)
	return nil
}

// DeleteAllHistory removes every record and returns how many were removed.
func (s *Store) DeleteAllHistory(ctx context.Context) (int, error) {
	return s.deleteHistory(ctx, "DELETE FROM uri_history")
}

// DeleteHistoryOlderThan removes records with timestamp before cutoff
// (Unix milliseconds).
func (s *Store) DeleteHistoryOlderThan(ctx context.Context, cutoff int64) (int, error) {
	return s.deleteHistory(ctx, "DELETE FROM uri_history WHERE timestamp < ?", cutoff)
}

func (s *Store) deleteHistory(ctx context.Context, stmt string, args ...any) (int, error) {
	result, err := s.q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, dbError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabase(err)
	}
	if n > 0 {
		s.changed(TableHistory)
	}
	return int(n), nil
}

// HistoryRow is a history record together with the group key of the query
// that produced it.
type HistoryRow struct {
	domain.UriHistoryRecord
	GroupKey *string `json:"group_key,omitempty"`
}

// QueryHistory runs an item query built over query.History.
func (s *Store) QueryHistory(ctx context.Context, q query.Query) ([]HistoryRow, error) {
	rows, err := s.q.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	out := []HistoryRow{}
	for rows.Next() {
		rec, groupKey, err := scanHistory(rows, true)
		if err != nil {
			return nil, errors.NewDatabase(err)
		}
		out = append(out, HistoryRow{UriHistoryRecord: *rec, GroupKey: groupKey})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabase(err)
	}
	return out, nil
}

func scanHistory(row rowScanner, withGroup bool) (*domain.UriHistoryRecord, *string, error) {
	var (
		rec      domain.UriHistoryRecord
		source   string
		action   string
		browser  sql.NullString
		ruleID   sql.NullInt64
		eventID  sql.NullString
		groupKey sql.NullString
	)
	dest := []any{&rec.ID, &rec.UriString, &rec.Host, &rec.Timestamp, &source, &action, &browser, &ruleID, &eventID}
	if withGroup {
		dest = append(dest, &groupKey)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, nil, err
	}
	rec.Source = domain.Source(source)
	rec.Action = domain.Action(action)
	rec.ChosenBrowserPackage = fromNullString(browser)
	rec.AssociatedHostRuleID = fromNullInt64(ruleID)
	rec.EventID = fromNullString(eventID)
	return &rec, fromNullString(groupKey), nil
}
