package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/query"
	"github.com/hpungsan/hostgate/internal/watch"
)

// Table names used for change notification.
const (
	TableFolders      = "folders"
	TableHostRules    = "host_rules"
	TableHistory      = "uri_history"
	TableBrowserUsage = "browser_usage"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite implementation of the folder, host rule and history
// storage ports. Every write notifies the change hub so observers re-query.
type Store struct {
	db  *sql.DB
	q   querier
	hub *watch.Hub
	log logger.Logger

	// pending collects tables touched inside a transaction; nil outside one
	pending map[string]bool
}

// NewStore wraps an initialized database.
func NewStore(database *sql.DB, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		db:  database,
		q:   database,
		hub: watch.NewHub(),
		log: log,
	}
}

// Open initializes the database at baseDir and wraps it in a Store.
func Open(baseDir string, log logger.Logger) (*Store, error) {
	database, err := Init(baseDir)
	if err != nil {
		return nil, err
	}
	return NewStore(database, log), nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Hub returns the change hub observers subscribe to.
func (s *Store) Hub() *watch.Hub { return s.hub }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// InTx runs fn inside one transaction. Change notifications are deferred
// until commit; on error the transaction is rolled back and nothing is
// announced. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.pending != nil {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabase(err)
	}

	tx := &Store{
		db:      s.db,
		q:       sqlTx,
		hub:     s.hub,
		log:     s.log,
		pending: make(map[string]bool),
	}

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return errors.NewDatabase(err)
	}

	tables := make([]string, 0, len(tx.pending))
	for t := range tx.pending {
		tables = append(tables, t)
	}
	s.hub.Notify(tables...)
	return nil
}

// changed announces a write, or records it for announcement at commit.
func (s *Store) changed(tables ...string) {
	if s.pending != nil {
		for _, t := range tables {
			s.pending[t] = true
		}
		return
	}
	s.hub.Notify(tables...)
}

// observe wires a load function into the change hub, logging reload faults.
func observe[T any](ctx context.Context, s *Store, name string, load func(context.Context) (T, error), equal func(a, b T) bool, tables ...string) (<-chan T, error) {
	return watch.Observe(ctx, s.hub, watch.Source[T]{
		Tables: tables,
		Load:   load,
		Equal:  equal,
		OnError: func(err error) {
			s.log.Error("observer reload failed", logger.String("observer", name), logger.Error(err))
		},
	})
}

// dbError classifies a driver error into the error taxonomy.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &errors.AppError{Code: errors.ErrConflict, Message: "unique constraint violation", Cause: err}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &errors.AppError{Code: errors.ErrDataIntegrity, Message: "foreign key constraint violation", Cause: err}
	case strings.Contains(msg, "CHECK constraint failed"):
		return &errors.AppError{Code: errors.ErrValidation, Message: "check constraint violation", Cause: err}
	default:
		return errors.NewDatabase(err)
	}
}

// affected returns NotFound when an update or delete touched no row.
func affected(result sql.Result, kind string, identifier any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabase(err)
	}
	if n == 0 {
		return errors.NewNotFound(kind, identifier)
	}
	return nil
}

// nowMillis is the clock used for created/updated timestamps.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// toNullInt64 converts a *int64 to sql.NullInt64.
func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// fromNullInt64 converts a sql.NullInt64 to *int64.
func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

// GroupCounts runs a group-count or date-count query.
func (s *Store) GroupCounts(ctx context.Context, q query.Query) ([]query.GroupCount, error) {
	rows, err := s.q.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	counts := []query.GroupCount{}
	for rows.Next() {
		var (
			key   sql.NullString
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, errors.NewDatabase(err)
		}
		counts = append(counts, query.GroupCount{Key: key.String, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabase(err)
	}
	return counts, nil
}

// CountRows runs a SELECT COUNT(*) query.
func (s *Store) CountRows(ctx context.Context, q query.Query) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&n); err != nil {
		return 0, dbError(err)
	}
	return n, nil
}
