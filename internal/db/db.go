package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/hostgate/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// DBFileName is the database file inside the base directory.
const DBFileName = "hostgate.db"

// Init initializes the SQLite database at baseDir/hostgate.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.hostgate.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, DBFileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: folders and host rules
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS folders (
		  id               INTEGER PRIMARY KEY AUTOINCREMENT,
		  name             TEXT NOT NULL,
		  type             TEXT NOT NULL CHECK (type IN ('BOOKMARK', 'BLOCK')),
		  parent_folder_id INTEGER REFERENCES folders(id),
		  created_at       INTEGER NOT NULL,
		  updated_at       INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_sibling_name
		ON folders(type, IFNULL(parent_folder_id, 0), name);

		CREATE INDEX IF NOT EXISTS idx_folders_parent
		ON folders(parent_folder_id);

		CREATE TABLE IF NOT EXISTS host_rules (
		  id                        INTEGER PRIMARY KEY AUTOINCREMENT,
		  host                      TEXT NOT NULL UNIQUE,
		  status                    TEXT NOT NULL CHECK (status IN ('NONE', 'BOOKMARKED', 'BLOCKED')),
		  folder_id                 INTEGER REFERENCES folders(id),
		  preferred_browser_package TEXT,
		  is_preference_enabled     INTEGER NOT NULL DEFAULT 0,
		  created_at                INTEGER NOT NULL,
		  updated_at                INTEGER NOT NULL,
		  CHECK (status <> 'NONE' OR folder_id IS NULL)
		);

		CREATE INDEX IF NOT EXISTS idx_host_rules_status
		ON host_rules(status);

		CREATE INDEX IF NOT EXISTS idx_host_rules_folder
		ON host_rules(folder_id)
		WHERE folder_id IS NOT NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: URI history and browser usage counters
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS uri_history (
		  id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		  uri_string              TEXT NOT NULL,
		  host                    TEXT NOT NULL,
		  timestamp               INTEGER NOT NULL,
		  source                  TEXT NOT NULL,
		  action                  TEXT NOT NULL,
		  chosen_browser_package  TEXT,
		  associated_host_rule_id INTEGER REFERENCES host_rules(id) ON DELETE SET NULL,
		  event_id                TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_uri_history_timestamp
		ON uri_history(timestamp DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_uri_history_host
		ON uri_history(host);

		CREATE INDEX IF NOT EXISTS idx_uri_history_action
		ON uri_history(action);

		CREATE INDEX IF NOT EXISTS idx_uri_history_rule
		ON uri_history(associated_host_rule_id)
		WHERE associated_host_rule_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS browser_usage (
		  browser_package TEXT PRIMARY KEY,
		  launch_count    INTEGER NOT NULL,
		  last_used_at    INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
