// Package database provides the sqlx-backed store implementations.
// SQLite is the default backend; PostgreSQL is selected by configuration.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Connect opens a database connection for the given driver and DSN and
// initializes the schema. For SQLite the DSN is a file path whose parent
// directory is created if missing.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			is_admin BOOLEAN DEFAULT false,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS concepts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL DEFAULT '',
			answer TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(telegram_id),
			UNIQUE(user_id, title, category)
		)`,
		`CREATE TABLE IF NOT EXISTS user_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id BIGINT NOT NULL,
			concept_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			interval_days REAL NOT NULL,
			ease_factor REAL NOT NULL,
			next_review_at TIMESTAMP NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			FOREIGN KEY (concept_id) REFERENCES concepts(id) ON DELETE CASCADE,
			UNIQUE(user_id, concept_id)
		)`,
		`CREATE TABLE IF NOT EXISTS progress_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			progress_id BIGINT NOT NULL,
			answered_at TIMESTAMP NOT NULL,
			was_correct BOOLEAN NOT NULL,
			confidence TEXT NOT NULL,
			interval_days REAL NOT NULL,
			response_time_seconds REAL NOT NULL DEFAULT 0,
			FOREIGN KEY (progress_id) REFERENCES user_progress(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS stats_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id BIGINT NOT NULL,
			total INTEGER NOT NULL,
			stable INTEGER NOT NULL,
			fragile INTEGER NOT NULL,
			learning INTEGER NOT NULL,
			lapsed INTEGER NOT NULL,
			captured_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(telegram_id)
		)`,
	}

	create := statements
	if db.DriverName() == DriverPostgres {
		create = make([]string, len(statements))
		for i, stmt := range statements {
			create[i] = postgresDDL(stmt)
		}
	}

	for _, stmt := range create {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// postgresDDL rewrites the SQLite DDL dialect for PostgreSQL.
func postgresDDL(stmt string) string {
	return strings.ReplaceAll(stmt, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")
}
