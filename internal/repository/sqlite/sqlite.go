// Package sqlite implements the repository interfaces on an embedded SQLite
// database via modernc.org/sqlite (pure Go, no CGo). WAL mode keeps reads
// open during writes, which matters once concurrent requests share the pool.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// dayLayout is how report day keys are stored. ISO dates sort
// lexicographically in date order, so BETWEEN works on the TEXT column.
const dayLayout = "2006-01-02"

// DB wraps a sql.DB pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string) (*DB, error) {
	// Pragmas go in the DSN so they apply to every pooled connection, not just
	// the one that happened to run an Exec. busy_timeout makes concurrent
	// writers wait for the lock instead of failing with SQLITE_BUSY.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	// username and email are both unique; github_id is unique when present
	// (NULLs don't collide under a SQLite UNIQUE index). refresh_token is the
	// single live slot per user, NULL when logged out.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			refresh_token TEXT,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_refresh_token ON users(refresh_token);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// UNIQUE(owner_id, date) is the arbiter of one-report-per-day; the upsert
	// targets it with ON CONFLICT. Entries are stored as a JSON document —
	// they are never addressed individually below the report level.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL REFERENCES users(id),
			date       TEXT NOT NULL,
			duration   INTEGER NOT NULL DEFAULT 0,
			entries    TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(owner_id, date)
		);
		CREATE INDEX IF NOT EXISTS idx_reports_owner_date ON reports(owner_id, date);
	`)
	if err != nil {
		return fmt.Errorf("creating reports table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS oauth_states (
			state      TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_oauth_states_expires_at ON oauth_states(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("creating oauth_states table: %w", err)
	}

	return nil
}
