// Package storage persists the visit log, saved catalogs and user
// configuration.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// OpenDB opens (or creates) the opdsnav SQLite database in the given data directory.
func OpenDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "opdsnav.db")

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; serialize through a single connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS visits (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT    NOT NULL DEFAULT '',
		uri        TEXT    NOT NULL,
		title      TEXT    NOT NULL DEFAULT '',
		kind       TEXT    NOT NULL DEFAULT '',
		visited_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS saved_catalogs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT    NOT NULL DEFAULT '',
		uri        TEXT    NOT NULL,
		title      TEXT    NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE (account_id, uri)
	);

	CREATE INDEX IF NOT EXISTS idx_visits_visited_at ON visits(visited_at DESC);
	CREATE INDEX IF NOT EXISTS idx_visits_uri ON visits(uri);
	`

	_, err := db.conn.Exec(schema)
	return err
}
