// Package db holds the SQLite file behind the chat transcripts. The lead
// store itself is CSV and never touches it.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB is an open, migrated transcript database.
type DB struct {
	sql  *sql.DB
	path string
}

// Open creates the parent directory if needed, opens the file in WAL mode
// with foreign keys on, and brings the schema up to date.
func Open(path string) (*DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("db: resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("db: create dir: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn(abs))
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", abs, err)
	}
	// Turns from a chat and from MCP runs go through one connection; the
	// busy timeout covers other processes.
	conn.SetMaxOpenConns(1)

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: migrate %s: %w", abs, err)
	}
	return &DB{sql: conn, path: abs}, nil
}

func dsn(abs string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", abs)
}

// Path is the absolute database file path.
func (d *DB) Path() string { return d.path }

// SQL exposes the handle for queries.
func (d *DB) SQL() *sql.DB { return d.sql }

// InTx runs fn in a transaction, committing when fn returns nil.
func (d *DB) InTx(fn func(*sql.Tx) error) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}
