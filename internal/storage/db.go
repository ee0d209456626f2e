package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"contextkeeper/internal/config"
	"contextkeeper/internal/storage/migrations"

	_ "modernc.org/sqlite"
)

// DB is the SQLite database holding history revisions.
type DB struct {
	*sql.DB
}

// Open opens the history database at path, creating it and its directory
// if needed, and brings the schema up to date.
func Open(path string) (*DB, error) {
	expandedPath, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", expandedPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{DB: db}, nil
}

// Tx wraps a transaction.
type Tx struct {
	*sql.Tx
}

// Begin starts a transaction.
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.DB.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx}, nil
}

// WithTx runs fn in a transaction, committing on success and rolling back on error.
func (db *DB) WithTx(fn func(*Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
