// Package migrations applies the embedded SQL schema scripts.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// FS holds the numbered schema scripts, applied in version order.
//
//go:embed scripts/*.sql
var FS embed.FS

type migration struct {
	version int
	name    string
	content string
}

// Run applies every script not yet recorded in _migrations.
func Run(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	todo, err := pending(db)
	if err != nil {
		return err
	}
	for _, m := range todo {
		if err := apply(db, m); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}

// pending returns the scripts not yet applied, in version order.
func pending(db *sql.DB) ([]migration, error) {
	applied, err := appliedVersions(db)
	if err != nil {
		return nil, fmt.Errorf("get applied versions: %w", err)
	}
	scripts, err := loadScripts()
	if err != nil {
		return nil, fmt.Errorf("load scripts: %w", err)
	}

	var todo []migration
	for _, m := range scripts {
		if !applied[m.version] {
			todo = append(todo, m)
		}
	}
	return todo, nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM _migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func loadScripts() ([]migration, error) {
	entries, err := fs.ReadDir(FS, "scripts")
	if err != nil {
		return nil, err
	}

	var scripts []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		// embed.FS paths always use forward slashes.
		content, err := fs.ReadFile(FS, "scripts/"+entry.Name())
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, migration{version: version, name: entry.Name(), content: string(content)})
	}

	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].version < scripts[j].version
	})
	return scripts, nil
}

func parseVersion(filename string) (int, error) {
	prefix, _, _ := strings.Cut(filename, "_")
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("invalid migration filename %s: %w", filename, err)
	}
	return v, nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.content); err != nil {
		return fmt.Errorf("execute SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO _migrations (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}
