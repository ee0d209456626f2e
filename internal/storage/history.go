package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"contextkeeper/internal/editlog"
)

// Revision describes one saved version of a task's history.
type Revision struct {
	ID        string    `json:"id"`
	TaskKey   string    `json:"task_key"`
	Revision  int       `json:"revision"`
	Cells     int       `json:"cells"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteStore keeps history in the context_history table. Every Save appends
// a revision; Load reads the newest one.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore wraps an open database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load implements HistoryStore.
func (s *SQLiteStore) Load(taskKey string) (*editlog.Log, error) {
	if taskKey == "" {
		return nil, ErrEmptyTaskKey
	}

	var payload string
	err := s.db.QueryRow(`
		SELECT payload FROM context_history
		WHERE task_key = ?
		ORDER BY revision DESC
		LIMIT 1
	`, taskKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return editlog.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return decodeLog("task "+taskKey, []byte(payload))
}

// Save implements HistoryStore.
func (s *SQLiteStore) Save(taskKey string, log *editlog.Log) error {
	if taskKey == "" {
		return ErrEmptyTaskKey
	}

	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	return s.db.WithTx(func(tx *Tx) error {
		var maxRevision sql.NullInt64
		if err := tx.QueryRow(
			`SELECT MAX(revision) FROM context_history WHERE task_key = ?`, taskKey,
		).Scan(&maxRevision); err != nil {
			return fmt.Errorf("get max revision: %w", err)
		}

		_, err := tx.Exec(`
			INSERT INTO context_history (id, task_key, revision, payload, cells, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), taskKey, maxRevision.Int64+1, string(payload), log.Len(), time.Now())
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		return nil
	})
}

// Revisions lists a task's saved revisions, newest first.
func (s *SQLiteStore) Revisions(taskKey string, limit int) ([]*Revision, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, task_key, revision, cells, created_at
		FROM context_history
		WHERE task_key = ?
		ORDER BY revision DESC
		LIMIT ?
	`, taskKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []*Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.TaskKey, &r.Revision, &r.Cells, &r.CreatedAt); err != nil {
			return nil, err
		}
		revisions = append(revisions, &r)
	}
	return revisions, rows.Err()
}
