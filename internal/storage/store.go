// Package storage persists the per-task edit log.
package storage

import (
	"errors"

	"contextkeeper/internal/editlog"
)

// Storage errors.
var (
	// ErrCorruptHistory indicates a history record exists but cannot be decoded.
	ErrCorruptHistory = errors.New("storage: corrupt context history")

	// ErrEmptyTaskKey indicates a load or save without a task key.
	ErrEmptyTaskKey = errors.New("storage: empty task key")
)

// HistoryStore loads and saves the edit log of one task.
//
// Load returns an empty log and a nil error when no history exists yet.
type HistoryStore interface {
	Load(taskKey string) (*editlog.Log, error)
	Save(taskKey string, log *editlog.Log) error
}
